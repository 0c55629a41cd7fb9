package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Format represents the output format for logs
type Format int

const (
	// FormatConsole is human-readable console output
	FormatConsole Format = iota
	// FormatJSON is structured JSON output
	FormatJSON
)

// String returns the name of the format
func (f Format) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "console"
}

// Level represents a logging level
type Level int

const (
	// DebugLevel is for debug messages
	DebugLevel Level = iota
	// InfoLevel is for informational messages
	InfoLevel
	// WarnLevel is for warning messages
	WarnLevel
	// ErrorLevel is for error messages
	ErrorLevel
)

// String returns the string representation of a Level
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) logrus() logrus.Level {
	switch l {
	case DebugLevel:
		return logrus.DebugLevel
	case WarnLevel:
		return logrus.WarnLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

func fromLogrus(l logrus.Level) Level {
	switch l {
	case logrus.TraceLevel, logrus.DebugLevel:
		return DebugLevel
	case logrus.InfoLevel:
		return InfoLevel
	case logrus.WarnLevel:
		return WarnLevel
	default:
		return ErrorLevel
	}
}

// ParseLevel converts a string to a Level
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Logger provides structured logging on top of logrus
type Logger struct {
	level  Level
	format Format
	output io.Writer
	base   *logrus.Logger
	fields logrus.Fields
}

// New creates a new Logger with the specified level and console format
func New(level Level) *Logger {
	return newLogger(level, FormatConsole, os.Stdout)
}

// NewWithFormat creates a new Logger with the specified level and format
func NewWithFormat(level Level, format Format) *Logger {
	return newLogger(level, format, os.Stdout)
}

// NewWithOutput creates a new Logger with the specified level and output writer
func NewWithOutput(level Level, output io.Writer) *Logger {
	return newLogger(level, FormatConsole, output)
}

// NewWithFormatAndOutput creates a new Logger writing the given format to output
func NewWithFormatAndOutput(level Level, format Format, output io.Writer) *Logger {
	return newLogger(level, format, output)
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return newLogger(ErrorLevel, FormatConsole, io.Discard)
}

func newLogger(level Level, format Format, output io.Writer) *Logger {
	base := logrus.New()
	base.SetOutput(output)
	base.SetLevel(level.logrus())
	if format == FormatJSON {
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "timestamp",
				logrus.FieldKeyMsg:  "message",
			},
		})
	} else {
		base.SetFormatter(&consoleFormatter{})
	}

	return &Logger{
		level:  level,
		format: format,
		output: output,
		base:   base,
	}
}

// SetLevel changes the logging level
func (l *Logger) SetLevel(level Level) {
	l.level = level
	l.base.SetLevel(level.logrus())
}

// With returns a child logger that adds fields to every entry
func (l *Logger) With(fields ...Field) *Logger {
	merged := make(logrus.Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for _, f := range fields {
		merged[f.Key] = f.Value
	}
	child := *l
	child.fields = merged
	return &child
}

// Debug logs a debug message with optional fields
func (l *Logger) Debug(msg string, fields ...Field) {
	l.log(DebugLevel, msg, fields...)
}

// Info logs an informational message with optional fields
func (l *Logger) Info(msg string, fields ...Field) {
	l.log(InfoLevel, msg, fields...)
}

// Warn logs a warning message with optional fields
func (l *Logger) Warn(msg string, fields ...Field) {
	l.log(WarnLevel, msg, fields...)
}

// Error logs an error message with optional fields
func (l *Logger) Error(msg string, fields ...Field) {
	l.log(ErrorLevel, msg, fields...)
}

func (l *Logger) log(level Level, msg string, fields ...Field) {
	if level < l.level {
		return
	}

	data := make(logrus.Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		data[k] = v
	}
	for _, f := range fields {
		data[f.Key] = f.Value
	}

	l.base.WithFields(data).Log(level.logrus(), msg)
}

// consoleFormatter renders "timestamp LEVEL message key=value ..." lines.
// Entry fields are sorted by key so output is stable.
type consoleFormatter struct{}

func (f *consoleFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var output strings.Builder
	output.WriteString(entry.Time.UTC().Format(time.RFC3339))
	output.WriteString(" ")
	output.WriteString(fromLogrus(entry.Level).String())
	output.WriteString(" ")
	output.WriteString(entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		output.WriteString(" ")
		output.WriteString(k)
		output.WriteString("=")
		output.WriteString(fmt.Sprintf("%v", entry.Data[k]))
	}

	output.WriteString("\n")
	return []byte(output.String()), nil
}

// Field represents a structured logging field
type Field struct {
	Key   string
	Value any
}

// String creates a Field with a string value
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates a Field with an integer value
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Int64 creates a Field with an int64 value
func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a Field with a boolean value
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Duration creates a Field with a duration value
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

// Error creates a Field with an error value
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: "<nil>"}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Any creates a Field with any value
func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}
