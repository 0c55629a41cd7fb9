package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/finsight/finsight/internal/config"
	"github.com/finsight/finsight/internal/logging"
)

var (
	cfg         *config.Config
	logger      *logging.Logger
	verboseFlag bool
	jsonFlag    bool
)

var rootCmd = &cobra.Command{
	Use:   "finsight",
	Short: "FinSight application server",
	Long:  `finsight - Telegram webhook receiver and finance bot for FinSight`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded

		level := logging.ParseLevel(cfg.LogLevel)
		if verboseFlag {
			level = logging.DebugLevel
		}

		format := logging.FormatConsole
		if jsonFlag {
			format = logging.FormatJSON
		}

		logger = logging.NewWithFormatAndOutput(level, format, cmd.ErrOrStderr())
		logger.Debug("Logger initialized",
			logging.String("level", level.String()),
			logging.String("format", format.String()),
		)
		return nil
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
	rootCmd.SilenceUsage = true

	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose logging (debug level)")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Output logs in JSON format")
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GetLogger returns the global logger instance
func GetLogger() *logging.Logger {
	return logger
}

// GetConfig returns the global config instance
func GetConfig() *config.Config {
	return cfg
}
