package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// DefaultPort is the port the server binds to when PORT is unset
const DefaultPort = "8000"

// Config holds shared configuration values for FinSight components
type Config struct {
	// DBPath is the sqlite file holding the local message log
	DBPath string `env:"DB_PATH" env-default:"data.db"`

	// TelegramToken is the bot token used for replies and webhook registration
	TelegramToken string `env:"TELEGRAM_TOKEN"`

	// TelegramAPIURL is the Bot API base URL
	TelegramAPIURL string `env:"TELEGRAM_API_URL" env-default:"https://api.telegram.org"`

	// WebhookSecret is the shared secret Telegram echoes on every webhook call
	WebhookSecret string `env:"WEBHOOK_SECRET"`

	// SupabaseURL is the PostgREST base URL, e.g. https://xxxxx.supabase.co
	SupabaseURL string `env:"SUPABASE_URL"`

	// SupabaseKey is the service-role key (server-side only)
	SupabaseKey string `env:"SUPABASE_SERVICE_ROLE"`

	// AppURL is the dashboard base URL handed out by /start and /link
	AppURL string `env:"APP_URL"`

	// Port is the listen port
	Port string `env:"PORT" env-default:"8000"`

	// LogLevel controls logging verbosity (debug, info, warn, error)
	LogLevel string `env:"FINSIGHT_LOG_LEVEL" env-default:"info"`

	// NgrokPath is the tunnelling executable started by the launcher
	NgrokPath string `env:"NGROK_PATH" env-default:"ngrok"`

	// TunnelAPIURL is the tunnel manager's local status endpoint
	TunnelAPIURL string `env:"NGROK_API_URL" env-default:"http://127.0.0.1:4040/api/tunnels"`
}

// Load reads an optional .env file from the working directory, then builds a Config
// from environment variables, applying defaults where values are not set
func Load() (*Config, error) {
	return LoadFiles(".env")
}

// LoadFiles is Load with explicit dotenv files. Missing files are ignored;
// variables already present in the environment win over file values.
func LoadFiles(files ...string) (*Config, error) {
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", file, err)
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if cfg.Port == "" {
		cfg.Port = DefaultPort
	}
	return &cfg, nil
}

// SupabaseEnabled reports whether both Supabase settings are present
func (c *Config) SupabaseEnabled() bool {
	return c.SupabaseURL != "" && c.SupabaseKey != ""
}

// ValidateLauncher checks the values the local launcher cannot run without
func (c *Config) ValidateLauncher() error {
	var missing []string

	if c.TelegramToken == "" {
		missing = append(missing, "TELEGRAM_TOKEN")
	}
	if c.WebhookSecret == "" {
		missing = append(missing, "WEBHOOK_SECRET")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	return nil
}

// Usage describes the environment variables understood by Config
func Usage() string {
	var cfg Config
	text, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return ""
	}
	return text
}
