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
	Use:   "finsightctl",
	Short: "FinSight operator tooling",
	Long:  `finsightctl - local development launcher and deployment entrypoint for FinSight`,
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
