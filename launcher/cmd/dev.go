package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/finsight/finsight/internal/telegram"
	"github.com/finsight/finsight/launcher/dev"
	"github.com/finsight/finsight/launcher/process"
	"github.com/finsight/finsight/launcher/tunnel"
)

var (
	devPortFlag      int
	devWaitFlag      time.Duration
	devPublicURLFlag string
	devNoServerFlag  bool
	devDetachFlag    bool
	devServerFlag    string
	devNgrokFlag     string
	devTunnelAPIFlag string
)

var devCmd = &cobra.Command{
	Use:   "dev",
	Short: "Run the server behind a tunnel and register the Telegram webhook",
	Long: `Start the server and an ngrok tunnel to it, read the tunnel's public URL
(asking for it when the status API cannot be read), point the Telegram webhook
at <public URL>/webhook/telegram and keep everything running until interrupted.

TELEGRAM_TOKEN and WEBHOOK_SECRET are read from the environment or .env.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.ValidateLauncher(); err != nil {
			return err
		}

		ngrok := cfg.NgrokPath
		if cmd.Flags().Changed("ngrok") {
			ngrok = devNgrokFlag
		}
		tunnelAPI := cfg.TunnelAPIURL
		if cmd.Flags().Changed("tunnel-api") {
			tunnelAPI = devTunnelAPIFlag
		}

		runner := process.NewExecRunner(logger)
		runner.Stdout = cmd.OutOrStdout()
		runner.Stderr = cmd.ErrOrStderr()

		resolver := tunnel.NewResolver(
			tunnel.NewClient(&tunnel.Options{APIURL: tunnelAPI, Logger: logger}),
			tunnel.NewPrompter(cmd.InOrStdin(), cmd.OutOrStdout()),
			logger,
		)

		bot := telegram.NewClient(&telegram.Options{
			BaseURL: cfg.TelegramAPIURL,
			Token:   cfg.TelegramToken,
			Secret:  cfg.WebhookSecret,
			Logger:  logger,
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return dev.Run(ctx, &dev.Options{
			Port:      devPortFlag,
			Wait:      devWaitFlag,
			PublicURL: devPublicURLFlag,
			NoServer:  devNoServerFlag,
			Detach:    devDetachFlag,
			Server:    devServerFlag,
			Ngrok:     ngrok,
			Secret:    cfg.WebhookSecret,
			Runner:    runner,
			Resolver:  resolver,
			Registrar: bot,
			Out:       cmd.OutOrStdout(),
			Logger:    logger,
		})
	},
}

func init() {
	rootCmd.AddCommand(devCmd)
	devCmd.Flags().IntVarP(&devPortFlag, "port", "p", dev.DefaultPort, "Local port for the server and the tunnel")
	devCmd.Flags().DurationVar(&devWaitFlag, "wait", dev.DefaultWait, "Delay before querying the tunnel status API")
	devCmd.Flags().StringVar(&devPublicURLFlag, "public-url", "", "Use this public URL instead of starting a tunnel")
	devCmd.Flags().BoolVar(&devNoServerFlag, "no-server", false, "Do not start the server (one is already running)")
	devCmd.Flags().BoolVar(&devDetachFlag, "detach", false, "Leave the server and tunnel running and exit after registration")
	devCmd.Flags().StringVar(&devServerFlag, "server", dev.DefaultServer, "Server command; --port is appended")
	devCmd.Flags().StringVar(&devNgrokFlag, "ngrok", dev.DefaultNgrok, "Tunnelling executable (defaults to $NGROK_PATH)")
	devCmd.Flags().StringVar(&devTunnelAPIFlag, "tunnel-api", tunnel.DefaultAPIURL, "Tunnel status API URL (defaults to $NGROK_API_URL)")
}
