package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/finsight/finsight/internal/background"
	"github.com/finsight/finsight/internal/config"
	"github.com/finsight/finsight/internal/logging"
	"github.com/finsight/finsight/internal/store"
	"github.com/finsight/finsight/internal/supabase"
	"github.com/finsight/finsight/internal/telegram"
	"github.com/finsight/finsight/server/bot"
	serverhttp "github.com/finsight/finsight/server/http"
	"github.com/finsight/finsight/server/http/handlers"
)

const (
	defaultHost            = "127.0.0.1"
	defaultShutdownTimeout = 30
	backgroundTaskTimeout  = 30 * time.Second
)

var (
	hostFlag            string
	portFlag            int
	shutdownTimeoutFlag int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the FinSight HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServer(ctx, cmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Long = "Start the FinSight HTTP server (health, messages and Telegram webhook routes).\n\n" +
		"Environment:\n" + config.Usage()

	serveCmd.Flags().StringVar(&hostFlag, "host", defaultHost, "Interface to bind")
	serveCmd.Flags().IntVarP(&portFlag, "port", "p", 0, "Port to listen on (defaults to $PORT, then "+config.DefaultPort+")")
	serveCmd.Flags().IntVar(&shutdownTimeoutFlag, "shutdown-timeout", defaultShutdownTimeout,
		"Graceful shutdown timeout in seconds")
}

func resolvePort(cmd *cobra.Command) (int, error) {
	if cmd.Flags().Changed("port") {
		return portFlag, nil
	}
	port, err := strconv.Atoi(cfg.Port)
	if err != nil {
		return 0, fmt.Errorf("invalid PORT %q: %w", cfg.Port, err)
	}
	return port, nil
}

func runServer(ctx context.Context, cmd *cobra.Command) error {
	port, err := resolvePort(cmd)
	if err != nil {
		return err
	}

	st, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open message log: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("Failed to close message log", logging.Error(err))
		}
	}()

	repo := supabase.NewClient(&supabase.Options{
		URL:        cfg.SupabaseURL,
		Key:        cfg.SupabaseKey,
		MaxRetries: 2,
		Logger:     logger,
	})
	if !repo.Enabled() {
		logger.Warn("Supabase not configured; remote tables disabled")
	}

	tg := telegram.NewClient(&telegram.Options{
		BaseURL: cfg.TelegramAPIURL,
		Token:   cfg.TelegramToken,
		Secret:  cfg.WebhookSecret,
		Logger:  logger,
	})
	if !tg.Enabled() {
		logger.Warn("TELEGRAM_TOKEN not set; replies disabled")
	}
	if cfg.WebhookSecret == "" {
		logger.Warn("WEBHOOK_SECRET not set; webhook accepts unauthenticated calls")
	}

	tasks := background.New(logger, backgroundTaskTimeout)

	server := serverhttp.NewServer(&serverhttp.Options{
		Host:     hostFlag,
		Port:     port,
		Messages: st,
		Webhook: &handlers.WebhookOptions{
			Secret:    cfg.WebhookSecret,
			Log:       st,
			Records:   repo,
			Commands:  bot.New(&bot.Options{Repository: repo, AppURL: cfg.AppURL, Logger: logger}),
			Messenger: tg,
			Tasks:     tasks,
		},
		Logger: logger,
	})

	listener, err := net.Listen("tcp", server.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", server.Addr(), err)
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server listening",
			logging.String("addr", listener.Addr().String()),
			logging.String("db_path", cfg.DBPath))
		serverErrors <- server.Serve(listener)
	}()

	select {
	case err := <-serverErrors:
		_ = tasks.Shutdown(context.Background())
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		logger.Info("Shutdown requested, starting graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(shutdownTimeoutFlag)*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			_ = server.Close()
			_ = tasks.Shutdown(shutdownCtx)
			return fmt.Errorf("could not gracefully shutdown the server: %w", err)
		}
		if err := <-serverErrors; err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Server stopped with error", logging.Error(err))
		}

		if err := tasks.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Background tasks did not finish in time", logging.Error(err))
		}

		logger.Info("Server stopped gracefully")
	}

	return nil
}
