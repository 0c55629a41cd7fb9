package http

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/finsight/finsight/internal/logging"
	"github.com/finsight/finsight/server/http/handlers"
	"github.com/finsight/finsight/server/http/middleware"
)

// Server represents the HTTP server
type Server struct {
	server *http.Server
	host   string
	port   int
}

// Options configures the HTTP server
type Options struct {
	Host string
	Port int

	// Messages backs GET /messages
	Messages handlers.MessageReader

	// Webhook holds the dependencies of POST /webhook/telegram
	Webhook *handlers.WebhookOptions

	Logger *logging.Logger
}

// NewRouter builds the route table shared by the server and its tests
func NewRouter(opts *Options) http.Handler {
	if opts == nil {
		opts = &Options{}
	}

	r := chi.NewRouter()
	r.Use(middleware.Telemetry)
	r.Use(middleware.Logger(opts.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc:  allowAnyOrigin,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{middleware.RequestIDHeader, middleware.ClientRequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", handlers.HealthHandler)
	if opts.Messages != nil {
		r.Get("/messages", handlers.NewMessagesHandler(opts.Messages))
	}
	r.Post("/webhook/telegram", handlers.NewWebhookHandler(opts.Webhook))

	return r
}

// allowAnyOrigin makes cors echo the request origin, which credentialed
// requests require in place of "*"
func allowAnyOrigin(_ *http.Request, _ string) bool {
	return true
}

// NewServer creates a new HTTP server instance
func NewServer(opts *Options) *Server {
	if opts == nil {
		opts = &Options{Port: 8000}
	}

	return &Server{
		server: &http.Server{
			Addr:              net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port)),
			Handler:           NewRouter(opts),
			ReadHeaderTimeout: 10 * time.Second,
		},
		host: opts.Host,
		port: opts.Port,
	}
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Serve accepts connections on l
func (s *Server) Serve(l net.Listener) error {
	return s.server.Serve(l)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Close immediately closes the server
func (s *Server) Close() error {
	return s.server.Close()
}

// Port returns the port the server is configured to listen on
func (s *Server) Port() int {
	return s.port
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return s.server.Addr
}
