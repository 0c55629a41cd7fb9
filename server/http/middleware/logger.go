package middleware

import (
	"net/http"
	"time"

	"github.com/finsight/finsight/internal/logging"
)

// responseWriter captures the status code written by the handler
type responseWriter struct {
	http.ResponseWriter

	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Logger logs "Request received" and "Response sent" for every request.
// The request-scoped logger, tagged with the telemetry IDs, is stored in
// the request context for handlers.
func Logger(logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Nop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := r.Context()

			var ids []logging.Field
			if id := GetRequestID(ctx); id != "" {
				ids = append(ids, logging.String("request_id", id))
			}
			if id := GetClientRequestID(ctx); id != "" {
				ids = append(ids, logging.String("client_request_id", id))
			}

			reqLogger := logger.With(ids...)
			r = r.WithContext(logging.WithContext(ctx, reqLogger))

			reqLogger.Info("Request received",
				logging.String("method", r.Method),
				logging.String("path", r.URL.Path),
				logging.String("remote_addr", r.RemoteAddr))

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			reqLogger.Info("Response sent",
				logging.String("method", r.Method),
				logging.String("path", r.URL.Path),
				logging.Int("status", rw.statusCode),
				logging.Duration("duration", time.Since(start)))
		})
	}
}
