package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hszk-dev/framestream/internal/infrastructure/metrics"
)

type responseWriter struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

// statusClass returns the "2xx"-style label for an HTTP status code.
func statusClass(status int) string {
	return strconv.Itoa(status/100) + "xx"
}

// Logger logs one line per request and counts it in HTTPRequestsTotal.
// Server errors log at error level, client errors at warn.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrapResponseWriter(w)

			defer func() {
				metrics.HTTPRequestsTotal.WithLabelValues(r.Method, statusClass(wrapped.status)).Inc()

				level := slog.LevelInfo
				switch {
				case wrapped.status >= http.StatusInternalServerError:
					level = slog.LevelError
				case wrapped.status >= http.StatusBadRequest:
					level = slog.LevelWarn
				}

				logger.LogAttrs(context.Background(), level, "request completed",
					slog.String("request_id", GetRequestID(r.Context())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", wrapped.status),
					slog.Int("bytes", wrapped.bytes),
					slog.Duration("duration", time.Since(start)),
					slog.String("remote_addr", r.RemoteAddr),
					slog.String("user_agent", r.UserAgent()),
				)
			}()

			next.ServeHTTP(wrapped, r)
		})
	}
}
