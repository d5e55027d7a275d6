package middleware

import (
	"context"
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
)

type ctxKey int

const RequestIDKey ctxKey = iota

// RequestID copies chi's request ID to our context key and echoes it in the
// X-Request-Id response header. It must be used AFTER chi's RequestID
// middleware in the chain; requests without a chi ID pass through untagged.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := chimw.GetReqID(r.Context())
		if requestID == "" {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("X-Request-Id", requestID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), RequestIDKey, requestID)))
	})
}

// GetRequestID retrieves the request ID from context.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// LoggerWithRequestID returns base tagged with the request ID carried by
// ctx, or base itself when there is none.
func LoggerWithRequestID(ctx context.Context, base *slog.Logger) *slog.Logger {
	if id := GetRequestID(ctx); id != "" {
		return base.With(slog.String("request_id", id))
	}
	return base
}
