package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// requestLogger logs one line per completed request with the chi request
// id for correlation.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
				"remote", r.RemoteAddr)
		})
	}
}

// extractActor resolves the acting principal for audit events. The request
// body's actor field, when present, wins over the header.
func extractActor(r *http.Request, bodyActor string) string {
	if bodyActor != "" {
		return bodyActor
	}
	if principal := r.Header.Get("X-User-Principal"); principal != "" {
		return principal
	}
	return "anonymous"
}
