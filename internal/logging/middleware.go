package logging

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/leapmux/tether/internal/util/httpx"
)

// HTTPMiddleware logs every request with method, path, status code and
// duration. Websocket upgrades are logged when the connection ends.
func HTTPMiddleware(next http.Handler) http.Handler {
	logger := slog.With("component", "http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := httpx.NewRecorder(w)
		next.ServeHTTP(rec, r)
		logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.Status(),
			"hijacked", rec.Hijacked(),
			"duration", time.Since(start),
		)
	})
}
