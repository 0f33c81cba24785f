package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/leapmux/tether/internal/util/httpx"
)

// HTTPMiddleware records request count and duration. Websocket sessions are
// observed once the connection ends, with status 101.
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := httpx.NewRecorder(w)
		next.ServeHTTP(rec, r)

		path := normalizePath(r.URL.Path)
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath keeps label cardinality bounded: known endpoints stay as-is
// and everything else becomes "/other".
func normalizePath(path string) string {
	switch {
	case path == "/metrics", path == "/healthz":
		return path
	case path == "/ws", strings.HasPrefix(path, "/ws/"):
		return "/ws"
	}
	return "/other"
}
