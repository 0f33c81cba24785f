// Package echo serves a websocket endpoint that sends every frame straight
// back. It backs "tether echo" and the transport tests.
//
// Query parameters make the server misbehave on purpose, after echoing the
// first frame:
//
//	?close=<code>  close with that status code
//	?drop=1        drop the TCP connection without a close frame
package echo

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"

	"github.com/leapmux/tether/internal/logging"
	"github.com/leapmux/tether/internal/metrics"
)

// Path is where NewMux mounts the websocket handler.
const Path = "/ws"

// Handler returns the echo websocket handler. New connections are refused
// with 503 once shutdownCh is closed.
func Handler(shutdownCh <-chan struct{}) http.Handler {
	logger := slog.With("component", "echo")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shutdownCh != nil {
			select {
			case <-shutdownCh:
				http.Error(w, "echo server is shutting down", http.StatusServiceUnavailable)
				return
			default:
			}
		}

		closeCode := 0
		if v := r.URL.Query().Get("close"); v != "" {
			code, err := strconv.Atoi(v)
			if err != nil || code < 1000 || code > 4999 {
				http.Error(w, "invalid close code", http.StatusBadRequest)
				return
			}
			closeCode = code
		}
		drop := r.URL.Query().Get("drop") == "1"

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Debug("accept failed", "error", err)
			return
		}
		defer func() { _ = conn.CloseNow() }()

		metrics.WSEchoConnectionsActive.Inc()
		defer metrics.WSEchoConnectionsActive.Dec()

		ctx := r.Context()
		for {
			typ, data, err := conn.Read(ctx)
			if err != nil {
				if websocket.CloseStatus(err) == -1 {
					logger.Debug("read failed", "error", err)
				}
				return
			}
			if err := conn.Write(ctx, typ, data); err != nil {
				logger.Debug("write failed", "error", err)
				return
			}
			metrics.WSEchoMessagesTotal.Inc()

			switch {
			case drop:
				return
			case closeCode != 0:
				_ = conn.Close(websocket.StatusCode(closeCode), "requested")
				return
			}
		}
	})
}

// NewMux mounts the echo handler at Path and a health check at /healthz.
func NewMux(shutdownCh <-chan struct{}) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(Path, Handler(shutdownCh))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// NewServer returns an HTTP server for addr with request logging and
// metrics around NewMux.
func NewServer(addr string, shutdownCh <-chan struct{}) *http.Server {
	var h http.Handler = NewMux(shutdownCh)
	h = metrics.HTTPMiddleware(h)
	h = logging.HTTPMiddleware(h)
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
