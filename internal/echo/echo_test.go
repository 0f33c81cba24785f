package echo

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wsURL(srv *httptest.Server, query string) string {
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + Path
	if query != "" {
		u += "?" + query
	}
	return u
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL(srv, query), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func TestHealthz(t *testing.T) {
	srv := httptest.NewServer(NewMux(nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}

func TestEcho_RoundTrip(t *testing.T) {
	srv := httptest.NewServer(NewMux(nil))
	defer srv.Close()
	conn := dial(t, srv, "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, msg := range []string{"hello", "world", ""} {
		require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(msg)))
		typ, data, err := conn.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, websocket.MessageText, typ)
		assert.Equal(t, msg, string(data))
	}
	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
}

func TestEcho_CloseAfterFirstFrame(t *testing.T) {
	srv := httptest.NewServer(NewMux(nil))
	defer srv.Close()
	conn := dial(t, srv, "close=4000")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("ping")))
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(data))

	_, _, err = conn.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusCode(4000), websocket.CloseStatus(err))
}

func TestEcho_DropAfterFirstFrame(t *testing.T) {
	srv := httptest.NewServer(NewMux(nil))
	defer srv.Close()
	conn := dial(t, srv, "drop=1")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("ping")))
	_, _, err := conn.Read(ctx)
	require.NoError(t, err)

	_, _, err = conn.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusCode(-1), websocket.CloseStatus(err))
}

func TestEcho_InvalidCloseCode(t *testing.T) {
	srv := httptest.NewServer(NewMux(nil))
	defer srv.Close()

	for _, q := range []string{"close=abc", "close=999", "close=5000"} {
		t.Run(q, func(t *testing.T) {
			resp, err := http.Get(srv.URL + Path + "?" + q)
			require.NoError(t, err)
			_ = resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestEcho_RefusesAfterShutdown(t *testing.T) {
	shutdownCh := make(chan struct{})
	srv := httptest.NewServer(NewMux(shutdownCh))
	defer srv.Close()

	dial(t, srv, "")
	close(shutdownCh)

	resp, err := http.Get(srv.URL + Path)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestNewServer(t *testing.T) {
	s := NewServer("127.0.0.1:0", nil)
	assert.Equal(t, "127.0.0.1:0", s.Addr)
	assert.NotNil(t, s.Handler)

	srv := httptest.NewServer(s.Handler)
	defer srv.Close()
	conn := dial(t, srv, "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("through middleware")))
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "through middleware", string(data))
}
