// Package transporttest holds the behaviour every transport driver must
// share, run against the echo server.
package transporttest

import (
	"net"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapmux/tether/internal/echo"
	"github.com/leapmux/tether/internal/supervisor"
	"github.com/leapmux/tether/internal/transport"
)

const waitTimeout = 5 * time.Second

// Recorder is a supervisor.Events that buffers everything it receives.
type Recorder struct {
	opened   chan struct{}
	messages chan string
	errs     chan error
	closes   chan int
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		opened:   make(chan struct{}, 8),
		messages: make(chan string, 64),
		errs:     make(chan error, 8),
		closes:   make(chan int, 8),
	}
}

func (r *Recorder) Open() { r.opened <- struct{}{} }

func (r *Recorder) Message(payload string) { r.messages <- payload }

func (r *Recorder) Error(err error) { r.errs <- err }

func (r *Recorder) Close(code int) { r.closes <- code }

// WaitOpen fails the test unless Open arrives in time.
func (r *Recorder) WaitOpen(t testing.TB) {
	t.Helper()
	select {
	case <-r.opened:
	case <-time.After(waitTimeout):
		require.FailNow(t, "timed out waiting for open")
	}
}

// WaitMessage returns the next inbound payload.
func (r *Recorder) WaitMessage(t testing.TB) string {
	t.Helper()
	select {
	case m := <-r.messages:
		return m
	case <-time.After(waitTimeout):
		require.FailNow(t, "timed out waiting for message")
		return ""
	}
}

// WaitClose returns the close code.
func (r *Recorder) WaitClose(t testing.TB) int {
	t.Helper()
	select {
	case code := <-r.closes:
		return code
	case <-time.After(waitTimeout):
		require.FailNow(t, "timed out waiting for close")
		return 0
	}
}

// Err returns the error reported before the close, if any. Call it after
// WaitClose.
func (r *Recorder) Err() error {
	select {
	case err := <-r.errs:
		return err
	default:
		return nil
	}
}

// Opened reports whether Open was received without waiting.
func (r *Recorder) Opened() bool {
	select {
	case <-r.opened:
		return true
	default:
		return false
	}
}

// StartEchoServer runs the echo mux and returns its websocket URL.
func StartEchoServer(t testing.TB) string {
	t.Helper()
	srv := httptest.NewServer(echo.NewMux(nil))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + echo.Path
}

// StartSilentServer accepts TCP connections and never answers, so
// handshakes hang.
func StartSilentServer(t testing.TB) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var mu sync.Mutex
	var conns []net.Conn
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		<-done
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})
	return "ws://" + ln.Addr().String() + "/ws"
}

// RunDriverTests exercises a driver end to end.
func RunDriverTests(t *testing.T, newDialer func(transport.Options) supervisor.Dialer) {
	t.Run("Echo", func(t *testing.T) {
		url := StartEchoServer(t)
		rec := NewRecorder()
		tr, err := newDialer(transport.Options{}).Dial(url, rec)
		require.NoError(t, err)
		defer func() { _ = tr.Close() }()

		rec.WaitOpen(t)
		require.NoError(t, tr.Send("hello"))
		require.NoError(t, tr.Send("world"))
		assert.Equal(t, "hello", rec.WaitMessage(t))
		assert.Equal(t, "world", rec.WaitMessage(t))
	})

	t.Run("HTTPScheme", func(t *testing.T) {
		url := "http" + strings.TrimPrefix(StartEchoServer(t), "ws")
		rec := NewRecorder()
		tr, err := newDialer(transport.Options{}).Dial(url, rec)
		require.NoError(t, err)
		defer func() { _ = tr.Close() }()

		rec.WaitOpen(t)
	})

	t.Run("InvalidEndpoint", func(t *testing.T) {
		d := newDialer(transport.Options{})
		for _, endpoint := range []string{"ftp://example.com/x", "ws://", "://nope"} {
			_, err := d.Dial(endpoint, NewRecorder())
			assert.Error(t, err, endpoint)
		}
	})

	t.Run("ServerCloseCode", func(t *testing.T) {
		for _, code := range []int{supervisor.CloseNormal, supervisor.CloseGoingAway, 4000} {
			url := StartEchoServer(t)
			rec := NewRecorder()
			tr, err := newDialer(transport.Options{}).Dial(url+"?close="+strconv.Itoa(code), rec)
			require.NoError(t, err)

			rec.WaitOpen(t)
			require.NoError(t, tr.Send("bye"))
			assert.Equal(t, "bye", rec.WaitMessage(t))
			assert.Equal(t, code, rec.WaitClose(t))
			assert.NoError(t, rec.Err())
			_ = tr.Close()
		}
	})

	t.Run("ServerDrop", func(t *testing.T) {
		url := StartEchoServer(t)
		rec := NewRecorder()
		tr, err := newDialer(transport.Options{}).Dial(url+"?drop=1", rec)
		require.NoError(t, err)
		defer func() { _ = tr.Close() }()

		rec.WaitOpen(t)
		require.NoError(t, tr.Send("x"))
		assert.Equal(t, supervisor.CloseAbnormal, rec.WaitClose(t))
	})

	t.Run("Refused", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr := ln.Addr().String()
		require.NoError(t, ln.Close())

		rec := NewRecorder()
		tr, err := newDialer(transport.Options{}).Dial("ws://"+addr+"/ws", rec)
		require.NoError(t, err)
		defer func() { _ = tr.Close() }()

		assert.Equal(t, supervisor.CloseAbnormal, rec.WaitClose(t))
		assert.Error(t, rec.Err())
		assert.False(t, rec.Opened())
	})

	t.Run("HandshakeTimeout", func(t *testing.T) {
		url := StartSilentServer(t)
		rec := NewRecorder()
		tr, err := newDialer(transport.Options{HandshakeTimeout: 100 * time.Millisecond}).Dial(url, rec)
		require.NoError(t, err)
		defer func() { _ = tr.Close() }()

		assert.Equal(t, supervisor.CloseAbnormal, rec.WaitClose(t))
		assert.Error(t, rec.Err())
	})

	t.Run("CloseDuringHandshake", func(t *testing.T) {
		url := StartSilentServer(t)
		rec := NewRecorder()
		tr, err := newDialer(transport.Options{}).Dial(url, rec)
		require.NoError(t, err)

		require.NoError(t, tr.Close())
		assert.Equal(t, supervisor.CloseNormal, rec.WaitClose(t))
		assert.NoError(t, rec.Err())
		assert.False(t, rec.Opened())
	})

	t.Run("LocalClose", func(t *testing.T) {
		url := StartEchoServer(t)
		rec := NewRecorder()
		tr, err := newDialer(transport.Options{}).Dial(url, rec)
		require.NoError(t, err)

		rec.WaitOpen(t)
		_ = tr.Close()
		require.NoError(t, tr.Close())
		assert.Equal(t, supervisor.CloseNormal, rec.WaitClose(t))
		assert.NoError(t, rec.Err())
		assert.ErrorIs(t, tr.Send("late"), supervisor.ErrNotOpen)
	})

	t.Run("Compression", func(t *testing.T) {
		url := StartEchoServer(t)
		rec := NewRecorder()
		tr, err := newDialer(transport.Options{Compression: true, WriteTimeout: time.Second}).Dial(url, rec)
		require.NoError(t, err)
		defer func() { _ = tr.Close() }()

		rec.WaitOpen(t)
		payload := strings.Repeat("tether ", 512)
		require.NoError(t, tr.Send(payload))
		assert.Equal(t, payload, rec.WaitMessage(t))
	})

	t.Run("ReadLimit", func(t *testing.T) {
		url := StartEchoServer(t)
		rec := NewRecorder()
		tr, err := newDialer(transport.Options{ReadLimit: 16}).Dial(url, rec)
		require.NoError(t, err)
		defer func() { _ = tr.Close() }()

		rec.WaitOpen(t)
		require.NoError(t, tr.Send(strings.Repeat("x", 64)))
		code := rec.WaitClose(t)
		assert.NotEqual(t, supervisor.CloseNormal, code)
	})
}
