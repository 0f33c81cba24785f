// Package gorillaws is the gorilla/websocket transport driver, registered as
// "gorilla".
package gorillaws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/leapmux/tether/internal/config"
	"github.com/leapmux/tether/internal/supervisor"
	"github.com/leapmux/tether/internal/transport"
)

// closeGrace is how long Close waits for the peer to answer a close frame.
const closeGrace = time.Second

func init() {
	transport.Register(config.DriverGorilla, func(opts transport.Options) supervisor.Dialer {
		return NewDialer(opts)
	})
}

// Dialer opens gorilla/websocket connections.
type Dialer struct {
	opts   transport.Options
	dialer *websocket.Dialer
}

// NewDialer returns a Dialer using opts.
func NewDialer(opts transport.Options) *Dialer {
	d := &websocket.Dialer{
		Proxy:             http.ProxyFromEnvironment,
		HandshakeTimeout:  opts.HandshakeTimeout,
		EnableCompression: opts.Compression,
		NetDialContext:    opts.NetDial,
	}
	if opts.Proxy != nil {
		d.Proxy = opts.Proxy
	}
	return &Dialer{opts: opts, dialer: d}
}

// Dial starts connecting to endpoint in the background and returns the
// handle right away. The outcome arrives through events.
func (d *Dialer) Dial(endpoint string, events supervisor.Events) (supervisor.Transport, error) {
	u, err := transport.WebsocketURL(endpoint)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		opts:   d.opts,
		events: events,
		cancel: cancel,
		logger: d.opts.Log().With("component", "gorillaws"),
	}
	go c.run(ctx, u, d.dialer)
	return c, nil
}

// Conn is one websocket connection attempt.
type Conn struct {
	opts   transport.Options
	events supervisor.Events
	cancel context.CancelFunc
	logger *slog.Logger

	mu     sync.Mutex
	ws     *websocket.Conn
	closed bool

	// gorilla allows a single concurrent writer.
	writeMu sync.Mutex

	finishOnce sync.Once
}

func (c *Conn) run(ctx context.Context, u string, dialer *websocket.Dialer) {
	defer c.cancel()

	ws, resp, err := dialer.DialContext(ctx, u, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		c.fail(err)
		return
	}
	defer func() { _ = ws.Close() }()
	if c.opts.ReadLimit > 0 {
		ws.SetReadLimit(c.opts.ReadLimit)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.writeClose(ws)
		c.finish(supervisor.CloseNormal, nil)
		return
	}
	c.ws = ws
	c.mu.Unlock()

	c.logger.Debug("websocket open", "url", u)
	c.events.Open()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.readFailed(err)
			return
		}
		c.events.Message(string(data))
	}
}

func (c *Conn) readFailed(err error) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		c.finish(ce.Code, nil)
		return
	}
	c.fail(err)
}

// fail reports an error followed by an abnormal close, unless the failure
// was caused by our own Close.
func (c *Conn) fail(err error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		c.finish(supervisor.CloseNormal, nil)
		return
	}
	c.finish(supervisor.CloseAbnormal, err)
}

func (c *Conn) finish(code int, err error) {
	c.finishOnce.Do(func() {
		if err != nil {
			c.events.Error(err)
		}
		c.events.Close(code)
	})
}

// Send writes payload as a text frame.
func (c *Conn) Send(payload string) error {
	c.mu.Lock()
	ws, closed := c.ws, c.closed
	c.mu.Unlock()
	if ws == nil || closed {
		return supervisor.ErrNotOpen
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	var deadline time.Time
	if c.opts.WriteTimeout > 0 {
		deadline = time.Now().Add(c.opts.WriteTimeout)
	}
	if err := ws.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return ws.WriteMessage(websocket.TextMessage, []byte(payload))
}

func (c *Conn) writeClose(ws *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace)); err != nil {
		c.logger.Debug("write close frame", "error", err)
	}
}

// Close sends a normal-closure frame and gives the peer closeGrace to
// answer before the read loop gives up. A handshake in progress is
// abandoned. It is safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	ws := c.ws
	c.mu.Unlock()

	if ws == nil {
		c.cancel()
		return nil
	}
	c.writeClose(ws)
	return ws.SetReadDeadline(time.Now().Add(closeGrace))
}
