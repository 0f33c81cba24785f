// Package wsconn is the coder/websocket transport driver, registered as
// "coder".
package wsconn

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/leapmux/tether/internal/config"
	"github.com/leapmux/tether/internal/supervisor"
	"github.com/leapmux/tether/internal/transport"
)

func init() {
	transport.Register(config.DriverCoder, func(opts transport.Options) supervisor.Dialer {
		return NewDialer(opts)
	})
}

// Dialer opens coder/websocket connections.
type Dialer struct {
	opts   transport.Options
	client *http.Client
}

// NewDialer returns a Dialer using opts.
func NewDialer(opts transport.Options) *Dialer {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if opts.NetDial != nil {
		tr.DialContext = opts.NetDial
	}
	if opts.Proxy != nil {
		tr.Proxy = opts.Proxy
	}
	return &Dialer{opts: opts, client: &http.Client{Transport: tr}}
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
		logger: d.opts.Log().With("component", "wsconn"),
	}
	go c.run(ctx, u, d.client)
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

	finishOnce sync.Once
}

func (c *Conn) run(ctx context.Context, u string, client *http.Client) {
	defer c.cancel()

	mode := websocket.CompressionDisabled
	if c.opts.Compression {
		mode = websocket.CompressionContextTakeover
	}

	dctx, dcancel := c.opts.HandshakeContext(ctx)
	ws, _, err := websocket.Dial(dctx, u, &websocket.DialOptions{
		HTTPClient:      client,
		CompressionMode: mode,
	})
	dcancel()
	if err != nil {
		c.fail(err)
		return
	}
	if c.opts.ReadLimit > 0 {
		ws.SetReadLimit(c.opts.ReadLimit)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = ws.Close(websocket.StatusNormalClosure, "")
		c.finish(supervisor.CloseNormal, nil)
		return
	}
	c.ws = ws
	c.mu.Unlock()

	c.logger.Debug("websocket open", "url", u)
	c.events.Open()

	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			c.readFailed(err)
			return
		}
		if typ != websocket.MessageText {
			c.logger.Debug("binary frame delivered as text", "bytes", len(data))
		}
		c.events.Message(string(data))
	}
}

func (c *Conn) readFailed(err error) {
	if code := websocket.CloseStatus(err); code != -1 {
		c.finish(int(code), nil)
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

	ctx, cancel := c.opts.WriteContext(context.Background())
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, []byte(payload))
}

// Close performs a normal closure, or abandons the handshake if it is
// still in progress. It is safe to call more than once.
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
	err := ws.Close(websocket.StatusNormalClosure, "")
	c.cancel()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
