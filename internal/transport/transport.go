// Package transport builds websocket Dialers for the Supervisor.
//
// Drivers live in subpackages and register themselves on import:
//
//	import _ "github.com/leapmux/tether/internal/transport/wsconn"
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"golang.org/x/net/proxy"

	"github.com/leapmux/tether/internal/config"
	"github.com/leapmux/tether/internal/supervisor"
)

// ErrUnsupportedDriver is returned by New for a driver nobody registered.
var ErrUnsupportedDriver = errors.New("unsupported transport driver")

// Options configures a driver.
type Options struct {
	// HandshakeTimeout bounds the TCP dial plus websocket upgrade. Zero
	// means no limit.
	HandshakeTimeout time.Duration
	// WriteTimeout bounds a single Send. Zero means no limit.
	WriteTimeout time.Duration
	// Compression negotiates permessage-deflate.
	Compression bool
	// ReadLimit caps inbound message size in bytes. Zero keeps the driver
	// default.
	ReadLimit int64

	// NetDial opens the TCP connection. Nil dials directly.
	NetDial func(ctx context.Context, network, addr string) (net.Conn, error)
	// Proxy selects an HTTP proxy per request, as http.Transport.Proxy.
	Proxy func(*http.Request) (*url.URL, error)

	Logger *slog.Logger
}

// Factory builds a Dialer from Options.
type Factory func(opts Options) supervisor.Dialer

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a driver available to New under name. It panics if the
// name is taken.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("transport: driver registered twice: " + name)
	}
	registry[name] = f
}

// Drivers returns the registered driver names, sorted.
func Drivers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New returns a Dialer for cfg.Driver configured from cfg.
func New(cfg config.Transport, logger *slog.Logger) (supervisor.Dialer, error) {
	registryMu.RLock()
	f, ok := registry[cfg.Driver]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}

	opts, err := OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		opts.Logger = logger
	}
	return f(opts), nil
}

// OptionsFromConfig translates transport configuration into driver Options.
func OptionsFromConfig(cfg config.Transport) (Options, error) {
	opts := Options{
		HandshakeTimeout: cfg.HandshakeTimeout,
		WriteTimeout:     cfg.WriteTimeout,
		Compression:      cfg.Compression,
		ReadLimit:        cfg.ReadLimit,
	}
	if cfg.Proxy == "" {
		return opts, nil
	}

	u, err := url.Parse(cfg.Proxy)
	if err != nil {
		return Options{}, fmt.Errorf("parse proxy URL: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
		opts.Proxy = http.ProxyURL(u)
	default:
		d, err := NetDialer(cfg.Proxy)
		if err != nil {
			return Options{}, err
		}
		opts.NetDial = d.DialContext
	}
	return opts, nil
}

// NetDialer returns a context dialer that goes through the SOCKS proxy at
// proxyURL, or dials directly when proxyURL is empty.
func NetDialer(proxyURL string) (proxy.ContextDialer, error) {
	if proxyURL == "" {
		return proxy.Direct, nil
	}
	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("parse proxy URL: %w", err)
	}
	d, err := proxy.FromURL(u, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("proxy %s: %w", u.Redacted(), err)
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("proxy %s: dialer does not support contexts", u.Redacted())
	}
	return cd, nil
}

// WebsocketURL validates endpoint and maps http(s) to ws(s).
func WebsocketURL(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("endpoint %q has no host", endpoint)
	}
	return u.String(), nil
}

// HandshakeContext returns ctx bounded by the handshake timeout, if any.
func (o Options) HandshakeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.HandshakeTimeout > 0 {
		return context.WithTimeout(ctx, o.HandshakeTimeout)
	}
	return context.WithCancel(ctx)
}

// WriteContext returns ctx bounded by the write timeout, if any.
func (o Options) WriteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.WriteTimeout > 0 {
		return context.WithTimeout(ctx, o.WriteTimeout)
	}
	return context.WithCancel(ctx)
}

// Log returns the configured logger or the default one.
func (o Options) Log() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}
