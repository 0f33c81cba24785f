// Package client is the exported entry point for running a supervised
// connection as a library: it wires configuration, the transport driver,
// the Supervisor and the on-disk outbox together.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/leapmux/tether/internal/config"
	"github.com/leapmux/tether/internal/outbox"
	"github.com/leapmux/tether/internal/supervisor"
	"github.com/leapmux/tether/internal/transport"
	"github.com/leapmux/tether/internal/util/timefmt"

	_ "github.com/leapmux/tether/internal/transport/gorillaws"
	_ "github.com/leapmux/tether/internal/transport/wsconn"
)

// RunConfig holds configuration for running a client.
type RunConfig struct {
	Config    *config.Config          // Required.
	Dialer    supervisor.Dialer       // Overrides the configured driver (tests, custom transports).
	OnMessage func(payload string)    // Inbound payloads, in order.
	OnStatus  func(supervisor.Status) // Every status change, on its own goroutine.
	Logger    *slog.Logger
}

// Client is a running supervised connection.
type Client struct {
	endpoint string
	sup      *supervisor.Supervisor
	store    *outbox.Store
	logger   *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// New starts connecting to cfg.Config.Endpoint. Payloads left in the outbox
// by a previous run for the same endpoint are queued ahead of anything sent
// later.
func New(ctx context.Context, cfg RunConfig) (*Client, error) {
	if cfg.Config == nil {
		return nil, errors.New("config is required")
	}
	if err := cfg.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	endpoint := cfg.Config.Endpoint

	dialer := cfg.Dialer
	if dialer == nil {
		d, err := transport.New(cfg.Config.Transport, logger)
		if err != nil {
			return nil, err
		}
		dialer = d
	}

	var store *outbox.Store
	var restored []string
	if cfg.Config.Outbox.Enabled {
		s, err := outbox.Open(cfg.Config.Outbox.Path)
		if err != nil {
			return nil, fmt.Errorf("open outbox: %w", err)
		}
		oldest, stored, err := s.Oldest(ctx, endpoint)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("restore outbox: %w", err)
		}
		if stored {
			logger.Info("found unsent payloads", "endpoint", endpoint, "since", timefmt.Format(oldest))
		}
		restored, err = s.Take(ctx, endpoint)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("restore outbox: %w", err)
		}
		store = s
	}

	sup, err := supervisor.New(endpoint, supervisor.Options{
		Dialer:    dialer,
		OnMessage: cfg.OnMessage,
		OnStatus:  cfg.OnStatus,
		BackOff:   supervisor.NewPolicy(cfg.Config.Reconnect.BaseDelay, cfg.Config.Reconnect.MaxDelay),
		Logger:    logger,
	})
	if err != nil {
		if store != nil {
			if serr := store.Save(ctx, endpoint, restored); serr != nil {
				logger.Error("failed to return payloads to outbox", "error", serr)
			}
			_ = store.Close()
		}
		return nil, err
	}

	for _, p := range restored {
		sup.Send(p)
	}
	if len(restored) > 0 {
		logger.Info("restored unsent payloads", "endpoint", endpoint, "count", len(restored))
	}

	return &Client{
		endpoint: endpoint,
		sup:      sup,
		store:    store,
		logger:   logger.With("component", "client"),
	}, nil
}

// Endpoint returns the endpoint the client connects to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Send transmits payload now or queues it until the connection opens.
func (c *Client) Send(payload string) {
	c.sup.Send(payload)
}

// Status returns the current connectivity.
func (c *Client) Status() supervisor.Status {
	return c.sup.Status()
}

// Reconnect drops the current connection, if any, and dials again right
// away.
func (c *Client) Reconnect() error {
	return c.sup.Connect()
}

// Disconnect closes the connection and stops reconnecting. Queued payloads
// are kept until Close.
func (c *Client) Disconnect() {
	c.sup.Disconnect()
}

// Close disconnects and writes any payloads still queued to the outbox.
// Safe to call multiple times.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		_ = c.sup.Close()

		pending := c.sup.Pending()
		if c.store == nil {
			if len(pending) > 0 {
				c.logger.Warn("dropping unsent payloads, outbox disabled", "count", len(pending))
			}
			return
		}

		var errs []error
		if err := c.store.Save(context.Background(), c.endpoint, pending); err != nil {
			errs = append(errs, fmt.Errorf("save outbox: %w", err))
		} else if len(pending) > 0 {
			c.logger.Info("saved unsent payloads", "count", len(pending))
		}
		if err := c.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close outbox: %w", err))
		}
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}

// Run starts a client and blocks until ctx is cancelled, then closes it.
func Run(ctx context.Context, cfg RunConfig) error {
	c, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	<-ctx.Done()
	return c.Close()
}
