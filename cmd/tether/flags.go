package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leapmux/tether/internal/config"
	"github.com/leapmux/tether/internal/logging"
	"github.com/leapmux/tether/internal/metrics"
)

// commonFlags are shared by every subcommand. Only flags given on the
// command line override the config file and environment.
type commonFlags struct {
	fs          *flag.FlagSet
	configPath  *string
	logLevel    *string
	metricsAddr *string
	overrides   map[string]string // flag name -> config key
}

func newCommonFlags(name string) *commonFlags {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	return &commonFlags{
		fs:          fs,
		configPath:  fs.String("config", "", "path to a YAML config file"),
		logLevel:    fs.String("log-level", "info", "log level (debug, info, warn, error)"),
		metricsAddr: fs.String("metrics-addr", "", "serve Prometheus metrics on this address"),
		overrides: map[string]string{
			"log-level":    "log.level",
			"metrics-addr": "metrics.addr",
		},
	}
}

// bind maps a flag to a config key for load.
func (c *commonFlags) bind(flagName, key string) {
	c.overrides[flagName] = key
}

// load parses args, loads the configuration and applies its log level.
func (c *commonFlags) load(args []string) (*config.Config, error) {
	_ = c.fs.Parse(args)

	overrides := map[string]any{}
	c.fs.Visit(func(f *flag.Flag) {
		if key, ok := c.overrides[f.Name]; ok {
			overrides[key] = f.Value.(flag.Getter).Get()
		}
	})

	cfg, err := config.Load(*c.configPath, overrides)
	if err != nil {
		return nil, err
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	logging.SetLevel(level)
	return cfg, nil
}

// serveMetrics exposes /metrics on addr until ctx is done.
func serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           logging.HTTPMiddleware(metrics.HTTPMiddleware(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return serveUntilDone(ctx, srv, "metrics")
}

// serveUntilDone runs srv and shuts it down gracefully when ctx is done.
func serveUntilDone(ctx context.Context, srv *http.Server, name string) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	slog.Info("listening", "server", name, "addr", srv.Addr)

	select {
	case err := <-errCh:
		return fmt.Errorf("%s server: %w", name, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s server shutdown: %w", name, err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s server: %w", name, err)
	}
	return nil
}
