package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/leapmux/tether/internal/echo"
	"github.com/leapmux/tether/internal/logging"
)

func runEcho(args []string) error {
	cf := newCommonFlags("echo")
	cf.fs.String("addr", "", "listen address for the echo server")
	cf.bind("addr", "echo.addr")

	cfg, err := cf.load(args)
	if err != nil {
		return err
	}

	logging.PrintBanner(os.Stderr, logging.IsTerminal(os.Stderr), "echo", version, cfg.Echo.Addr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownCh := make(chan struct{})
	srv := echo.NewServer(cfg.Echo.Addr, shutdownCh)

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Metrics.Addr != "" {
		g.Go(func() error { return serveMetrics(gctx, cfg.Metrics.Addr) })
	}
	g.Go(func() error {
		go func() {
			<-gctx.Done()
			close(shutdownCh)
		}()
		return serveUntilDone(gctx, srv, "echo")
	})
	return g.Wait()
}
