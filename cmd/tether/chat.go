package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/leapmux/tether/client"
	"github.com/leapmux/tether/internal/chat"
	"github.com/leapmux/tether/internal/logging"
	"github.com/leapmux/tether/internal/supervisor"
)

func runChat(args []string) error {
	cf := newCommonFlags("chat")
	cf.fs.String("endpoint", "", "WebSocket endpoint to chat with")
	cf.fs.String("driver", "", "transport driver (coder, gorilla)")
	cf.fs.String("proxy", "", "socks5:// or http:// proxy URL")
	cf.fs.Bool("no-outbox", false, "do not persist unsent messages across runs")
	cf.bind("endpoint", "endpoint")
	cf.bind("driver", "transport.driver")
	cf.bind("proxy", "transport.proxy")

	cfg, err := cf.load(args)
	if err != nil {
		return err
	}
	if f := cf.fs.Lookup("no-outbox"); f != nil && f.Value.String() == "true" {
		cfg.Outbox.Enabled = false
	}

	logging.PrintBanner(os.Stderr, logging.IsTerminal(os.Stderr), "chat", version, cfg.Endpoint)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conv := chat.NewConversation()
	out := &transcript{w: os.Stdout}

	var lastLabel string
	c, err := client.New(ctx, client.RunConfig{
		Config: cfg,
		OnMessage: func(payload string) {
			out.println(chat.Render(conv.AddRemote(payload)))
		},
		OnStatus: func(st supervisor.Status) {
			slog.Debug("status", "status", chat.StatusLine(st))
			if label := chat.Label(st); label != lastLabel {
				lastLabel = label
				out.println("-- " + chat.StatusLine(st) + " --")
			}
		},
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Metrics.Addr != "" {
		g.Go(func() error { return serveMetrics(gctx, cfg.Metrics.Addr) })
	}
	g.Go(func() error {
		defer stop()
		return readInput(gctx, os.Stdin, func(line string) {
			m, ok := conv.AddLocal(line)
			if !ok {
				return
			}
			out.println(chat.Render(m))
			c.Send(m.Text)
		})
	})

	err = g.Wait()
	if cerr := c.Close(); cerr != nil {
		slog.Error("close client", "error", cerr)
	}
	slog.Info("bye")
	return err
}

// readInput calls onLine for every line of r until EOF or ctx is done.
func readInput(ctx context.Context, r io.Reader, onLine func(string)) error {
	lines := make(chan string)
	errCh := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errCh <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			return nil
		case line := <-lines:
			onLine(line)
		}
	}
}

// transcript serializes writes from the input loop and the supervisor
// callbacks.
type transcript struct {
	mu sync.Mutex
	w  io.Writer
}

func (t *transcript) println(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = fmt.Fprintln(t.w, s)
}
