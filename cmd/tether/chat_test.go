package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadInput_UntilEOF(t *testing.T) {
	var got []string
	err := readInput(context.Background(), strings.NewReader("hi\n\nthere\n"), func(line string) {
		got = append(got, line)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"hi", "", "there"}, got)
}

func TestReadInput_StopsOnCancel(t *testing.T) {
	r, w := io.Pipe()
	defer func() { _ = w.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- readInput(ctx, r, func(string) {}) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("readInput did not return after cancel")
	}
}

func TestTranscript(t *testing.T) {
	var buf bytes.Buffer
	tr := &transcript{w: &buf}
	tr.println("one")
	tr.println("two")
	assert.Equal(t, "one\ntwo\n", buf.String())
}

func TestCommonFlags_OnlySetFlagsOverride(t *testing.T) {
	t.Setenv("TETHER_ENDPOINT", "ws://from-env.invalid/ws")

	cf := newCommonFlags("chat")
	cf.fs.String("endpoint", "", "")
	cf.bind("endpoint", "endpoint")

	cfg, err := cf.load([]string{"-log-level", "debug"})
	require.NoError(t, err)
	assert.Equal(t, "ws://from-env.invalid/ws", cfg.Endpoint)
	assert.Equal(t, "debug", cfg.Log.Level)

	cf = newCommonFlags("chat")
	cf.fs.String("endpoint", "", "")
	cf.bind("endpoint", "endpoint")

	cfg, err = cf.load([]string{"-endpoint", "ws://from-flag.invalid/ws"})
	require.NoError(t, err)
	assert.Equal(t, "ws://from-flag.invalid/ws", cfg.Endpoint)
}
