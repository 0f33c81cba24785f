package outbox

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_Migrates(t *testing.T) {
	s := openTestStore(t)

	var n int64
	err := s.db.QueryRow("SELECT count(*) FROM outbox").Scan(&n)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestMigrate_Idempotent(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, migrate(s.db))
	require.NoError(t, migrate(s.db))
}

func TestSaveTake_PreservesOrder(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	const ep = "wss://echo.websocket.org"

	require.NoError(t, s.Save(ctx, ep, []string{"a", "b"}))
	require.NoError(t, s.Save(ctx, ep, []string{"c"}))

	n, err := s.Count(ctx, ep)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := s.Take(ctx, ep)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, got)

	n, err = s.Count(ctx, ep)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	got, err = s.Take(ctx, ep)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSave_Empty(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.Save(ctx, "ws://x", nil))

	n, err := s.Count(ctx, "ws://x")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestTake_PartitionedByEndpoint(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Save(ctx, "ws://one", []string{"1a", "1b"}))
	require.NoError(t, s.Save(ctx, "ws://two", []string{"2a"}))

	got, err := s.Take(ctx, "ws://two")
	require.NoError(t, err)
	assert.Equal(t, []string{"2a"}, got)

	n, err := s.Count(ctx, "ws://one")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSaveTake_LargePayloadsCompressed(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	big := strings.Repeat("compress me ", 500)

	require.NoError(t, s.Save(ctx, "ws://x", []string{"small", big, "  spaces  ", "émoji 🚀"}))

	var compressed int
	err := s.db.QueryRow("SELECT count(*) FROM outbox WHERE compression = 1").Scan(&compressed)
	require.NoError(t, err)
	assert.Equal(t, 1, compressed)

	got, err := s.Take(ctx, "ws://x")
	require.NoError(t, err)
	assert.Equal(t, []string{"small", big, "  spaces  ", "émoji 🚀"}, got)
}

func TestOpen_FileSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "outbox.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, "ws://x", []string{"persisted"}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	got, err := s.Take(ctx, "ws://x")
	require.NoError(t, err)
	assert.Equal(t, []string{"persisted"}, got)
}

func TestOldest(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	const ep = "wss://echo.websocket.org"

	_, ok, err := s.Oldest(ctx, ep)
	require.NoError(t, err)
	assert.False(t, ok)

	before := time.Now().Truncate(time.Millisecond)
	require.NoError(t, s.Save(ctx, ep, []string{"a"}))
	after := time.Now()

	got, ok, err := s.Oldest(ctx, ep)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, got.Before(before))
	assert.False(t, got.After(after))

	_, ok, err = s.Oldest(ctx, "ws://other.invalid")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Take(ctx, ep)
	require.NoError(t, err)
	_, ok, err = s.Oldest(ctx, ep)
	require.NoError(t, err)
	assert.False(t, ok)
}
