package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapmux/tether/internal/id"
	"github.com/leapmux/tether/internal/msgcodec"
)

// Store is an on-disk FIFO of payloads, partitioned by endpoint.
type Store struct {
	db        *sql.DB
	threshold int
	logger    *slog.Logger
}

// Open opens (creating if needed) the outbox at path and migrates it.
func Open(path string) (*Store, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{
		db:        db,
		threshold: msgcodec.DefaultThreshold,
		logger:    slog.With("component", "outbox"),
	}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save appends payloads for endpoint after any already stored, preserving
// their order.
func (s *Store) Save(ctx context.Context, endpoint string, payloads []string) error {
	if len(payloads) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var next int64
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) FROM outbox WHERE endpoint = ?", endpoint,
	).Scan(&next); err != nil {
		return fmt.Errorf("read sequence: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO outbox (id, endpoint, seq, compression, body, created_at) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().UnixMilli()
	for _, p := range payloads {
		next++
		body, c := msgcodec.Encode([]byte(p), s.threshold)
		if _, err := stmt.ExecContext(ctx, id.Generate(), endpoint, next, int(c), body, now); err != nil {
			return fmt.Errorf("insert payload: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Debug("saved payloads", "endpoint", endpoint, "count", len(payloads))
	return nil
}

// Take returns every payload stored for endpoint, oldest first, and removes
// them in the same transaction.
func (s *Store) Take(ctx context.Context, endpoint string) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx,
		"SELECT compression, body FROM outbox WHERE endpoint = ? ORDER BY seq", endpoint)
	if err != nil {
		return nil, fmt.Errorf("query payloads: %w", err)
	}

	var payloads []string
	for rows.Next() {
		var c int
		var body []byte
		if err := rows.Scan(&c, &body); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan payload: %w", err)
		}
		data, err := msgcodec.Decompress(body, msgcodec.Compression(c))
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		payloads = append(payloads, string(data))
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate payloads: %w", err)
	}
	_ = rows.Close()

	if _, err := tx.ExecContext(ctx, "DELETE FROM outbox WHERE endpoint = ?", endpoint); err != nil {
		return nil, fmt.Errorf("delete payloads: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	if len(payloads) > 0 {
		s.logger.Debug("restored payloads", "endpoint", endpoint, "count", len(payloads))
	}
	return payloads, nil
}

// Oldest returns when the oldest payload stored for endpoint was saved. ok
// is false when nothing is stored.
func (s *Store) Oldest(ctx context.Context, endpoint string) (t time.Time, ok bool, err error) {
	var ms sql.NullInt64
	if err := s.db.QueryRowContext(ctx,
		"SELECT MIN(created_at) FROM outbox WHERE endpoint = ?", endpoint).Scan(&ms); err != nil {
		return time.Time{}, false, fmt.Errorf("read oldest payload: %w", err)
	}
	if !ms.Valid {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ms.Int64), true, nil
}

// Count returns how many payloads are stored for endpoint.
func (s *Store) Count(ctx context.Context, endpoint string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT count(*) FROM outbox WHERE endpoint = ?", endpoint).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count payloads: %w", err)
	}
	return n, nil
}
