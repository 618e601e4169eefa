package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/go-theft-craft/voxel/internal/block"
	"github.com/go-theft-craft/voxel/internal/world"
)

// EditStore is an append-only SQLite log of block edits. Replaying it in
// order over freshly generated terrain reproduces the edited world.
type EditStore struct {
	db  *sql.DB
	log *slog.Logger
}

// OpenEditStore opens or creates the edit log at path.
func OpenEditStore(path string, log *slog.Logger) (*EditStore, error) {
	if path == "" {
		return nil, errors.New("empty edit store path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create directory for %s: %w", path, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open edit store: %w", err)
	}
	// One writer; the hub already serializes appends.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		`CREATE TABLE IF NOT EXISTS edits (
			seq   INTEGER PRIMARY KEY AUTOINCREMENT,
			x     INTEGER NOT NULL,
			y     INTEGER NOT NULL,
			z     INTEGER NOT NULL,
			block INTEGER NOT NULL,
			peer  TEXT NOT NULL DEFAULT '',
			at    INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS edits_pos ON edits (x, y, z);`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init edit store: %w", err)
		}
	}
	return &EditStore{db: db, log: log}, nil
}

// Append records edits from peer in a single transaction.
func (s *EditStore) Append(ctx context.Context, peer string, edits ...world.Edit) error {
	if len(edits) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO edits (x, y, z, block, peer, at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare append: %w", err)
	}
	defer stmt.Close()

	at := time.Now().UTC().UnixMilli()
	for _, e := range edits {
		if _, err := stmt.ExecContext(ctx, e.X, e.Y, e.Z, int(e.Block), peer, at); err != nil {
			return fmt.Errorf("append edit: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// Replay calls fn for every stored edit in the order it was appended. fn
// must not call back into the store.
func (s *EditStore) Replay(ctx context.Context, fn func(world.Edit) error) error {
	rows, err := s.db.QueryContext(ctx, `SELECT x, y, z, block FROM edits ORDER BY seq`)
	if err != nil {
		return fmt.Errorf("query edits: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e world.Edit
		var bt int
		if err := rows.Scan(&e.X, &e.Y, &e.Z, &bt); err != nil {
			return fmt.Errorf("scan edit: %w", err)
		}
		e.Block = block.Type(bt)
		if err := fn(e); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Edits returns every stored edit in order.
func (s *EditStore) Edits(ctx context.Context) ([]world.Edit, error) {
	var out []world.Edit
	err := s.Replay(ctx, func(e world.Edit) error {
		out = append(out, e)
		return nil
	})
	return out, err
}

// Count returns the number of stored edits.
func (s *EditStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM edits`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count edits: %w", err)
	}
	return n, nil
}

// Compact keeps only the latest edit per position. Replay results are
// unchanged.
func (s *EditStore) Compact(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM edits WHERE seq NOT IN (SELECT MAX(seq) FROM edits GROUP BY x, y, z)`)
	if err != nil {
		return 0, fmt.Errorf("compact edits: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("compact edits: %w", err)
	}
	if n > 0 {
		s.log.Info("compacted edit log", "removed", n)
	}
	return int(n), nil
}

// Close closes the database.
func (s *EditStore) Close() error {
	return s.db.Close()
}
