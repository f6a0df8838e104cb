// Package history keeps a local log of captures in SQLite, backing
// duplicate suppression across runs and the live server's history endpoint.
package history

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "github.com/scopegrab/scopegrab/internal/errors"
)

// Capture is one recorded grab.
type Capture struct {
	ID      int64     `json:"id"`
	TakenAt time.Time `json:"taken_at"`
	Model   string    `json:"model"`
	Path    string    `json:"path"`
	Format  string    `json:"format"`
	Note    string    `json:"note,omitempty"`
	PHash   uint64    `json:"-"`
}

// Store wraps the capture log database.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the capture log at path.
// ":memory:" works for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeConfigInvalid, "open capture log %q", path)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, apperrors.Wrap(err, apperrors.CodeConfigInvalid, "migrate capture log")
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS captures (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		taken_at DATETIME NOT NULL,
		model TEXT NOT NULL,
		path TEXT NOT NULL,
		format TEXT NOT NULL,
		note TEXT DEFAULT '',
		phash INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_captures_taken_at ON captures(taken_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the capture log.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts a capture and returns its row ID.
func (s *Store) Record(ctx context.Context, c Capture) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO captures (taken_at, model, path, format, note, phash)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.TakenAt.UTC(), c.Model, c.Path, c.Format, c.Note, int64(c.PHash))
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeInternal, "record capture")
	}
	return res.LastInsertId()
}

// Recent returns up to n captures, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Capture, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, taken_at, model, path, format, note, phash
		FROM captures ORDER BY id DESC LIMIT ?
	`, n)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "query captures")
	}
	defer rows.Close()

	var out []Capture
	for rows.Next() {
		var c Capture
		var phash int64
		if err := rows.Scan(&c.ID, &c.TakenAt, &c.Model, &c.Path, &c.Format, &c.Note, &phash); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "scan capture")
		}
		c.PHash = uint64(phash)
		out = append(out, c)
	}
	return out, rows.Err()
}

// LastHash returns the perceptual hash of the newest recorded capture.
// The second return is false when the log is empty.
func (s *Store) LastHash(ctx context.Context) (uint64, bool, error) {
	var phash int64
	err := s.db.QueryRowContext(ctx, `
		SELECT phash FROM captures ORDER BY id DESC LIMIT 1
	`).Scan(&phash)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, apperrors.Wrap(err, apperrors.CodeInternal, "query last hash")
	}
	return uint64(phash), true, nil
}
