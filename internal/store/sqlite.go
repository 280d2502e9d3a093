// Package store persists geocoded resolutions in SQLite so a restart does not
// send every previously seen ZIP back to the geocoding service.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bison808/civix"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements civix.ResultStore.
type SQLiteStore struct {
	db     *sql.DB
	maxAge time.Duration
	now    func() time.Time
}

var _ civix.ResultStore = (*SQLiteStore)(nil)

// New opens (creating if needed) the database at path. Entries older than
// maxAge are treated as absent; zero keeps them forever.
func New(path string, maxAge time.Duration) (*SQLiteStore, error) {
	// WAL lets readers proceed while a write is in flight; busy_timeout
	// waits out the single writer instead of failing with SQLITE_BUSY.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, maxAge: maxAge, now: time.Now}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS resolutions (
		zip TEXT PRIMARY KEY,
		state TEXT NOT NULL,
		county TEXT NOT NULL,
		congressional INTEGER NOT NULL,
		source TEXT NOT NULL,
		payload TEXT NOT NULL,
		resolved_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_resolutions_resolved_at ON resolutions(resolved_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get returns the stored resolution for zip, if present and fresh.
func (s *SQLiteStore) Get(ctx context.Context, zip string) (*civix.Resolution, bool, error) {
	var (
		payload    string
		resolvedAt time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, resolved_at FROM resolutions WHERE zip = ?`, zip,
	).Scan(&payload, &resolvedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", zip, err)
	}
	if s.maxAge > 0 && s.now().Sub(resolvedAt) > s.maxAge {
		return nil, false, nil
	}
	var res civix.Resolution
	if err := json.Unmarshal([]byte(payload), &res); err != nil {
		return nil, false, fmt.Errorf("failed to decode %s: %w", zip, err)
	}
	return &res, true, nil
}

// Put inserts or replaces the resolution for res.ZIP.
func (s *SQLiteStore) Put(ctx context.Context, res *civix.Resolution) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal resolution: %w", err)
	}
	resolvedAt := res.ResolvedAt
	if resolvedAt.IsZero() {
		resolvedAt = s.now().UTC()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO resolutions
		(zip, state, county, congressional, source, payload, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, res.ZIP, res.State, res.County, res.Districts.Congressional, string(res.Source),
		string(payload), resolvedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", res.ZIP, err)
	}
	return nil
}

// Purge deletes entries resolved before cutoff and returns how many went.
func (s *SQLiteStore) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	// Times are stored in UTC so the text comparison orders correctly.
	r, err := s.db.ExecContext(ctx, `DELETE FROM resolutions WHERE resolved_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge: %w", err)
	}
	return r.RowsAffected()
}

// Count returns the number of stored entries.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM resolutions`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
