// Package journal persists one row per received signal in SQLite.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 1000
)

// Entry is one journaled signal. Kind is the signal type, or "dropped" for
// packets that failed to decode.
type Entry struct {
	ID        int64     `json:"id"`
	SignalID  string    `json:"signal_id,omitempty"`
	Kind      string    `json:"kind"`
	Command   string    `json:"command,omitempty"`
	Origin    string    `json:"origin,omitempty"`
	Digest    string    `json:"digest,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Record appends e. CreatedAt defaults to now.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.Kind == "" {
		return fmt.Errorf("journal entry kind is empty")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO signal_journal(signal_id, kind, command, origin, digest, detail, created_at)
VALUES(?, ?, ?, ?, ?, ?, ?);
`, e.SignalID, e.Kind, e.Command, e.Origin, e.Digest, e.Detail, e.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. A non-positive limit
// uses the default.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, COALESCE(signal_id, ''), kind, COALESCE(command, ''), COALESCE(origin, ''),
       COALESCE(digest, ''), COALESCE(detail, ''), created_at
FROM signal_journal
ORDER BY id DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			created string
		)
		if err := rows.Scan(&e.ID, &e.SignalID, &e.Kind, &e.Command, &e.Origin, &e.Digest, &e.Detail, &created); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", created, err)
		}
		e.CreatedAt = t
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return out, nil
}

// Prune deletes entries older than cutoff and returns how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM signal_journal WHERE created_at < ?;", cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("prune journal: %w", err)
	}
	return res.RowsAffected()
}
