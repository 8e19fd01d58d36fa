package settings

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Schema for the settings table. Every Save stamps the rows it touches with
// a new revision so watchers can fetch only what changed.
const Schema = `
CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	rev        INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_settings_rev ON settings(rev);
`

// Store persists settings in SQLite.
type Store struct {
	DB *sql.DB
}

// NewStore creates the schema if needed.
func NewStore(ctx context.Context, db *sql.DB) (*Store, error) {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return nil, fmt.Errorf("settings: schema: %w", err)
	}
	return &Store{DB: db}, nil
}

// Load returns the stored settings over the defaults, with the current
// revision.
func (s *Store) Load(ctx context.Context) (Settings, int64, error) {
	changes, rev, err := s.ChangesSince(ctx, 0)
	if err != nil {
		return Settings{}, 0, err
	}
	out, _ := Defaults().Apply(changes)
	return out, rev, nil
}

// Save normalizes and stores changes under one new revision. Nothing is
// written if any key is unknown or invalid.
func (s *Store) Save(ctx context.Context, changes map[string]string) (int64, error) {
	clean := make(map[string]string, len(changes))
	for k, v := range changes {
		n, err := Normalize(k, v)
		if err != nil {
			return 0, err
		}
		clean[k] = n
	}
	if len(clean) == 0 {
		return s.Revision(ctx)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("settings: begin: %w", err)
	}
	defer tx.Rollback()

	var rev int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(rev), 0) + 1 FROM settings`).Scan(&rev); err != nil {
		return 0, fmt.Errorf("settings: next rev: %w", err)
	}
	now := time.Now().UnixMilli()
	for k, v := range clean {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO settings (key, value, rev, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
				value = excluded.value,
				rev = excluded.rev,
				updated_at = excluded.updated_at`,
			k, v, rev, now)
		if err != nil {
			return 0, fmt.Errorf("settings: save %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("settings: commit: %w", err)
	}
	return rev, nil
}

// ChangesSince returns the keys written after rev and the latest revision.
func (s *Store) ChangesSince(ctx context.Context, rev int64) (map[string]string, int64, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT key, value, rev FROM settings WHERE rev > ? ORDER BY rev`, rev)
	if err != nil {
		return nil, 0, fmt.Errorf("settings: query changes: %w", err)
	}
	defer rows.Close()

	changes := make(map[string]string)
	latest := rev
	for rows.Next() {
		var (
			k, v string
			r    int64
		)
		if err := rows.Scan(&k, &v, &r); err != nil {
			return nil, 0, fmt.Errorf("settings: scan: %w", err)
		}
		changes[k] = v
		if r > latest {
			latest = r
		}
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("settings: rows: %w", err)
	}
	return changes, latest, nil
}

// Revision returns the latest revision, 0 when nothing is stored.
func (s *Store) Revision(ctx context.Context) (int64, error) {
	var rev int64
	err := s.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(rev), 0) FROM settings`).Scan(&rev)
	if err != nil {
		return 0, fmt.Errorf("settings: revision: %w", err)
	}
	return rev, nil
}
