// Package journal keeps a history of fill scans in SQLite.
//
// Recording never blocks the fill path: a failing journal is logged and
// otherwise ignored.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/payfill/fill"
)

// Schema is the DDL for the journal table.
const Schema = `
CREATE TABLE IF NOT EXISTS fill_scans (
    scan_id TEXT PRIMARY KEY,
    page_url TEXT NOT NULL DEFAULT '',
    processor TEXT NOT NULL DEFAULT '',
    forced INTEGER NOT NULL DEFAULT 0,
    skipped TEXT NOT NULL DEFAULT '',
    settings_version INTEGER NOT NULL DEFAULT 0,
    candidates INTEGER NOT NULL DEFAULT 0,
    filled INTEGER NOT NULL DEFAULT 0,
    fields TEXT NOT NULL DEFAULT '[]',
    started_at INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_fill_scans_started ON fill_scans(started_at DESC);
`

// ErrNotFound is returned by Get for an unknown scan ID.
var ErrNotFound = errors.New("journal: scan not found")

// DefaultLimit caps Recent when no limit is given.
const DefaultLimit = 20

// Init applies Schema.
func Init(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("journal: init schema: %w", err)
	}
	return nil
}

// Journal writes and reads scan reports.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a Journal over db. Init must have run. A nil logger uses
// slog.Default().
func New(db *sql.DB, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{db: db, logger: logger}
}

// Record stores rep. Errors are logged, not returned.
func (j *Journal) Record(ctx context.Context, rep fill.Report) {
	fields, err := json.Marshal(rep.Fields)
	if err != nil {
		j.logger.Warn("journal: encode fields", "scan", rep.ID, "error", err)
		fields = []byte("[]")
	}
	_, err = j.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO fill_scans (
			scan_id, page_url, processor, forced, skipped, settings_version,
			candidates, filled, fields, started_at, duration_ms
		) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		rep.ID, rep.PageURL, rep.Processor, rep.Forced, rep.Skipped, int64(rep.SettingsVersion),
		rep.Candidates, rep.Filled(), string(fields),
		rep.StartedAt.UnixMilli(), rep.Duration.Milliseconds())
	if err != nil {
		j.logger.Error("journal: record scan failed", "scan", rep.ID, "error", err)
	}
}

const selectColumns = `scan_id, page_url, processor, forced, skipped, settings_version,
	candidates, fields, started_at, duration_ms`

// Recent returns the latest scans, newest first. limit <= 0 means
// DefaultLimit.
func (j *Journal) Recent(ctx context.Context, limit int) ([]fill.Report, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM fill_scans ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	defer rows.Close()

	var out []fill.Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("journal: recent: %w", err)
		}
		out = append(out, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	return out, nil
}

// Get returns one scan by ID.
func (j *Journal) Get(ctx context.Context, id string) (fill.Report, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM fill_scans WHERE scan_id = ?`, id)
	rep, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return fill.Report{}, ErrNotFound
	}
	if err != nil {
		return fill.Report{}, fmt.Errorf("journal: get: %w", err)
	}
	return rep, nil
}

// Cleanup deletes scans started before now minus retention.
func (j *Journal) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).UnixMilli()
	res, err := j.db.ExecContext(ctx, `DELETE FROM fill_scans WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("journal: cleanup: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(s scanner) (fill.Report, error) {
	var (
		rep        fill.Report
		version    int64
		fields     string
		startedAt  int64
		durationMS int64
	)
	err := s.Scan(&rep.ID, &rep.PageURL, &rep.Processor, &rep.Forced, &rep.Skipped, &version,
		&rep.Candidates, &fields, &startedAt, &durationMS)
	if err != nil {
		return fill.Report{}, err
	}
	if err := json.Unmarshal([]byte(fields), &rep.Fields); err != nil {
		return fill.Report{}, fmt.Errorf("decode fields: %w", err)
	}
	rep.SettingsVersion = uint64(version)
	rep.StartedAt = time.UnixMilli(startedAt)
	rep.Duration = time.Duration(durationMS) * time.Millisecond
	return rep, nil
}
