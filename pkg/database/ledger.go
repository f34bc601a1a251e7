package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const createFiredTable = `
CREATE TABLE IF NOT EXISTS scheduler_fired (
	job      TEXT        NOT NULL,
	fired_on DATE        NOT NULL,
	fired_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (job, fired_on)
)`

// FiredLedger stores one row per (job, date) the scheduler fired on.
// The primary key makes Claim atomic across processes.
type FiredLedger struct {
	db *DB
}

// NewFiredLedger creates the ledger and its table if missing
func NewFiredLedger(ctx context.Context, db *DB) (*FiredLedger, error) {
	if _, err := db.Pool.Exec(ctx, createFiredTable); err != nil {
		return nil, fmt.Errorf("create scheduler_fired: %w", err)
	}
	return &FiredLedger{db: db}, nil
}

// Fired reports whether job has a row for date (YYYY-MM-DD)
func (l *FiredLedger) Fired(ctx context.Context, job, date string) (bool, error) {
	var exists bool
	err := l.db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM scheduler_fired WHERE job = $1 AND fired_on = $2::date)`,
		job, date,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query fired: %w", err)
	}
	return exists, nil
}

// Claim inserts the (job, date) row; false when it already existed
func (l *FiredLedger) Claim(ctx context.Context, job, date string) (bool, error) {
	tag, err := l.db.Pool.Exec(ctx,
		`INSERT INTO scheduler_fired (job, fired_on) VALUES ($1, $2::date) ON CONFLICT DO NOTHING`,
		job, date,
	)
	if err != nil {
		return false, fmt.Errorf("insert fired: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// LastFired returns the latest date job fired on, "" if never
func (l *FiredLedger) LastFired(ctx context.Context, job string) (string, error) {
	var date string
	err := l.db.Pool.QueryRow(ctx,
		`SELECT to_char(fired_on, 'YYYY-MM-DD') FROM scheduler_fired WHERE job = $1 ORDER BY fired_on DESC LIMIT 1`,
		job,
	).Scan(&date)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query last fired: %w", err)
	}
	return date, nil
}
