// Package reportdb persists finished run reports to Postgres so batch
// outcomes can be inspected and joined after the process exits.
package reportdb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ShopRunner/wildebeest/pipeline"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS run_records (
	run_id        text        NOT NULL,
	inpath        text        NOT NULL,
	outpath       text        NOT NULL DEFAULT '',
	skipped       boolean     NOT NULL DEFAULT false,
	error         text        NOT NULL DEFAULT '',
	time_finished timestamptz NOT NULL,
	extras        jsonb       NOT NULL DEFAULT '{}',
	PRIMARY KEY (run_id, inpath)
)`

// Store writes run reports to a Postgres database.
type Store struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

// New connects to databaseURL and ensures the run_records table exists.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to report database: %w", err)
	}
	s := &Store{db: pool, timeout: 30 * time.Second}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating run_records table: %w", err)
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.db.Close()
}

// Save inserts one row per report record under runID, replacing any rows a
// previous save of the same run left behind. Extra report columns are
// stored as JSON.
func (s *Store) Save(ctx context.Context, runID string, report *pipeline.RunReport) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("beginning report transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM run_records WHERE run_id = $1`, runID); err != nil {
		return fmt.Errorf("clearing previous rows for run %s: %w", runID, err)
	}

	for _, inpath := range report.Paths() {
		rec, _ := report.Record(inpath)

		extras := make(map[string]any, len(rec.ExtraKeys()))
		for _, key := range rec.ExtraKeys() {
			v, _ := rec.Value(key)
			extras[key] = v
		}
		extrasJSON, err := json.Marshal(extras)
		if err != nil {
			return fmt.Errorf("encoding extras for %s: %w", inpath, err)
		}

		errStr := ""
		if rec.Err != nil {
			errStr = rec.Err.Error()
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO run_records (run_id, inpath, outpath, skipped, error, time_finished, extras)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			runID, inpath, rec.Outpath, rec.Skipped, errStr, rec.TimeFinished, extrasJSON,
		)
		if err != nil {
			return fmt.Errorf("inserting row for %s: %w", inpath, err)
		}
	}

	return tx.Commit(ctx)
}
