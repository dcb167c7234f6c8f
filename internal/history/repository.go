package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/castleryder/dividend-harvest/internal/contracts"
)

// ErrRunNotFound is returned when a run id is unknown
var ErrRunNotFound = errors.New("harvest run not found")

const schema = `
CREATE SCHEMA IF NOT EXISTS harvest;

CREATE TABLE IF NOT EXISTS harvest.runs (
	run_id          TEXT PRIMARY KEY,
	provider        TEXT        NOT NULL,
	evaluation_date DATE        NOT NULL,
	written_at      TIMESTAMPTZ NOT NULL,
	scanned         INTEGER     NOT NULL,
	qualified       INTEGER     NOT NULL,
	excluded        JSONB       NOT NULL DEFAULT '{}',
	strategy_hash   TEXT        NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS runs_evaluation_date_idx ON harvest.runs (evaluation_date DESC);

CREATE TABLE IF NOT EXISTS harvest.run_records (
	run_id            TEXT    NOT NULL REFERENCES harvest.runs (run_id) ON DELETE CASCADE,
	rank              INTEGER NOT NULL,
	code              TEXT    NOT NULL,
	dividend_yield    DOUBLE PRECISION NOT NULL,
	days_until_ex_div INTEGER,
	record            JSONB   NOT NULL,
	PRIMARY KEY (run_id, rank)
);
`

// Repository persists run history
// ⭐ SSOT: harvest history reads/writes live here only
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new history repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSchema creates the tables if they do not exist
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create history schema: %w", err)
	}
	return nil
}

// RunSummary is one row of the run list
type RunSummary struct {
	RunID          string         `json:"run_id"`
	Provider       string         `json:"provider"`
	EvaluationDate string         `json:"evaluation_date"`
	WrittenAt      time.Time      `json:"written_at"`
	Scanned        int            `json:"scanned"`
	Qualified      int            `json:"qualified"`
	Excluded       map[string]int `json:"excluded"`
	StrategyHash   string         `json:"strategy_hash"`
}

// SaveRun stores a result set and its records in one transaction.
// Saving the same run id twice replaces the earlier copy.
func (r *Repository) SaveRun(ctx context.Context, rs *contracts.ResultSet, strategyHash string) error {
	excludedJSON, err := json.Marshal(rs.Excluded)
	if err != nil {
		return fmt.Errorf("failed to marshal excluded: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "DELETE FROM harvest.runs WHERE run_id = $1", rs.RunID)
	if err != nil {
		return fmt.Errorf("failed to delete old run: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO harvest.runs (
			run_id, provider, evaluation_date, written_at,
			scanned, qualified, excluded, strategy_hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		rs.RunID, rs.Provider, rs.EvaluationDate.Time, rs.WrittenAt,
		rs.Scanned, len(rs.Records), excludedJSON, strategyHash,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	batch := &pgx.Batch{}
	for i := range rs.Records {
		rec := &rs.Records[i]
		recordJSON, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal record %s: %w", rec.Code, err)
		}
		batch.Queue(`
			INSERT INTO harvest.run_records (
				run_id, rank, code, dividend_yield, days_until_ex_div, record
			) VALUES ($1, $2, $3, $4, $5, $6)
		`, rs.RunID, rec.Rank, rec.Code, rec.DividendYield, rec.DaysUntilExDiv, recordJSON)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert run records: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.pool.Query(ctx, `
		SELECT run_id, provider, evaluation_date, written_at,
		       scanned, qualified, excluded, strategy_hash
		FROM harvest.runs
		ORDER BY written_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunSummary, 0)
	for rows.Next() {
		var run RunSummary
		var evalDate time.Time
		var excludedJSON []byte
		if err := rows.Scan(
			&run.RunID, &run.Provider, &evalDate, &run.WrittenAt,
			&run.Scanned, &run.Qualified, &excludedJSON, &run.StrategyHash,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.EvaluationDate = evalDate.Format(contracts.DateLayout)
		if err := json.Unmarshal(excludedJSON, &run.Excluded); err != nil {
			return nil, fmt.Errorf("failed to unmarshal excluded: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return runs, nil
}

// GetRunRecords returns the ranked records of one run
func (r *Repository) GetRunRecords(ctx context.Context, runID string, limit int) ([]contracts.CanonicalRecord, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM harvest.runs WHERE run_id = $1)", runID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to look up run: %w", err)
	}
	if !exists {
		return nil, ErrRunNotFound
	}

	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT record FROM harvest.run_records
		WHERE run_id = $1
		ORDER BY rank ASC
		LIMIT $2
	`, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query run records: %w", err)
	}
	defer rows.Close()

	records := make([]contracts.CanonicalRecord, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		var rec contracts.CanonicalRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return records, nil
}
