// Package store journals research runs in Postgres.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/mohammad-safakhou/researcher/internal/agent/core"
)

// Run statuses.
const (
	RunStatusRunning  = "running"
	RunStatusFinished = "finished"
	RunStatusFailed   = "failed"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("not found")

type Store struct {
	DB *sql.DB
}

// RunRecord is one journaled run.
type RunRecord struct {
	ID             string           `json:"id"`
	Role           string           `json:"role"`
	Objectives     []core.Objective `json:"objectives"`
	Iterations     int              `json:"iterations"`
	Trigger        string           `json:"trigger"`
	Status         string           `json:"status"`
	Error          string           `json:"error,omitempty"`
	FinalNarrative string           `json:"final_narrative,omitempty"`
	StartedAt      time.Time        `json:"started_at"`
	FinishedAt     *time.Time       `json:"finished_at,omitempty"`
}

// IterationRecord is the state a run left one iteration with.
type IterationRecord struct {
	RunID      string           `json:"run_id"`
	Round      int              `json:"round"`
	Objectives []core.Objective `json:"objectives"`
	Findings   core.Findings    `json:"findings"`
	CreatedAt  time.Time        `json:"created_at"`
}

// NewWithDSN opens and pings the database.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

// CreateRun inserts a run in the running state.
func (s *Store) CreateRun(ctx context.Context, run RunRecord) error {
	objectives, err := json.Marshal(run.Objectives)
	if err != nil {
		return fmt.Errorf("encode objectives: %w", err)
	}
	trigger := run.Trigger
	if trigger == "" {
		trigger = "manual"
	}
	_, err = s.DB.ExecContext(ctx, `
INSERT INTO runs (id, role, objectives, iterations, trigger, status, started_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW())`,
		run.ID, run.Role, objectives, run.Iterations, trigger, RunStatusRunning)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun records the outcome. A nil runErr marks the run finished.
func (s *Store) FinishRun(ctx context.Context, id string, runErr error, narrative string) error {
	status, msg := RunStatusFinished, ""
	if runErr != nil {
		status, msg = RunStatusFailed, runErr.Error()
	}
	res, err := s.DB.ExecContext(ctx, `
UPDATE runs SET status = $2, error = $3, final_narrative = $4, finished_at = NOW()
WHERE id = $1`, id, status, msg, narrative)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return nil
}

// SaveIteration upserts the end-of-iteration state.
func (s *Store) SaveIteration(ctx context.Context, rec IterationRecord) error {
	objectives, err := json.Marshal(rec.Objectives)
	if err != nil {
		return fmt.Errorf("encode objectives: %w", err)
	}
	findings, err := json.Marshal(rec.Findings)
	if err != nil {
		return fmt.Errorf("encode findings: %w", err)
	}
	_, err = s.DB.ExecContext(ctx, `
INSERT INTO run_iterations (run_id, round, objectives, findings, created_at)
VALUES ($1,$2,$3,$4,NOW())
ON CONFLICT (run_id, round) DO UPDATE SET
  objectives = EXCLUDED.objectives,
  findings = EXCLUDED.findings`, rec.RunID, rec.Round, objectives, findings)
	if err != nil {
		return fmt.Errorf("upsert iteration: %w", err)
	}
	return nil
}

// SaveNarrative upserts the narrative written in round.
func (s *Store) SaveNarrative(ctx context.Context, runID string, round int, markdown string) error {
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO run_narratives (run_id, round, markdown, created_at)
VALUES ($1,$2,$3,NOW())
ON CONFLICT (run_id, round) DO UPDATE SET markdown = EXCLUDED.markdown`, runID, round, markdown)
	if err != nil {
		return fmt.Errorf("upsert narrative: %w", err)
	}
	return nil
}

const runColumns = `id, role, objectives, iterations, trigger, status, error, final_narrative, started_at, finished_at`

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var out []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetRun loads one run.
func (s *Store) GetRun(ctx context.Context, id string) (RunRecord, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, id)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return rec, err
}

// ListIterations returns the journaled iterations of a run in round order.
func (s *Store) ListIterations(ctx context.Context, runID string) ([]IterationRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT run_id, round, objectives, findings, created_at
FROM run_iterations WHERE run_id = $1 ORDER BY round`, runID)
	if err != nil {
		return nil, fmt.Errorf("list iterations: %w", err)
	}
	defer rows.Close()
	var out []IterationRecord
	for rows.Next() {
		var rec IterationRecord
		var objectives, findings []byte
		if err := rows.Scan(&rec.RunID, &rec.Round, &objectives, &findings, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan iteration: %w", err)
		}
		if err := json.Unmarshal(objectives, &rec.Objectives); err != nil {
			return nil, fmt.Errorf("decode objectives: %w", err)
		}
		if err := json.Unmarshal(findings, &rec.Findings); err != nil {
			return nil, fmt.Errorf("decode findings: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunRecord, error) {
	var rec RunRecord
	var objectives []byte
	var finished sql.NullTime
	if err := row.Scan(&rec.ID, &rec.Role, &objectives, &rec.Iterations, &rec.Trigger, &rec.Status, &rec.Error, &rec.FinalNarrative, &rec.StartedAt, &finished); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunRecord{}, err
		}
		return RunRecord{}, fmt.Errorf("scan run: %w", err)
	}
	if len(objectives) > 0 {
		if err := json.Unmarshal(objectives, &rec.Objectives); err != nil {
			return RunRecord{}, fmt.Errorf("decode objectives: %w", err)
		}
	}
	if finished.Valid {
		t := finished.Time
		rec.FinishedAt = &t
	}
	return rec, nil
}
