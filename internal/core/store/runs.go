package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/storyloom/storyloom/internal/core"
)

// RunRecord is a persisted run header.
type RunRecord struct {
	RunID       string
	Pipeline    string
	Model       string
	Mode        string
	Status      core.RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
}

// SaveRun persists the run header once the run has reached a terminal
// state. Step results are written as they complete; the header ties them
// together for later listing.
func (s *Store) SaveRun(ctx context.Context, pipeline, model, mode string, run *core.RunResult) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if run == nil || strings.TrimSpace(run.RunID) == "" {
		return errors.New("run result with run id is required")
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO runs (run_id, pipeline, model, mode, status, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, strings.TrimSpace(run.RunID), pipeline, model, mode, string(run.Status),
		run.StartedAt.UTC().Unix(), run.CompletedAt.UTC().Unix())
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// RecordStep persists one step result. Each (run, step) pair is written
// exactly once, mirroring the in-memory run state.
func (s *Store) RecordStep(ctx context.Context, runID string, result core.StepResult) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	runID = strings.TrimSpace(runID)
	if runID == "" {
		return errors.New("run id is required")
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO step_results (run_id, step_id, status, model, payload, message, latency_ms, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, result.StepID, string(result.Status), result.Model,
		string(result.Payload), result.Message, result.Latency.Milliseconds(),
		result.CompletedAt.UTC().Unix())
	if err != nil {
		return fmt.Errorf("record step: %w", err)
	}
	return nil
}

// GetRunSteps returns the persisted step results for a run in completion order.
func (s *Store) GetRunSteps(ctx context.Context, runID string) ([]core.StepResult, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT step_id, status, model, payload, message, latency_ms, completed_at
		FROM step_results
		WHERE run_id = ?
		ORDER BY id ASC
	`, strings.TrimSpace(runID))
	if err != nil {
		return nil, fmt.Errorf("fetch run steps: %w", err)
	}
	defer rows.Close() // nolint:errcheck

	var results []core.StepResult
	for rows.Next() {
		var (
			result      core.StepResult
			status      string
			model       sql.NullString
			payload     sql.NullString
			message     sql.NullString
			latencyMs   int64
			completedAt int64
		)
		if err := rows.Scan(&result.StepID, &status, &model, &payload, &message, &latencyMs, &completedAt); err != nil {
			return nil, fmt.Errorf("scan step result: %w", err)
		}
		result.Status = core.StepStatus(status)
		result.Model = model.String
		if payload.Valid && payload.String != "" {
			result.Payload = []byte(payload.String)
		}
		result.Message = message.String
		result.Latency = time.Duration(latencyMs) * time.Millisecond
		result.CompletedAt = time.Unix(completedAt, 0).UTC()
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate step results: %w", err)
	}
	return results, nil
}

// ListRuns returns the most recent run headers, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT run_id, pipeline, model, mode, status, started_at, completed_at
		FROM runs
		ORDER BY started_at DESC, run_id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close() // nolint:errcheck

	var records []RunRecord
	for rows.Next() {
		var (
			record      RunRecord
			status      string
			startedAt   int64
			completedAt sql.NullInt64
		)
		if err := rows.Scan(&record.RunID, &record.Pipeline, &record.Model, &record.Mode, &status, &startedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		record.Status = core.RunStatus(status)
		record.StartedAt = time.Unix(startedAt, 0).UTC()
		if completedAt.Valid {
			value := time.Unix(completedAt.Int64, 0).UTC()
			record.CompletedAt = &value
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return records, nil
}
