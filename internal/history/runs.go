package history

import (
	"context"
	"fmt"

	"github.com/aristath/swarm/internal/scheduler"
)

// CreateRun inserts a new run row. The caller supplies the ID, typically a
// UUID, so it can correlate results before the run finishes.
func (s *SQLiteStore) CreateRun(ctx context.Context, id, goal, discipline string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, goal, discipline) VALUES (?, ?, ?)`,
		id, goal, discipline)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// FinishRun records the final counts and the completion timestamp.
func (s *SQLiteStore) FinishRun(ctx context.Context, id string, completed, failed int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET completed = ?, failed = ?, finished_at = CURRENT_TIMESTAMP WHERE id = ?`,
		completed, failed, id)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run %q not found", id)
	}
	return nil
}

// SaveResult persists one task result under a run.
func (s *SQLiteStore) SaveResult(ctx context.Context, runID string, result scheduler.SubTaskResult) error {
	success := 0
	if result.Success {
		success = 1
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO task_results (run_id, task_id, success, output, error, execution_time_ms)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		runID, result.TaskID, success, result.Output, result.Error, result.ExecutionTimeMS)
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

// SaveScalingEvent persists one applied scaling decision under a run.
func (s *SQLiteStore) SaveScalingEvent(ctx context.Context, ev ScalingEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scaling_events (run_id, action, workers) VALUES (?, ?, ?)`,
		ev.RunID, ev.Action, ev.Workers)
	if err != nil {
		return fmt.Errorf("failed to save scaling event: %w", err)
	}
	return nil
}

// GetResults returns all task results for a run in insertion order.
func (s *SQLiteStore) GetResults(ctx context.Context, runID string) ([]scheduler.SubTaskResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT task_id, success, output, error, execution_time_ms
		 FROM task_results WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var results []scheduler.SubTaskResult
	for rows.Next() {
		var r scheduler.SubTaskResult
		var success int
		if err := rows.Scan(&r.TaskID, &success, &r.Output, &r.Error, &r.ExecutionTimeMS); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.Success = success != 0
		results = append(results, r)
	}
	return results, rows.Err()
}

// ListRuns returns all runs, most recent first.
func (s *SQLiteStore) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, goal, discipline, completed, failed, started_at, COALESCE(finished_at, started_at)
		 FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Goal, &r.Discipline, &r.Completed, &r.Failed, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
