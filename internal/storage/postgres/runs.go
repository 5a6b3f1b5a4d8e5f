package postgres

import (
	"context"
	"fmt"
	"time"
)

// RunStatus mirrors the runs table status column.
type RunStatus string

// Run statuses.
const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
)

// StartRun records that a run began.
func (s *Store) StartRun(ctx context.Context, runID, command string, startedAt time.Time) error {
	query := fmt.Sprintf(`
INSERT INTO %s (id, command, started_at, status)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO NOTHING`, s.runsTable)
	if _, err := s.pool.Exec(ctx, query, runID, command, startedAt, string(RunRunning)); err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	return nil
}

// FinishRun stores the outcome of a run. errMsg is nil on success.
func (s *Store) FinishRun(
	ctx context.Context,
	runID string,
	finishedAt time.Time,
	succeeded, failed int,
	errMsg *string,
) error {
	status := RunSuccess
	if errMsg != nil {
		status = RunError
	}
	query := fmt.Sprintf(`
UPDATE %s
SET finished_at = $1, status = $2, succeeded = $3, failed = $4, error_message = $5
WHERE id = $6`, s.runsTable)
	res, err := s.pool.Exec(ctx, query, finishedAt, string(status), succeeded, failed, errMsg, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if res.RowsAffected() == 0 {
		return fmt.Errorf("finish run %s: no such run", runID)
	}
	return nil
}
