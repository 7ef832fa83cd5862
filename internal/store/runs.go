package store

import (
	"context"
	"fmt"
)

// Run is the log entry of one batch.
type Run struct {
	ID        string
	Seq       int64
	Generated int
	Skipped   int
	Failed    int
}

// LogRun appends a finished batch to the run log and returns it with its
// assigned seq. Seqs are strictly increasing starting at 1.
func (s *Store) LogRun(ctx context.Context, run Run) (Run, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return run, fmt.Errorf("log run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM runs`).Scan(&run.Seq); err != nil {
		return run, fmt.Errorf("log run: next seq: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, seq, generated, skipped, failed)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, run.Seq, run.Generated, run.Skipped, run.Failed)
	if err != nil {
		return run, fmt.Errorf("log run: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return run, fmt.Errorf("log run: commit: %w", err)
	}
	return run, nil
}

// Runs returns the most recent runs, newest first. A limit of zero or less
// returns every run.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, generated, skipped, failed
		FROM runs
		ORDER BY seq DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Seq, &r.Generated, &r.Skipped, &r.Failed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
