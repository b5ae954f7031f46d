package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/slok/vetbox/internal/model"
)

// CreateRunResults stores the per-scenario results of a verification run
// in a single transaction.
func (r *Repository) CreateRunResults(ctx context.Context, results []model.RunScenarioResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO run_results (
			run_id, position, description, command,
			expected, actual, passed, reason
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, res := range results {
		_, err := tx.ExecContext(
			ctx,
			query,
			res.RunID,
			res.Position,
			res.Description,
			res.Command,
			res.Expected,
			res.Actual,
			res.Passed,
			res.Reason,
		)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint failed: run_results.") {
				return fmt.Errorf("result %d for run %s: %w", res.Position, res.RunID, model.ErrAlreadyExists)
			}
			if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
				return fmt.Errorf("run %s: %w", res.RunID, model.ErrNotFound)
			}
			return fmt.Errorf("could not insert result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	r.logger.Debugf("Stored %d results for run %s", len(results), results[0].RunID)
	return nil
}

// GetRunResults returns the stored results of a run in catalogue order.
// A run without stored results yields an empty slice.
func (r *Repository) GetRunResults(ctx context.Context, runID string) ([]model.RunScenarioResult, error) {
	query := `
		SELECT
			run_id, position, description, command,
			expected, actual, passed, reason
		FROM run_results
		WHERE run_id = ?
		ORDER BY position ASC
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("could not query results: %w", err)
	}
	defer rows.Close()

	results := []model.RunScenarioResult{}
	for rows.Next() {
		var res model.RunScenarioResult
		err := rows.Scan(
			&res.RunID,
			&res.Position,
			&res.Description,
			&res.Command,
			&res.Expected,
			&res.Actual,
			&res.Passed,
			&res.Reason,
		)
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		results = append(results, res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return results, nil
}
