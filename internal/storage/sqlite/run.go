package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/slok/vetbox/internal/model"
)

// CreateRun creates a new verification run in the repository.
func (r *Repository) CreateRun(ctx context.Context, run model.VerificationRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}

	var finishedAt *int64
	if run.FinishedAt != nil {
		u := run.FinishedAt.Unix()
		finishedAt = &u
	}

	query := `
		INSERT INTO runs (
			id, environment_id, engine, agent_version, workspace,
			status, total, passed, failed, error,
			created_at, finished_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		run.ID,
		run.EnvironmentID,
		run.Engine,
		run.AgentVersion,
		run.Workspace,
		run.Status,
		run.Total,
		run.Passed,
		run.Failed,
		run.Error,
		run.CreatedAt.Unix(),
		finishedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: runs.") {
			return fmt.Errorf("run already exists: %w", model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not insert run: %w", err)
	}

	r.logger.Debugf("Created run in repository: %s", run.ID)
	return nil
}

// GetRun retrieves a verification run by ID.
func (r *Repository) GetRun(ctx context.Context, id string) (*model.VerificationRun, error) {
	query := `
		SELECT
			id, environment_id, engine, agent_version, workspace,
			status, total, passed, failed, error,
			created_at, finished_at
		FROM runs
		WHERE id = ?
	`

	row := r.db.QueryRowContext(ctx, query, id)
	run, err := r.scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query run: %w", err)
	}

	return &run, nil
}

// ListRuns returns all verification runs, newest first.
func (r *Repository) ListRuns(ctx context.Context) ([]model.VerificationRun, error) {
	query := `
		SELECT
			id, environment_id, engine, agent_version, workspace,
			status, total, passed, failed, error,
			created_at, finished_at
		FROM runs
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("could not query runs: %w", err)
	}
	defer rows.Close()

	var runs []model.VerificationRun
	for rows.Next() {
		run, err := r.scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return runs, nil
}

// UpdateRun updates an existing verification run.
func (r *Repository) UpdateRun(ctx context.Context, run model.VerificationRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}

	var finishedAt *int64
	if run.FinishedAt != nil {
		u := run.FinishedAt.Unix()
		finishedAt = &u
	}

	query := `
		UPDATE runs
		SET
			environment_id = ?,
			engine = ?,
			agent_version = ?,
			workspace = ?,
			status = ?,
			total = ?,
			passed = ?,
			failed = ?,
			error = ?,
			created_at = ?,
			finished_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		run.EnvironmentID,
		run.Engine,
		run.AgentVersion,
		run.Workspace,
		run.Status,
		run.Total,
		run.Passed,
		run.Failed,
		run.Error,
		run.CreatedAt.Unix(),
		finishedAt,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("could not update run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run %s: %w", run.ID, model.ErrNotFound)
	}

	r.logger.Debugf("Updated run in repository: %s", run.ID)
	return nil
}

// DeleteRun deletes a verification run. Stored results cascade.
func (r *Repository) DeleteRun(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("could not delete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run %s: %w", id, model.ErrNotFound)
	}

	r.logger.Debugf("Deleted run from repository: %s", id)
	return nil
}

func (r *Repository) scanRun(s scanner) (model.VerificationRun, error) {
	var run model.VerificationRun
	var createdAt, finishedAt sql.NullInt64

	err := s.Scan(
		&run.ID,
		&run.EnvironmentID,
		&run.Engine,
		&run.AgentVersion,
		&run.Workspace,
		&run.Status,
		&run.Total,
		&run.Passed,
		&run.Failed,
		&run.Error,
		&createdAt,
		&finishedAt,
	)
	if err != nil {
		return model.VerificationRun{}, err
	}

	if !createdAt.Valid {
		return model.VerificationRun{}, fmt.Errorf("created_at is required")
	}
	run.CreatedAt = timeFromUnix(createdAt.Int64)
	if finishedAt.Valid {
		t := timeFromUnix(finishedAt.Int64)
		run.FinishedAt = &t
	}

	return run, nil
}
