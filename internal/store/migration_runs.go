package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type MigrationRunStore struct {
	db *sqlx.DB
}

func (mr *MigrationRunStore) StartRun(ctx context.Context, run *MigrationRun) error {
	query := `INSERT INTO migration_runs (
		id,
		trigger_type,
		triggered_by,
		status,
		started_at
	) VALUES (
		:id,
		:trigger_type,
		:triggered_by,
		:status,
		:started_at
	)`

	_, err := mr.db.NamedExecContext(ctx, query, run)
	return err
}

func (mr *MigrationRunStore) FinishRun(ctx context.Context, run *MigrationRun) error {
	query := `UPDATE migration_runs SET
		status = :status,
		error_count = :error_count,
		summary = :summary,
		finished_at = :finished_at
	WHERE id = :id`

	result, err := mr.db.NamedExecContext(ctx, query, run)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("migration run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

func (mr *MigrationRunStore) GetLatest(ctx context.Context, limit int) ([]MigrationRun, error) {
	query := mr.db.Rebind(`SELECT
		id, trigger_type, triggered_by, status, error_count, summary, started_at, finished_at
		FROM migration_runs
		ORDER BY started_at DESC
		LIMIT ?`)

	var out []MigrationRun
	if err := mr.db.SelectContext(ctx, &out, query, limit); err != nil {
		return nil, fmt.Errorf("failed to query migration runs: %w", err)
	}
	return out, nil
}
