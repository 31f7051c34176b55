package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/egress-lab/evacsim/pkg/errors"
	_ "modernc.org/sqlite"
)

// Repository provides database operations for orchestration runs
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new repository
func NewRepository(dbPath string) (*Repository, error) {
	slog.Info("database_init", "db_path", dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		slog.Error("database_open_failed", "db_path", dbPath, "error", err)
		return nil, errors.Wrap(err, "failed to open database")
	}
	// HTTP handlers write concurrently; a single connection serializes them.
	db.SetMaxOpenConns(1)

	slog.Info("database_create_schema", "db_path", dbPath)
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		slog.Error("database_schema_failed", "db_path", dbPath, "error", err)
		return nil, errors.Wrap(err, "failed to create schema")
	}

	slog.Info("database_ready", "db_path", dbPath)
	return &Repository{db: db}, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// Create inserts a new run record
func (r *Repository) Create(ctx context.Context, run *Run) error {
	slog.Info("database_create_run", "run_id", run.ID, "mode", run.Mode, "status", run.Status)

	query := `
		INSERT INTO runs (id, mode, scenario, facility_image, crowd_image, status, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		run.ID, run.Mode, run.Scenario, run.FacilityImage, run.CrowdImage, run.Status, run.ErrorMessage)
	if err != nil {
		slog.Error("database_insert_failed", "run_id", run.ID, "error", err)
		return errors.Wrap(err, "failed to insert run")
	}

	return nil
}

// Get retrieves a run by ID. A missing run returns nil without error.
func (r *Repository) Get(ctx context.Context, id string) (*Run, error) {
	query := `
		SELECT id, mode, scenario, facility_image, crowd_image, status, error_message, created_at, updated_at
		FROM runs WHERE id = ?
	`
	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		slog.Info("database_run_not_found", "run_id", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("database_query_failed", "run_id", id, "error", err)
		return nil, errors.Wrap(err, "failed to query run")
	}
	return run, nil
}

// Finish records the terminal status of a run and the assets it used
func (r *Repository) Finish(ctx context.Context, id, status, facility, crowd, errorMessage string) error {
	slog.Info("database_finish_run", "run_id", id, "status", status)

	query := `
		UPDATE runs
		SET status = ?, facility_image = ?, crowd_image = ?, error_message = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query, status, facility, crowd, errorMessage, id)
	if err != nil {
		slog.Error("database_update_failed", "run_id", id, "error", err)
		return errors.Wrap(err, "failed to update run")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		slog.Error("database_run_not_found_for_update", "run_id", id)
		return fmt.Errorf("run not found: id=%s", id)
	}
	return nil
}

// List retrieves all runs, newest first
func (r *Repository) List(ctx context.Context) ([]*Run, error) {
	slog.Info("database_list_runs")

	query := `
		SELECT id, mode, scenario, facility_image, crowd_image, status, error_message, created_at, updated_at
		FROM runs ORDER BY created_at DESC, rowid DESC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		slog.Error("database_list_query_failed", "error", err)
		return nil, errors.Wrap(err, "failed to list runs")
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			slog.Error("database_scan_row_failed", "error", err)
			return nil, errors.Wrap(err, "failed to scan row")
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		slog.Error("database_rows_error", "error", err)
		return nil, errors.Wrap(err, "rows error")
	}

	slog.Info("database_list_complete", "run_count", len(runs))
	return runs, nil
}

// DeleteFinished removes every run that is no longer running
func (r *Repository) DeleteFinished(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM runs WHERE status != ?`, StatusRunning)
	if err != nil {
		slog.Error("database_delete_failed", "error", err)
		return 0, errors.Wrap(err, "failed to delete runs")
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rows affected")
	}

	slog.Info("database_runs_deleted", "count", n)
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var scenario, facility, crowd, errorMessage sql.NullString

	err := row.Scan(
		&run.ID, &run.Mode, &scenario, &facility, &crowd,
		&run.Status, &errorMessage, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		return nil, err
	}

	run.Scenario = scenario.String
	run.FacilityImage = facility.String
	run.CrowdImage = crowd.String
	run.ErrorMessage = errorMessage.String
	return &run, nil
}
