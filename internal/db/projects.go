package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/audioscribe/internal/checkpoint"
	"github.com/jonathan/audioscribe/internal/types"
)

// CreateProject inserts a new project at the UPLOADED checkpoint and returns it.
func (db *DB) CreateProject(ctx context.Context, filename string, mode types.ProcessingMode, styleConfig []byte) (*types.Project, error) {
	var p types.Project
	err := db.pool.QueryRow(ctx,
		`INSERT INTO projects (original_filename, mode, checkpoint, style_config)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, original_filename, mode, checkpoint, style_config, created_at, updated_at`,
		filename, mode, checkpoint.Uploaded, styleConfig,
	).Scan(&p.ID, &p.OriginalFilename, &p.Mode, &p.Checkpoint, &p.StyleConfig, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	return &p, nil
}

// GetProject retrieves a project by ID. Returns (nil, nil) when not found.
func (db *DB) GetProject(ctx context.Context, projectID uuid.UUID) (*types.Project, error) {
	var p types.Project
	err := db.pool.QueryRow(ctx,
		`SELECT id, original_filename, mode, checkpoint, style_config, created_at, updated_at
		 FROM projects WHERE id = $1`,
		projectID,
	).Scan(&p.ID, &p.OriginalFilename, &p.Mode, &p.Checkpoint, &p.StyleConfig, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &p, nil
}

// ListProjects retrieves recent projects, newest first.
func (db *DB) ListProjects(ctx context.Context, limit int) ([]types.Project, error) {
	if limit == 0 {
		limit = 50
	}
	rows, err := db.pool.Query(ctx,
		`SELECT id, original_filename, mode, checkpoint, style_config, created_at, updated_at
		 FROM projects ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []types.Project
	for rows.Next() {
		var p types.Project
		if err := rows.Scan(&p.ID, &p.OriginalFilename, &p.Mode, &p.Checkpoint, &p.StyleConfig, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, nil
}

// DeleteProject removes a project and all its chunks and segments via cascade.
func (db *DB) DeleteProject(ctx context.Context, projectID uuid.UUID) error {
	result, err := db.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, projectID)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("project not found: %s", projectID)
	}
	return nil
}

// GetCheckpoint returns the project's persisted checkpoint.
func (db *DB) GetCheckpoint(ctx context.Context, projectID uuid.UUID) (checkpoint.Checkpoint, error) {
	var cp checkpoint.Checkpoint
	err := db.pool.QueryRow(ctx,
		`SELECT checkpoint FROM projects WHERE id = $1`, projectID,
	).Scan(&cp)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", fmt.Errorf("project not found: %s", projectID)
		}
		return "", fmt.Errorf("failed to get checkpoint: %w", err)
	}
	return cp, nil
}

// SetCheckpoint updates the project's checkpoint. Callers are expected to
// have validated the transition.
func (db *DB) SetCheckpoint(ctx context.Context, projectID uuid.UUID, cp checkpoint.Checkpoint) error {
	result, err := db.pool.Exec(ctx,
		`UPDATE projects SET checkpoint = $1, updated_at = NOW() WHERE id = $2`,
		cp, projectID,
	)
	if err != nil {
		return fmt.Errorf("failed to set checkpoint: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("project not found: %s", projectID)
	}
	return nil
}

// ListStuckProjects finds projects left mid-pipeline in a non-resumable
// checkpoint whose last update is older than cutoff. Used at startup to
// rewind crashed runs to their nearest resumable checkpoint.
func (db *DB) ListStuckProjects(ctx context.Context, cutoff time.Time) ([]types.Project, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, original_filename, mode, checkpoint, style_config, created_at, updated_at
		 FROM projects
		 WHERE checkpoint IN ($1, $2, $3) AND updated_at < $4`,
		checkpoint.Transcribing, checkpoint.Polishing, checkpoint.Merged, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stuck projects: %w", err)
	}
	defer rows.Close()

	var projects []types.Project
	for rows.Next() {
		var p types.Project
		if err := rows.Scan(&p.ID, &p.OriginalFilename, &p.Mode, &p.Checkpoint, &p.StyleConfig, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, nil
}
