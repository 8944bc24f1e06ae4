package db

import (
	"context"
	"fmt"
)

// schema creates all tables if they do not exist. Statements are ordered by
// foreign-key dependency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		original_filename TEXT NOT NULL,
		mode TEXT NOT NULL DEFAULT 'SOLO',
		checkpoint TEXT NOT NULL DEFAULT 'UPLOADED',
		style_config JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS audio_chunks (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		chunk_index INT NOT NULL,
		file_path TEXT NOT NULL,
		duration_ms INT NOT NULL DEFAULT 0,
		is_silence BOOLEAN NOT NULL DEFAULT FALSE,
		phase TEXT NOT NULL DEFAULT 'idle',
		retry_attempt INT NOT NULL DEFAULT 0,
		last_updated TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (project_id, chunk_index)
	)`,
	`CREATE TABLE IF NOT EXISTS draft_segments (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		chunk_id UUID NOT NULL REFERENCES audio_chunks(id) ON DELETE CASCADE,
		raw_text TEXT NOT NULL,
		validation_status TEXT NOT NULL DEFAULT 'PENDING',
		failure_reason TEXT NOT NULL DEFAULT '',
		retry_attempt INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (chunk_id)
	)`,
	`CREATE TABLE IF NOT EXISTS polished_segments (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		draft_segment_id UUID NOT NULL REFERENCES draft_segments(id) ON DELETE CASCADE,
		polished_text TEXT NOT NULL,
		has_repetition BOOLEAN NOT NULL DEFAULT FALSE,
		warnings JSONB,
		status TEXT NOT NULL DEFAULT 'APPROVED',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (draft_segment_id)
	)`,
	`CREATE TABLE IF NOT EXISTS final_documents (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		content TEXT NOT NULL,
		chunk_count INT NOT NULL DEFAULT 0,
		skipped_count INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (project_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audio_chunks_project ON audio_chunks(project_id, chunk_index)`,
	`CREATE INDEX IF NOT EXISTS idx_draft_segments_chunk ON draft_segments(chunk_id)`,
}

// Migrate applies the schema. Safe to run on every startup.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
