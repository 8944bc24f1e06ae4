package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/audioscribe/internal/types"
)

// UpsertDraft stores the raw transcription for a chunk. A re-attempt
// overwrites the previous text; a chunk never holds two drafts.
func (db *DB) UpsertDraft(ctx context.Context, chunkID uuid.UUID, rawText string, status types.ValidationStatus, attempt int) (*types.DraftSegment, error) {
	var d types.DraftSegment
	err := db.pool.QueryRow(ctx,
		`INSERT INTO draft_segments (chunk_id, raw_text, validation_status, retry_attempt)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (chunk_id)
		 DO UPDATE SET raw_text = $2, validation_status = $3, retry_attempt = $4, updated_at = NOW()
		 RETURNING id, chunk_id, raw_text, validation_status, retry_attempt, created_at, updated_at`,
		chunkID, rawText, status, attempt,
	).Scan(&d.ID, &d.ChunkID, &d.RawText, &d.ValidationStatus, &d.RetryAttempt, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert draft: %w", err)
	}
	return &d, nil
}

// SetDraftStatus updates the validation status of a chunk's draft and clears
// any earlier failure reason.
func (db *DB) SetDraftStatus(ctx context.Context, chunkID uuid.UUID, status types.ValidationStatus) error {
	result, err := db.pool.Exec(ctx,
		`UPDATE draft_segments SET validation_status = $1, failure_reason = '', updated_at = NOW() WHERE chunk_id = $2`,
		status, chunkID,
	)
	if err != nil {
		return fmt.Errorf("failed to set draft status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("draft not found for chunk: %s", chunkID)
	}
	return nil
}

// FailDraft marks a chunk's draft terminally failed and records the reason
// surfaced by status output. Chunks whose attempts never produced a draft get
// an empty placeholder so the failure stays inspectable; an existing draft
// keeps its raw text.
func (db *DB) FailDraft(ctx context.Context, chunkID uuid.UUID, reason string, attempt int) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO draft_segments (chunk_id, raw_text, validation_status, failure_reason, retry_attempt)
		 VALUES ($1, '', $2, $3, $4)
		 ON CONFLICT (chunk_id)
		 DO UPDATE SET validation_status = $2, failure_reason = $3, retry_attempt = $4, updated_at = NOW()`,
		chunkID, types.ValidationFailed, reason, attempt,
	)
	if err != nil {
		return fmt.Errorf("failed to mark draft failed: %w", err)
	}
	return nil
}

// PolishedInput carries one refined segment into storage.
type PolishedInput struct {
	Text          string
	HasRepetition bool
	Warnings      []string
	Status        types.ReviewStatus
}

// UpsertPolished stores the refined text for a draft. Re-polishing replaces
// the previous result.
func (db *DB) UpsertPolished(ctx context.Context, draftID uuid.UUID, input *PolishedInput) (*types.PolishedSegment, error) {
	var warningsJSON []byte
	if len(input.Warnings) > 0 {
		var err error
		warningsJSON, err = json.Marshal(input.Warnings)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal warnings: %w", err)
		}
	}

	var p types.PolishedSegment
	err := db.pool.QueryRow(ctx,
		`INSERT INTO polished_segments (draft_segment_id, polished_text, has_repetition, warnings, status)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (draft_segment_id)
		 DO UPDATE SET polished_text = $2, has_repetition = $3, warnings = $4, status = $5, created_at = NOW()
		 RETURNING id, draft_segment_id, polished_text, has_repetition, status, created_at`,
		draftID, input.Text, input.HasRepetition, warningsJSON, input.Status,
	).Scan(&p.ID, &p.DraftSegmentID, &p.PolishedText, &p.HasRepetition, &p.Status, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert polished segment: %w", err)
	}
	p.Warnings = input.Warnings
	return &p, nil
}

// SaveFinalDocument stores the merged transcript for a project, replacing any
// earlier merge.
func (db *DB) SaveFinalDocument(ctx context.Context, projectID uuid.UUID, content string, chunkCount, skippedCount int) (*types.FinalDocument, error) {
	var doc types.FinalDocument
	err := db.pool.QueryRow(ctx,
		`INSERT INTO final_documents (project_id, content, chunk_count, skipped_count)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (project_id)
		 DO UPDATE SET content = $2, chunk_count = $3, skipped_count = $4, created_at = NOW()
		 RETURNING id, project_id, content, chunk_count, skipped_count, created_at`,
		projectID, content, chunkCount, skippedCount,
	).Scan(&doc.ID, &doc.ProjectID, &doc.Content, &doc.ChunkCount, &doc.SkippedCount, &doc.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save final document: %w", err)
	}
	return &doc, nil
}

// GetFinalDocument retrieves the merged transcript for a project.
// Returns (nil, nil) when the project has not been merged yet.
func (db *DB) GetFinalDocument(ctx context.Context, projectID uuid.UUID) (*types.FinalDocument, error) {
	var doc types.FinalDocument
	err := db.pool.QueryRow(ctx,
		`SELECT id, project_id, content, chunk_count, skipped_count, created_at
		 FROM final_documents WHERE project_id = $1`,
		projectID,
	).Scan(&doc.ID, &doc.ProjectID, &doc.Content, &doc.ChunkCount, &doc.SkippedCount, &doc.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get final document: %w", err)
	}
	return &doc, nil
}
