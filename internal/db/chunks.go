package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/audioscribe/internal/types"
)

// CreateChunks inserts the pre-split chunk manifest for a project. Re-running
// ingestion for the same indexes updates the file paths in place.
func (db *DB) CreateChunks(ctx context.Context, projectID uuid.UUID, inputs []types.ChunkInput) error {
	for _, in := range inputs {
		_, err := db.pool.Exec(ctx,
			`INSERT INTO audio_chunks (project_id, chunk_index, file_path, duration_ms, is_silence)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (project_id, chunk_index)
			 DO UPDATE SET file_path = $3, duration_ms = $4, is_silence = $5, last_updated = NOW()`,
			projectID, in.Index, in.FilePath, in.DurationMs, in.IsSilence,
		)
		if err != nil {
			return fmt.Errorf("failed to create chunk %d: %w", in.Index, err)
		}
	}
	return nil
}

// GetChunk retrieves one chunk with its draft and polished segments attached.
// Returns (nil, nil) when not found.
func (db *DB) GetChunk(ctx context.Context, chunkID uuid.UUID) (*types.Chunk, error) {
	rows, err := db.pool.Query(ctx, chunkSelect+` WHERE c.id = $1`, chunkID)
	if err != nil {
		return nil, fmt.Errorf("failed to get chunk: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, nil
	}
	chunk, err := scanChunk(rows)
	if err != nil {
		return nil, err
	}
	return chunk, nil
}

// ListChunks retrieves all chunks for a project in index order, each with its
// draft and polished segments attached.
func (db *DB) ListChunks(ctx context.Context, projectID uuid.UUID) ([]types.Chunk, error) {
	rows, err := db.pool.Query(ctx,
		chunkSelect+` WHERE c.project_id = $1 ORDER BY c.chunk_index ASC`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()

	var chunks []types.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *chunk)
	}
	return chunks, nil
}

// SetChunkPhase records that a chunk entered or left in-flight work. The
// timestamp refresh keeps the watchdog from treating a fresh start as a stall.
func (db *DB) SetChunkPhase(ctx context.Context, chunkID uuid.UUID, phase types.ChunkPhase) error {
	result, err := db.pool.Exec(ctx,
		`UPDATE audio_chunks SET phase = $1, last_updated = NOW() WHERE id = $2`,
		phase, chunkID,
	)
	if err != nil {
		return fmt.Errorf("failed to set chunk phase: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("chunk not found: %s", chunkID)
	}
	return nil
}

// TouchChunk refreshes a busy chunk's heartbeat so the watchdog leaves it alone.
func (db *DB) TouchChunk(ctx context.Context, chunkID uuid.UUID) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE audio_chunks SET last_updated = NOW() WHERE id = $1`,
		chunkID,
	)
	if err != nil {
		return fmt.Errorf("failed to touch chunk: %w", err)
	}
	return nil
}

// SetChunkRetry records the chunk's transcription attempt counter.
func (db *DB) SetChunkRetry(ctx context.Context, chunkID uuid.UUID, attempt int) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE audio_chunks SET retry_attempt = $1, last_updated = NOW() WHERE id = $2`,
		attempt, chunkID,
	)
	if err != nil {
		return fmt.Errorf("failed to set chunk retry: %w", err)
	}
	return nil
}

const chunkSelect = `
	SELECT c.id, c.project_id, c.chunk_index, c.file_path, c.duration_ms,
	       c.is_silence, c.phase, c.retry_attempt, c.last_updated,
	       d.id, d.raw_text, d.validation_status, d.failure_reason, d.retry_attempt, d.created_at, d.updated_at,
	       p.id, p.polished_text, p.has_repetition, p.warnings, p.status, p.created_at
	FROM audio_chunks c
	LEFT JOIN draft_segments d ON d.chunk_id = c.id
	LEFT JOIN polished_segments p ON p.draft_segment_id = d.id`

// scanChunk reads one joined chunk row, materializing the optional draft and
// polished segments.
func scanChunk(rows pgx.Rows) (*types.Chunk, error) {
	var c types.Chunk

	var draftID *uuid.UUID
	var draftText, draftStatus, draftFailure *string
	var draftRetry *int
	var draftCreated, draftUpdated *time.Time

	var polishedID *uuid.UUID
	var polishedText, polishedStatus *string
	var hasRepetition *bool
	var warningsJSON []byte
	var polishedCreated *time.Time

	err := rows.Scan(
		&c.ID, &c.ProjectID, &c.Index, &c.FilePath, &c.DurationMs,
		&c.IsSilence, &c.Phase, &c.RetryAttempt, &c.LastUpdated,
		&draftID, &draftText, &draftStatus, &draftFailure, &draftRetry, &draftCreated, &draftUpdated,
		&polishedID, &polishedText, &hasRepetition, &warningsJSON, &polishedStatus, &polishedCreated,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan chunk: %w", err)
	}

	if draftID != nil {
		d := types.DraftSegment{
			ID:               *draftID,
			ChunkID:          c.ID,
			RawText:          *draftText,
			ValidationStatus: types.ValidationStatus(*draftStatus),
			CreatedAt:        *draftCreated,
			UpdatedAt:        *draftUpdated,
		}
		if draftFailure != nil {
			d.FailureReason = *draftFailure
		}
		if draftRetry != nil {
			d.RetryAttempt = *draftRetry
		}
		if polishedID != nil {
			ps := types.PolishedSegment{
				ID:             *polishedID,
				DraftSegmentID: d.ID,
				PolishedText:   *polishedText,
				HasRepetition:  *hasRepetition,
				Status:         types.ReviewStatus(*polishedStatus),
				CreatedAt:      *polishedCreated,
			}
			if len(warningsJSON) > 0 {
				_ = json.Unmarshal(warningsJSON, &ps.Warnings)
			}
			d.Polished = &ps
		}
		c.Draft = &d
	}

	return &c, nil
}
