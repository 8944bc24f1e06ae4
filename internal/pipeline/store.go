package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/audioscribe/internal/checkpoint"
	"github.com/jonathan/audioscribe/internal/db"
	"github.com/jonathan/audioscribe/internal/types"
)

// Store is the persistence surface the pipeline drives. *db.DB implements it;
// tests use an in-memory fake.
type Store interface {
	GetProject(ctx context.Context, projectID uuid.UUID) (*types.Project, error)
	GetCheckpoint(ctx context.Context, projectID uuid.UUID) (checkpoint.Checkpoint, error)
	SetCheckpoint(ctx context.Context, projectID uuid.UUID, cp checkpoint.Checkpoint) error
	ListStuckProjects(ctx context.Context, cutoff time.Time) ([]types.Project, error)

	GetChunk(ctx context.Context, chunkID uuid.UUID) (*types.Chunk, error)
	ListChunks(ctx context.Context, projectID uuid.UUID) ([]types.Chunk, error)
	SetChunkPhase(ctx context.Context, chunkID uuid.UUID, phase types.ChunkPhase) error
	TouchChunk(ctx context.Context, chunkID uuid.UUID) error
	SetChunkRetry(ctx context.Context, chunkID uuid.UUID, attempt int) error

	UpsertDraft(ctx context.Context, chunkID uuid.UUID, rawText string, status types.ValidationStatus, attempt int) (*types.DraftSegment, error)
	SetDraftStatus(ctx context.Context, chunkID uuid.UUID, status types.ValidationStatus) error
	FailDraft(ctx context.Context, chunkID uuid.UUID, reason string, attempt int) error
	UpsertPolished(ctx context.Context, draftID uuid.UUID, input *db.PolishedInput) (*types.PolishedSegment, error)
	SaveFinalDocument(ctx context.Context, projectID uuid.UUID, content string, chunkCount, skippedCount int) (*types.FinalDocument, error)
}

var _ Store = (*db.DB)(nil)
