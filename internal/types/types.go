// Package types holds the shared domain records for the transcription pipeline.
package types

import (
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/audioscribe/internal/checkpoint"
)

// ProcessingMode controls how a project is driven through the pipeline.
type ProcessingMode string

const (
	// ModeManual requires a human to trigger each stage.
	ModeManual ProcessingMode = "MANUAL"
	// ModeSolo runs the full pipeline automatically.
	ModeSolo ProcessingMode = "SOLO"
)

// ValidationStatus classifies the outcome of the quality checks on a draft.
type ValidationStatus string

const (
	ValidationPending  ValidationStatus = "PENDING"
	ValidationVerified ValidationStatus = "VERIFIED"
	// ValidationSuspiciousResolved marks a draft the quality gate flagged but
	// the escalation advisor accepted (e.g. legitimate repetitive content).
	ValidationSuspiciousResolved ValidationStatus = "SUSPICIOUS_RESOLVED"
	ValidationFailed             ValidationStatus = "FAILED"
)

// ReviewStatus classifies a polished segment for downstream review.
type ReviewStatus string

const (
	ReviewApproved    ReviewStatus = "APPROVED"
	ReviewNeedsReview ReviewStatus = "NEEDS_REVIEW"
)

// ChunkPhase is the transient per-chunk processing phase the watchdog sweeps.
type ChunkPhase string

const (
	PhaseIdle         ChunkPhase = "idle"
	PhaseTranscribing ChunkPhase = "transcribing"
	PhasePolishing    ChunkPhase = "polishing"
)

// Busy reports whether the phase represents in-flight work.
func (p ChunkPhase) Busy() bool {
	return p == PhaseTranscribing || p == PhasePolishing
}

// Project is one recording being turned into a transcript.
type Project struct {
	ID               uuid.UUID             `json:"id"`
	OriginalFilename string                `json:"original_filename"`
	Mode             ProcessingMode        `json:"mode"`
	Checkpoint       checkpoint.Checkpoint `json:"checkpoint"`
	// StyleConfig is the serialized style configuration carried into every
	// refinement call. Nil means provider defaults.
	StyleConfig []byte    `json:"style_config,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Chunk is one ordered, time-bounded slice of the source audio. Chunks are
// produced once by the external splitter; the pipeline never re-splits.
type Chunk struct {
	ID         uuid.UUID  `json:"id"`
	ProjectID  uuid.UUID  `json:"project_id"`
	Index      int        `json:"index"`
	FilePath   string     `json:"file_path"`
	DurationMs int        `json:"duration_ms"`
	IsSilence  bool       `json:"is_silence"`
	Phase      ChunkPhase `json:"phase"`
	// RetryAttempt counts transcription re-attempts, including watchdog
	// restarts.
	RetryAttempt int `json:"retry_attempt"`
	// LastUpdated feeds the watchdog: stale busy chunks get restarted.
	LastUpdated time.Time `json:"last_updated"`

	// Draft is populated by list queries; at most one per non-silence chunk.
	Draft *DraftSegment `json:"draft_segment,omitempty"`
}

// DraftSegment is the raw transcription of one chunk. Re-attempts overwrite
// the same record; a chunk never holds two drafts.
type DraftSegment struct {
	ID               uuid.UUID        `json:"id"`
	ChunkID          uuid.UUID        `json:"chunk_id"`
	RawText          string           `json:"raw_text"`
	ValidationStatus ValidationStatus `json:"validation_status"`
	// FailureReason explains a FAILED draft in status output; empty otherwise.
	FailureReason string `json:"failure_reason,omitempty"`
	RetryAttempt  int    `json:"retry_attempt"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`

	Polished *PolishedSegment `json:"polished_segment,omitempty"`
}

// PolishedSegment is the refined text of one draft.
type PolishedSegment struct {
	ID             uuid.UUID    `json:"id"`
	DraftSegmentID uuid.UUID    `json:"draft_segment_id"`
	PolishedText   string       `json:"polished_text"`
	HasRepetition  bool         `json:"has_repetition"`
	Warnings       []string     `json:"warnings,omitempty"`
	Status         ReviewStatus `json:"status"`
	CreatedAt      time.Time    `json:"created_at"`
}

// FinalDocument is the merged transcript for a project.
type FinalDocument struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"project_id"`
	Content   string    `json:"content"`
	// ChunkCount is the number of segments that contributed text.
	ChunkCount int `json:"chunk_count"`
	// SkippedCount is the number of chunks excluded: silence, discards, and
	// terminally-failed chunks.
	SkippedCount int       `json:"skipped_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// ChunkInput describes one pre-split audio segment at ingestion time, as
// produced by the external splitter.
type ChunkInput struct {
	Index      int    `json:"index"`
	FilePath   string `json:"file_path"`
	DurationMs int    `json:"duration_ms"`
	IsSilence  bool   `json:"is_silence"`
}

// FailedChunk describes a terminally-skipped chunk for status reporting.
type FailedChunk struct {
	ChunkID      uuid.UUID `json:"chunk_id"`
	ChunkIndex   int       `json:"chunk_index"`
	Error        string    `json:"error"`
	RetryAttempt int       `json:"retry_attempt"`
}
