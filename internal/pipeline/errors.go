package pipeline

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/audioscribe/internal/checkpoint"
)

var (
	// ErrAlreadyRunning is returned when starting a project that has an
	// active run.
	ErrAlreadyRunning = errors.New("project is already running")
	// ErrNotRunning is returned when pausing or aborting an idle project.
	ErrNotRunning = errors.New("project is not running")
	// ErrProjectNotFound is returned for an unknown project ID.
	ErrProjectNotFound = errors.New("project not found")
)

// NotResumableError reports an attempt to start a run from a checkpoint that
// has no work left or no data to work from.
type NotResumableError struct {
	ProjectID  uuid.UUID
	Checkpoint checkpoint.Checkpoint
}

func (e *NotResumableError) Error() string {
	return fmt.Sprintf("project %s cannot run from checkpoint %s", e.ProjectID, e.Checkpoint)
}

// TransportError reports a transcription that failed at the provider level
// rather than the quality level. Transport failures halt the stage at
// TRANSCRIBED_PARTIAL instead of burning quality retries.
type TransportError struct {
	ChunkIndex int
	Err        error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("chunk %d: transcription transport failure: %v", e.ChunkIndex, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
