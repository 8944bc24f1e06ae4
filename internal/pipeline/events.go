package pipeline

import "github.com/google/uuid"

// ProgressEvent represents a progress update during pipeline execution.
type ProgressEvent struct {
	ProjectID  uuid.UUID `json:"project_id"`
	ChunkIndex int       `json:"chunk_index,omitempty"`
	Stage      string    `json:"stage"`
	Message    string    `json:"message"`
}

// ProgressCallback is called when pipeline progress occurs. Callbacks must
// not block; slow consumers drop events.
type ProgressCallback func(event ProgressEvent)
