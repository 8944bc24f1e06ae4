package pipeline

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/jonathan/audioscribe/internal/checkpoint"
	"github.com/jonathan/audioscribe/internal/types"
)

// Status is a point-in-time snapshot of a project's run. Counts are derived
// from stored chunk records, so a snapshot is accurate across restarts.
type Status struct {
	ProjectID   uuid.UUID             `json:"project_id"`
	Checkpoint  checkpoint.Checkpoint `json:"checkpoint"`
	Progress    int                   `json:"progress"`
	Active      bool                  `json:"active"`
	Paused      bool                  `json:"paused"`
	TotalChunks int                   `json:"total_chunks"`
	// Per-stage activity: chunks currently inside a stage, and chunks still
	// owed the stage but not yet in it.
	Transcribing      int `json:"transcribing_now"`
	TranscribePending int `json:"transcribe_pending"`
	Polishing         int `json:"polishing_now"`
	PolishPending     int `json:"polish_pending"`
	// Completion tallies derived from stored segments.
	Transcribed  int                 `json:"transcribed_chunks"`
	Polished     int                 `json:"polished_chunks"`
	Discarded    int                 `json:"discarded_chunks"`
	FailedChunks []types.FailedChunk `json:"failed_chunks,omitempty"`
}

// runState holds the in-memory side of one active run: the pause flag and
// the per-chunk cancel functions the watchdog uses to kill stalled attempts.
// Persistent truth stays in the store.
type runState struct {
	mu      sync.Mutex
	paused  bool
	cancels map[uuid.UUID]context.CancelFunc
}

func newRunState() *runState {
	return &runState{cancels: make(map[uuid.UUID]context.CancelFunc)}
}

func (s *runState) setPaused(v bool) {
	s.mu.Lock()
	s.paused = v
	s.mu.Unlock()
}

func (s *runState) isPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// registerCancel makes an in-flight chunk attempt cancellable by the
// watchdog. Returns a release function the worker defers.
func (s *runState) registerCancel(chunkID uuid.UUID, cancel context.CancelFunc) func() {
	s.mu.Lock()
	s.cancels[chunkID] = cancel
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.cancels, chunkID)
		s.mu.Unlock()
	}
}

// cancelChunk cancels the in-flight attempt for a chunk, if any.
// Returns true when an attempt was actually cancelled.
func (s *runState) cancelChunk(chunkID uuid.UUID) bool {
	s.mu.Lock()
	cancel, ok := s.cancels[chunkID]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}
