// Package checkpoint implements the persisted stage marker state machine for a
// project's pipeline run.
package checkpoint

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Checkpoint is the coarse-grained, persisted stage marker for a project.
type Checkpoint string

// Forward-progress checkpoints, in pipeline order.
const (
	Uploaded     Checkpoint = "UPLOADED"
	Compressed   Checkpoint = "COMPRESSED"
	Chunked      Checkpoint = "CHUNKED"
	Transcribing Checkpoint = "TRANSCRIBING"
	Transcribed  Checkpoint = "TRANSCRIBED"
	Validated    Checkpoint = "VALIDATED"
	Polishing    Checkpoint = "POLISHING"
	Polished     Checkpoint = "POLISHED"
	Merged       Checkpoint = "MERGED"
	Complete     Checkpoint = "COMPLETE"
)

// Side states reachable outside the forward order.
const (
	Paused             Checkpoint = "PAUSED"
	Failed             Checkpoint = "FAILED"
	TranscribedPartial Checkpoint = "TRANSCRIBED_PARTIAL"
	Blocked            Checkpoint = "BLOCKED"
)

// ordered lists the forward checkpoints for progress calculation.
var ordered = []Checkpoint{
	Uploaded, Compressed, Chunked, Transcribing, Transcribed,
	Validated, Polishing, Polished, Merged, Complete,
}

// resumable are the stable checkpoints a run may re-enter from.
var resumable = map[Checkpoint]bool{
	Chunked:     true,
	Transcribed: true,
	Validated:   true,
	Polished:    true,
	Paused:      true,
}

// transitions is the adjacency table for forward and control-flow moves.
// Transitions to Paused or Failed are permitted from any non-terminal state
// and are handled separately in CanTransition.
var transitions = map[Checkpoint][]Checkpoint{
	Uploaded:           {Compressed},
	Compressed:         {Chunked},
	Chunked:            {Transcribing},
	Transcribing:       {Transcribed, TranscribedPartial},
	Transcribed:        {Validated, Polishing},
	Validated:          {Polishing},
	Polishing:          {Polished},
	Polished:           {Merged},
	Merged:             {Complete},
	Complete:           {},
	Failed:             {},
	Paused:             {}, // resume logic selects the next phase
	TranscribedPartial: {Transcribing, Blocked},
	Blocked:            {},
}

// Valid reports whether c is a known checkpoint value.
func Valid(c Checkpoint) bool {
	_, ok := transitions[c]
	return ok
}

// IsTerminal reports whether no further progress is possible from c.
func IsTerminal(c Checkpoint) bool {
	return c == Complete || c == Failed || c == Blocked
}

// IsResumable reports whether a run may be re-entered from c. Resuming from
// any other checkpoint is an error; callers must rewind to the nearest
// preceding resumable checkpoint first (see NearestResumable).
func IsResumable(c Checkpoint) bool {
	return resumable[c]
}

// Next returns the next forward checkpoint after c, or "" when c has no
// single forward successor.
func Next(c Checkpoint) Checkpoint {
	for i, cp := range ordered {
		if cp == c && i+1 < len(ordered) {
			return ordered[i+1]
		}
	}
	return ""
}

// Index returns c's position in the forward order, or -1 for side states.
func Index(c Checkpoint) int {
	for i, cp := range ordered {
		if cp == c {
			return i
		}
	}
	return -1
}

// Progress returns the percentage of forward phases completed at c.
// Side states report 0.
func Progress(c Checkpoint) int {
	idx := Index(c)
	if idx < 0 {
		return 0
	}
	return idx * 100 / len(ordered)
}

// CanTransition reports whether moving from one checkpoint to another is
// allowed. Pausing or failing is always allowed from a non-terminal state.
func CanTransition(from, to Checkpoint) bool {
	if to == Paused || to == Failed {
		return !IsTerminal(from)
	}
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// NearestResumable walks backwards through the forward order from c and
// returns the closest resumable checkpoint. Paused maps to itself; other
// side states rewind to Chunked, the earliest point where chunk records
// exist.
func NearestResumable(c Checkpoint) Checkpoint {
	if IsResumable(c) {
		return c
	}
	idx := Index(c)
	if idx < 0 {
		return Chunked
	}
	for i := idx; i >= 0; i-- {
		if resumable[ordered[i]] {
			return ordered[i]
		}
	}
	return Chunked
}

// Store is the subset of persistence needed to advance a checkpoint.
type Store interface {
	GetCheckpoint(ctx context.Context, projectID uuid.UUID) (Checkpoint, error)
	SetCheckpoint(ctx context.Context, projectID uuid.UUID, c Checkpoint) error
}

// Advance persists the transition to next after validating it against the
// adjacency table. It never skips an intermediate checkpoint: callers step
// through each forward state in turn.
func Advance(ctx context.Context, store Store, projectID uuid.UUID, next Checkpoint) error {
	current, err := store.GetCheckpoint(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to read checkpoint: %w", err)
	}
	if !CanTransition(current, next) {
		return &TransitionError{From: current, To: next}
	}
	if err := store.SetCheckpoint(ctx, projectID, next); err != nil {
		return fmt.Errorf("failed to persist checkpoint %s: %w", next, err)
	}
	return nil
}

// TransitionError reports a checkpoint move rejected by the adjacency table.
type TransitionError struct {
	From Checkpoint
	To   Checkpoint
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid checkpoint transition %s -> %s", e.From, e.To)
}
