// Package advisor decides how to handle a transcription flagged as suspicious
// by the quality gate: keep it, discard the chunk, or retry at a different
// temperature.
package advisor

import "context"

// Action is the advisor's recommendation for a suspicious transcription.
type Action string

const (
	// ActionKeep accepts the transcription as-is despite the flag.
	ActionKeep Action = "KEEP"
	// ActionSkip discards the chunk's text entirely.
	ActionSkip Action = "SKIP"
	// ActionRetry re-transcribes the chunk, usually at a higher temperature.
	ActionRetry Action = "RETRY"
)

// Decision is the advisor's verdict on a suspicious transcription.
type Decision struct {
	Action      Action  `json:"action"`
	Reasoning   string  `json:"reasoning"`
	Temperature float32 `json:"temperature"`
}

// Request carries the flagged transcription and its surroundings.
type Request struct {
	Text         string
	Reason       string
	ChunkIndex   int
	RetryAttempt int
	MaxAttempts  int
}

// Advisor recommends what to do with a transcription the quality gate flagged.
type Advisor interface {
	Advise(ctx context.Context, req Request) (Decision, error)
}
