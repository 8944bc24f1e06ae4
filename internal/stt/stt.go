// Package stt defines the transcription stage client: a Transcriber interface,
// a Gemini-backed implementation, and an ordered fallback chain over multiple
// providers.
package stt

import "context"

// Request carries one chunk's audio and transcription parameters.
type Request struct {
	// Audio is the raw chunk bytes, already preprocessed by the splitter.
	Audio    []byte
	MIMEType string
	// ChunkIndex and TotalChunks give the provider positional context.
	ChunkIndex  int
	TotalChunks int
	// Retry marks a re-attempt after a quality failure.
	Retry bool
	// Temperature overrides the provider's sampling temperature when > 0.
	// The escalation advisor may suggest a higher value to break a
	// repetition loop.
	Temperature float32
}

// Transcriber converts one chunk of audio to text. Implementations may fail
// or time out; the caller owns retry policy above the transport level.
type Transcriber interface {
	// Name identifies the provider for logging and error reporting.
	Name() string
	Transcribe(ctx context.Context, req Request) (string, error)
}
