// Package polish implements the text-refinement stage client: it turns raw
// transcription text into polished prose, carrying forward context from
// preceding chunks for cross-chunk coherence.
package polish

import "context"

// Result is the outcome of refining one chunk.
type Result struct {
	PolishedText string
	// HasRepetition flags output the refiner itself detected as repetitive;
	// such segments are stored as NEEDS_REVIEW.
	HasRepetition bool
	Warnings      []string
}

// Refiner rewrites raw transcription text into polished prose. PriorContext
// is the accepted output of the preceding chunks; style is optional.
type Refiner interface {
	Refine(ctx context.Context, priorContext, rawText string, style *StyleConfig) (Result, error)
}
