package stt

import (
	"context"
	"fmt"

	"github.com/jonathan/audioscribe/internal/logger"
)

// Chain tries an ordered list of providers until one succeeds. Providers are
// interchangeable strategy implementations; order encodes priority.
type Chain struct {
	providers []Transcriber
	log       *logger.Logger
}

// NewChain builds a fallback chain over the given providers, tried in order.
func NewChain(log *logger.Logger, providers ...Transcriber) *Chain {
	return &Chain{
		providers: providers,
		log:       log.WithModule("stt"),
	}
}

// Name lists the chained providers.
func (c *Chain) Name() string {
	name := "chain["
	for i, p := range c.providers {
		if i > 0 {
			name += ","
		}
		name += p.Name()
	}
	return name + "]"
}

// Transcribe tries each provider in priority order. The first success wins;
// a provider failure is logged and the next provider is tried. The error
// returned after full exhaustion wraps every provider's failure.
func (c *Chain) Transcribe(ctx context.Context, req Request) (string, error) {
	if len(c.providers) == 0 {
		return "", &ExhaustedError{}
	}

	var failures []ProviderFailure
	for _, p := range c.providers {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		text, err := p.Transcribe(ctx, req)
		if err == nil {
			return text, nil
		}
		c.log.WithChunk(req.ChunkIndex).WithError(err).
			Warnf("provider %s failed, trying next", p.Name())
		failures = append(failures, ProviderFailure{Provider: p.Name(), Err: err})
	}
	return "", &ExhaustedError{Failures: failures}
}

// ProviderFailure records one provider's failure within a chain attempt.
type ProviderFailure struct {
	Provider string
	Err      error
}

// ExhaustedError reports that every provider in the chain failed.
type ExhaustedError struct {
	Failures []ProviderFailure
}

func (e *ExhaustedError) Error() string {
	if len(e.Failures) == 0 {
		return "no transcription providers configured"
	}
	msg := "all transcription providers failed:"
	for _, f := range e.Failures {
		msg += fmt.Sprintf(" %s: %v;", f.Provider, f.Err)
	}
	return msg
}

// Unwrap exposes the last provider's error for errors.Is/As checks.
func (e *ExhaustedError) Unwrap() error {
	if len(e.Failures) == 0 {
		return nil
	}
	return e.Failures[len(e.Failures)-1].Err
}
