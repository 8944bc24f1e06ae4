package stt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	// defaultTemperature keeps transcription deterministic; retryTemperature
	// adds randomness to break repetition loops.
	defaultTemperature float32 = 0.2
	retryTemperature   float32 = 0.5

	transcribeMaxElapsed = 45 * time.Second
)

// GeminiTranscriber transcribes audio chunks with a Gemini audio model.
type GeminiTranscriber struct {
	client *genai.Client
	model  string
}

// NewGeminiTranscriber creates a Gemini-backed transcriber.
func NewGeminiTranscriber(ctx context.Context, apiKey, model string) (*GeminiTranscriber, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiTranscriber{client: client, model: model}, nil
}

// Name identifies the provider in fallback-chain errors.
func (g *GeminiTranscriber) Name() string {
	return "gemini:" + g.model
}

// Transcribe sends the chunk audio inline and returns the raw text. Transient
// transport errors are retried with exponential backoff until the context is
// cancelled or the backoff budget is exhausted.
func (g *GeminiTranscriber) Transcribe(ctx context.Context, req Request) (string, error) {
	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(temperatureFor(req))

	parts := []genai.Part{
		genai.Blob{MIMEType: req.MIMEType, Data: req.Audio},
		genai.Text(transcribePrompt(req.ChunkIndex, req.TotalChunks)),
	}

	var text string
	op := func() error {
		resp, err := model.GenerateContent(ctx, parts...)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		text, err = extractText(resp)
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = transcribeMaxElapsed
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return "", fmt.Errorf("gemini transcription failed: %w", err)
	}
	return text, nil
}

// Close releases the underlying client.
func (g *GeminiTranscriber) Close() error {
	return g.client.Close()
}

func temperatureFor(req Request) float32 {
	if req.Temperature > 0 {
		return req.Temperature
	}
	if req.Retry {
		return retryTemperature
	}
	return defaultTemperature
}

func transcribePrompt(index, total int) string {
	return fmt.Sprintf(`Transcribe the audio exactly.
Context: Part %d of %d.
Rules:
1. No preamble. No "Here is the text".
2. If silence/noise, return "[SILENCE]".
3. Do not repeat words endlessly.`, index+1, total)
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}
	return strings.Join(parts, ""), nil
}
