package polish

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/jonathan/audioscribe/internal/quality"
)

// GeminiRefiner polishes transcription text with a Gemini reasoning model.
type GeminiRefiner struct {
	client *genai.Client
	model  string
}

// NewGeminiRefiner creates a Gemini-backed refiner.
func NewGeminiRefiner(ctx context.Context, apiKey, model string) (*GeminiRefiner, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiRefiner{client: client, model: model}, nil
}

// Refine rewrites rawText into polished prose. The result is scored for
// residual repetition so the caller can mark it NEEDS_REVIEW.
func (g *GeminiRefiner) Refine(ctx context.Context, priorContext, rawText string, style *StyleConfig) (Result, error) {
	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(0.3)

	resp, err := model.GenerateContent(ctx, genai.Text(refinePrompt(priorContext, rawText, style)))
	if err != nil {
		return Result{}, fmt.Errorf("gemini refinement failed: %w", err)
	}

	text, err := extractText(resp)
	if err != nil {
		return Result{}, err
	}
	text = quality.CleanText(text)

	result := Result{PolishedText: text}
	if score := quality.Score(text); score > 0.5 {
		result.HasRepetition = true
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("refined output still looks repetitive (badness %.2f)", score))
	}
	return result, nil
}

// Close releases the underlying client.
func (g *GeminiRefiner) Close() error {
	return g.client.Close()
}

func refinePrompt(priorContext, rawText string, style *StyleConfig) string {
	var b strings.Builder
	b.WriteString(`You are a professional editor. Correct the following raw transcription text.
1. Fix punctuation and capitalization.
2. Remove stuttering (um, uh) unless it adds dramatic effect.
3. Fix obvious homophone errors based on context.
4. Do not summarize. Keep all content.
5. Return ONLY the polished text.
`)

	if style != nil {
		switch style.Mode {
		case "rewrite":
			b.WriteString("Rewrite freely for readability while keeping every fact.\n")
		case "proofread":
			b.WriteString("Proofread only: change nothing beyond spelling, punctuation and casing.\n")
		}
		if style.Tone != "" {
			fmt.Fprintf(&b, "Target tone: %s.\n", style.Tone)
		}
		for _, rule := range style.CleaningRules {
			fmt.Fprintf(&b, "Cleaning rule: %s.\n", rule)
		}
		if style.CustomInstructions != "" {
			b.WriteString(style.CustomInstructions)
			b.WriteString("\n")
		}
	}

	if priorContext != "" {
		fmt.Fprintf(&b, "\nPreceding transcript (for continuity, do not repeat):\n%s\n", priorContext)
	}

	fmt.Fprintf(&b, "\nRaw Text:\n%q", rawText)
	return b.String()
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
