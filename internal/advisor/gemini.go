package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// retryTemperature is the fallback temperature when the advisor cannot be
// reached or returns garbage. Higher than the normal retry bump so the next
// attempt explores a different decoding path.
const retryTemperature = 0.6

// GeminiAdvisor asks a Gemini reasoning model what to do with a flagged
// transcription. Failures degrade to a RETRY decision rather than an error,
// so an advisor outage never stalls the pipeline.
type GeminiAdvisor struct {
	client *genai.Client
	model  string
	log    *logrus.Entry
}

// NewGeminiAdvisor creates a Gemini-backed advisor.
func NewGeminiAdvisor(ctx context.Context, apiKey, model string, log *logrus.Entry) (*GeminiAdvisor, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiAdvisor{client: client, model: model, log: log}, nil
}

// Advise returns a decision for the flagged transcription. It never returns
// an error for model or parse failures; those fall back to RETRY.
func (g *GeminiAdvisor) Advise(ctx context.Context, req Request) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}

	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(0.1)
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(advisePrompt(req)))
	if err != nil {
		g.log.WithError(err).Warn("advisor call failed, falling back to retry")
		return fallbackDecision(err), nil
	}

	text, err := extractText(resp)
	if err != nil {
		g.log.WithError(err).Warn("advisor response empty, falling back to retry")
		return fallbackDecision(err), nil
	}

	decision, err := parseDecision(text)
	if err != nil {
		g.log.WithError(err).Warn("advisor response unparseable, falling back to retry")
		return fallbackDecision(err), nil
	}
	return decision, nil
}

// Close releases the underlying client.
func (g *GeminiAdvisor) Close() error {
	return g.client.Close()
}

func advisePrompt(req Request) string {
	var b strings.Builder
	b.WriteString(`A speech-to-text transcription was flagged as suspicious. Decide how to handle it.

Respond with JSON: {"action": "KEEP" | "SKIP" | "RETRY", "reasoning": "...", "temperature": 0.0-1.0}

- KEEP: the text is actually fine (e.g. genuine repetition in the audio, a chant or chorus).
- SKIP: the text is garbage and the audio likely contains nothing transcribable.
- RETRY: re-transcribe at the suggested temperature to break a decoding loop.
`)
	fmt.Fprintf(&b, "\nFlag reason: %s\n", req.Reason)
	fmt.Fprintf(&b, "Chunk %d, attempt %d of %d.\n", req.ChunkIndex, req.RetryAttempt+1, req.MaxAttempts)
	fmt.Fprintf(&b, "\nTranscription:\n%q", clip(req.Text, 2000))
	return b.String()
}

// parseDecision decodes the advisor's JSON verdict, tolerating markdown
// code fences around the payload.
func parseDecision(text string) (Decision, error) {
	var d Decision
	if err := json.Unmarshal([]byte(cleanJSONBlock(text)), &d); err != nil {
		return Decision{}, fmt.Errorf("failed to parse advisor decision: %w", err)
	}

	switch d.Action {
	case ActionKeep, ActionSkip, ActionRetry:
	default:
		return Decision{}, fmt.Errorf("unknown advisor action %q", d.Action)
	}
	if d.Temperature < 0 || d.Temperature > 1 {
		d.Temperature = retryTemperature
	}
	return d, nil
}

func fallbackDecision(cause error) Decision {
	return Decision{
		Action:      ActionRetry,
		Reasoning:   fmt.Sprintf("advisor unavailable: %v", cause),
		Temperature: retryTemperature,
	}
}

// cleanJSONBlock removes markdown code block wrappers from JSON
func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
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
