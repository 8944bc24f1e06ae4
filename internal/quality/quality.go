// Package quality scores transcription output for signs of failure without
// calling an external model.
package quality

import (
	"regexp"
	"strings"
)

// Badness score thresholds. A score above escalateThreshold means the text is
// almost certainly a hallucination loop or gibberish.
const (
	escalateThreshold = 0.8
	diversityFloor    = 0.05
	minUsefulLength   = 5
	repetitionMinLen  = 50
)

// Action is the gate's recommendation for a scored transcription.
type Action string

const (
	// ActionKeep accepts the text as-is.
	ActionKeep Action = "KEEP"
	// ActionDiscard treats the text as incidental silence; it is accepted
	// but excluded from output, never retried.
	ActionDiscard Action = "DISCARD"
	// ActionEscalate hands the text to the escalation advisor.
	ActionEscalate Action = "ESCALATE"
)

// Verdict is the gate's classification of one transcription attempt.
type Verdict struct {
	OK     bool
	Action Action
	Reason string
	// Score is the badness score in [0,1]; higher means more likely broken.
	Score float64
}

// Score computes the badness score for text. A perfect first-half/second-half
// repetition scores maximal badness; pathologically low character diversity
// scores high; anything else scores low.
func Score(text string) float64 {
	if text == "" {
		return 0
	}

	runes := []rune(text)
	n := len(runes)

	// Verbatim repetition loop: the output's first half equals everything
	// after it. Odd lengths can never match.
	if n > repetitionMinLen {
		half := n / 2
		if string(runes[:half]) == string(runes[half:]) {
			return 1.0
		}
	}

	unique := make(map[rune]struct{}, n)
	for _, r := range runes {
		unique[r] = struct{}{}
	}
	if float64(len(unique))/float64(n) < diversityFloor {
		return 0.9
	}

	return 0.1
}

// Verify classifies a transcription attempt. Empty or clearly-broken output is
// escalated; very short non-empty output is accepted but marked for discard,
// since short utterances are not evidence of hallucination.
func Verify(text string) Verdict {
	score := Score(text)

	if strings.TrimSpace(text) == "" {
		return Verdict{OK: false, Action: ActionEscalate, Reason: "empty response", Score: score}
	}

	if score > escalateThreshold {
		return Verdict{
			OK:     false,
			Action: ActionEscalate,
			Reason: "high badness score (repetition loop or gibberish)",
			Score:  score,
		}
	}

	if len([]rune(text)) < minUsefulLength {
		return Verdict{OK: true, Action: ActionDiscard, Reason: "silence or short utterance", Score: score}
	}

	return Verdict{OK: true, Action: ActionKeep, Score: score}
}

var excessNewlines = regexp.MustCompile(`\n{2,}`)

// CleanText collapses excessive newlines and trims surrounding whitespace
// from raw provider output.
func CleanText(text string) string {
	return strings.TrimSpace(excessNewlines.ReplaceAllString(text, "\n"))
}
