package intent

import (
	"context"
	"strings"
)

// Intent is the closed set of player input purposes
type Intent string

const (
	Combat   Intent = "COMBAT"
	Action   Intent = "ACTION"
	AskRule  Intent = "ASK_RULE"
	Question Intent = "QUESTION"
	Recall   Intent = "RECALL"
	General  Intent = "GENERAL" // universal fallback
)

// All lists every intent in declaration order
var All = []Intent{Combat, Action, AskRule, Question, Recall, General}

// String returns the string representation of the intent
func (i Intent) String() string {
	return string(i)
}

// IsValid checks if the intent is one of the known labels
func (i Intent) IsValid() bool {
	switch i {
	case Combat, Action, AskRule, Question, Recall, General:
		return true
	default:
		return false
	}
}

// Parse converts a raw classifier label to an Intent.
// Labels are matched case-insensitively; "ask-rule" and "ask rule" are accepted.
func Parse(label string) (Intent, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(label))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	i := Intent(normalized)
	if !i.IsValid() {
		return General, false
	}
	return i, true
}

// Classification is the result of classifying one piece of player text
type Classification struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// Classifier determines the intent of player text.
// Implementations report failures as errors; they never apply the GENERAL
// fallback themselves.
type Classifier interface {
	Classify(ctx context.Context, text string) (Classification, error)
}

// ClassifierFunc adapts a function to the Classifier interface
type ClassifierFunc func(ctx context.Context, text string) (Classification, error)

func (f ClassifierFunc) Classify(ctx context.Context, text string) (Classification, error) {
	return f(ctx, text)
}
