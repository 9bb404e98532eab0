package intent

import (
	"context"
	"strings"

	"github.com/jwebster45206/story-arbiter/pkg/textfilter"
)

// defaultKeywords are the offline heuristics for each intent
var defaultKeywords = map[Intent][]string{
	Combat: {
		"attack", "strike", "stab", "slash", "shoot", "fire at", "swing",
		"fight", "hit", "smite", "cast", "fireball", "charge at", "parry",
	},
	Action: {
		"use", "activate", "drink", "equip", "unequip", "drop", "take", "pick up",
		"rest", "long rest", "short rest", "open", "search", "climb", "sneak",
		"inventory", "wear", "wield",
	},
	AskRule: {
		"rule", "rules", "how does", "how do", "am i allowed", "is it possible to",
		"what happens if", "advantage", "saving throw", "spell slot",
	},
	Recall: {
		"remember", "recall", "earlier", "last time", "what did", "who was",
		"previously", "remind me",
	},
	Question: {
		"who", "what", "where", "why", "when", "which",
	},
}

// KeywordClassifier is an offline classifier that scores intents by keyword hits.
// It is a fallback for deployments without a model service.
type KeywordClassifier struct {
	matchers map[Intent]*textfilter.KeywordMatcher
}

// Ensure KeywordClassifier implements Classifier interface
var _ Classifier = (*KeywordClassifier)(nil)

// NewKeywordClassifier creates a classifier with the default keyword tables
func NewKeywordClassifier() *KeywordClassifier {
	kc := &KeywordClassifier{matchers: make(map[Intent]*textfilter.KeywordMatcher)}
	for i, words := range defaultKeywords {
		kc.matchers[i] = textfilter.NewKeywordMatcher(words...)
	}
	return kc
}

// Classify scores each intent by distinct keyword hits. One hit yields 0.8,
// two 0.9, three or more 0.95. A tie between intents drops confidence to 0.6.
func (kc *KeywordClassifier) Classify(ctx context.Context, text string) (Classification, error) {
	if err := ctx.Err(); err != nil {
		return Classification{}, err
	}

	best := General
	bestScore := 0
	tied := false
	for _, i := range All {
		m, ok := kc.matchers[i]
		if !ok {
			continue
		}
		score := m.Count(text)
		if i == Question && strings.HasSuffix(strings.TrimSpace(text), "?") {
			score++
		}
		switch {
		case score > bestScore:
			best, bestScore, tied = i, score, false
		case score == bestScore && score > 0:
			tied = true
		}
	}

	if bestScore == 0 {
		return Classification{Intent: General, Confidence: 0.5}, nil
	}

	confidence := 0.8
	switch {
	case bestScore >= 3:
		confidence = 0.95
	case bestScore == 2:
		confidence = 0.9
	}
	if tied {
		confidence = 0.6
	}
	return Classification{Intent: best, Confidence: confidence}, nil
}
