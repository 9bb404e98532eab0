package memory

import (
	"unicode/utf8"

	"github.com/jwebster45206/story-arbiter/pkg/session"
)

const (
	// charsPerToken is the characters-per-token approximation
	charsPerToken = 4
	// messageOverhead is the per-entry allowance for role and framing
	messageOverhead = 10
	// Ellipsis marks a truncated message
	Ellipsis = "..."
)

// Strategy names reported in a Compression
const (
	StrategyNone         = "none"
	StrategyDropOldest   = "drop_oldest"
	StrategyLastPair     = "last_pair"
	StrategyLastSingle   = "last_single"
	StrategyTruncateLast = "truncate_last"
	StrategyEmpty        = "empty"
)

// Compression is the result of fitting history to a token budget
type Compression struct {
	Entries      []session.Entry `json:"entries"`
	Strategy     string          `json:"strategy"`
	TokensBefore int             `json:"tokens_before"`
	TokensAfter  int             `json:"tokens_after"`
}

// Strategy is one step of the compression fallback. Apply reports false when
// it cannot produce a history.
type Strategy struct {
	Name  string
	Apply func(entries []session.Entry, maxTokens int) ([]session.Entry, bool)
}

// Strategies are tried in order until one succeeds
var Strategies = []Strategy{
	{Name: StrategyDropOldest, Apply: DropOldest},
	{Name: StrategyLastPair, Apply: LastPair},
	{Name: StrategyLastSingle, Apply: LastSingle},
	{Name: StrategyTruncateLast, Apply: TruncateLast},
}

// EstimateTokens approximates the token count of entries: message and sender
// label characters plus a fixed overhead per entry, divided by four.
func EstimateTokens(entries []session.Entry) int {
	chars := 0
	for _, e := range entries {
		chars += utf8.RuneCountInString(e.Message) + utf8.RuneCountInString(e.Sender.String()) + messageOverhead
	}
	return chars / charsPerToken
}

func fits(entries []session.Entry, maxTokens int) bool {
	return EstimateTokens(entries) <= maxTokens
}

// CompressEntries fits entries to maxTokens. It never modifies entries.
func CompressEntries(entries []session.Entry, maxTokens int) Compression {
	before := EstimateTokens(entries)
	if before <= maxTokens {
		return Compression{Entries: session.Tail(entries, 0), Strategy: StrategyNone, TokensBefore: before, TokensAfter: before}
	}

	for _, s := range Strategies {
		if out, ok := s.Apply(entries, maxTokens); ok {
			return Compression{Entries: out, Strategy: s.Name, TokensBefore: before, TokensAfter: EstimateTokens(out)}
		}
	}
	return Compression{Entries: []session.Entry{}, Strategy: StrategyEmpty, TokensBefore: before}
}

// DropOldest drops entries from the front until the rest fit
func DropOldest(entries []session.Entry, maxTokens int) ([]session.Entry, bool) {
	for start := 0; start < len(entries); start++ {
		if fits(entries[start:], maxTokens) {
			return session.Tail(entries[start:], 0), true
		}
	}
	return nil, false
}

// LastPair keeps only the final two entries
func LastPair(entries []session.Entry, maxTokens int) ([]session.Entry, bool) {
	if len(entries) < 2 {
		return nil, false
	}
	pair := session.Tail(entries, 2)
	return pair, fits(pair, maxTokens)
}

// LastSingle keeps only the final entry
func LastSingle(entries []session.Entry, maxTokens int) ([]session.Entry, bool) {
	if len(entries) == 0 {
		return nil, false
	}
	last := session.Tail(entries, 1)
	return last, fits(last, maxTokens)
}

// TruncateLast cuts the final entry's message to maxTokens*4 characters and
// marks the cut with an ellipsis. It fails when the budget allows no characters.
// The budget bounds the message text only: sender, overhead and ellipsis are
// not counted, so the estimate of the result can exceed maxTokens.
func TruncateLast(entries []session.Entry, maxTokens int) ([]session.Entry, bool) {
	if len(entries) == 0 {
		return nil, false
	}
	allowance := maxTokens * charsPerToken
	if allowance < 1 {
		return nil, false
	}

	last := entries[len(entries)-1]
	runes := []rune(last.Message)
	if len(runes) > allowance {
		last.Message = string(runes[:allowance]) + Ellipsis
	}
	return []session.Entry{last}, true
}
