package textfilter

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

var folder = cases.Fold()

// Fold trims and case-folds s for case-insensitive comparison.
func Fold(s string) string {
	return folder.String(strings.TrimSpace(s))
}

// EqualFold reports whether a and b name the same thing, ignoring case and
// surrounding whitespace.
func EqualFold(a, b string) bool {
	return Fold(a) == Fold(b)
}

// ContainsFold reports whether needle appears anywhere in haystack, ignoring case.
func ContainsFold(haystack, needle string) bool {
	return strings.Contains(Fold(haystack), Fold(needle))
}

// KeywordMatcher matches whole words and phrases in free text.
type KeywordMatcher struct {
	keywords []string
	regexes  map[string]*regexp.Regexp
}

// NewKeywordMatcher pre-compiles a word-boundary pattern for each keyword.
func NewKeywordMatcher(keywords ...string) *KeywordMatcher {
	km := &KeywordMatcher{
		keywords: make([]string, 0, len(keywords)),
		regexes:  make(map[string]*regexp.Regexp, len(keywords)),
	}

	for _, kw := range keywords {
		kw = Fold(kw)
		if kw == "" {
			continue
		}
		if _, exists := km.regexes[kw]; exists {
			continue
		}
		pattern := `\b` + regexp.QuoteMeta(kw) + `\b`
		km.regexes[kw] = regexp.MustCompile(`(?i)` + pattern)
		km.keywords = append(km.keywords, kw)
	}

	return km
}

// Matches returns the keywords found in text, in declaration order.
func (km *KeywordMatcher) Matches(text string) []string {
	if text == "" {
		return nil
	}
	folded := Fold(text)

	var found []string
	for _, kw := range km.keywords {
		if km.regexes[kw].MatchString(folded) {
			found = append(found, kw)
		}
	}
	return found
}

// Count returns how many distinct keywords appear in text.
func (km *KeywordMatcher) Count(text string) int {
	return len(km.Matches(text))
}

// MatchesAny reports whether any keyword appears in text.
func (km *KeywordMatcher) MatchesAny(text string) bool {
	if text == "" {
		return false
	}
	folded := Fold(text)
	for _, kw := range km.keywords {
		if km.regexes[kw].MatchString(folded) {
			return true
		}
	}
	return false
}
