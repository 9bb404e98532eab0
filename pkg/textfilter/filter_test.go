package textfilter

import (
	"testing"
)

func TestFold(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "lowercase unchanged", input: "fireball", expected: "fireball"},
		{name: "mixed case", input: "FireBall", expected: "fireball"},
		{name: "surrounding whitespace", input: "  Magic Missile \t", expected: "magic missile"},
		{name: "empty string", input: "", expected: ""},
		{name: "german sharp s", input: "Straße", expected: "strasse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fold(tt.input); got != tt.expected {
				t.Errorf("Fold(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestEqualFold(t *testing.T) {
	if !EqualFold(" Longbow", "longbow ") {
		t.Error("EqualFold should ignore case and surrounding whitespace")
	}
	if EqualFold("longbow", "shortbow") {
		t.Error("EqualFold should not match different names")
	}
}

func TestContainsFold(t *testing.T) {
	tests := []struct {
		haystack string
		needle   string
		expected bool
	}{
		{"Martial Ranged", "ranged", true},
		{"Arrows (20)", "arrow", true},
		{"Crossbow Bolts", "bolt", true},
		{"Sling Bullets", "bullet", true},
		{"Rations", "arrow", false},
	}

	for _, tt := range tests {
		t.Run(tt.haystack+"/"+tt.needle, func(t *testing.T) {
			if got := ContainsFold(tt.haystack, tt.needle); got != tt.expected {
				t.Errorf("ContainsFold(%q, %q) = %v, want %v", tt.haystack, tt.needle, got, tt.expected)
			}
		})
	}
}

func TestKeywordMatcher_Matches(t *testing.T) {
	km := NewKeywordMatcher("attack", "cast", "long rest", "Attack")

	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "single keyword", input: "I attack the goblin", expected: []string{"attack"}},
		{name: "phrase", input: "We take a long rest", expected: []string{"long rest"}},
		{name: "multiple keywords", input: "I CAST a spell and then Attack!", expected: []string{"attack", "cast"}},
		{name: "word boundaries - partial matches ignored", input: "The broadcast continues", expected: nil},
		{name: "empty input", input: "", expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := km.Matches(tt.input)
			if len(got) != len(tt.expected) {
				t.Fatalf("Matches(%q) = %v, want %v", tt.input, got, tt.expected)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("Matches(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.expected[i])
				}
			}
		})
	}
}

func TestKeywordMatcher_MatchesAny(t *testing.T) {
	km := NewKeywordMatcher("tavern", "inn")

	if !km.MatchesAny("Let's head to the inn.") {
		t.Error("expected match for 'inn'")
	}
	if km.MatchesAny("We go inside the cave") {
		t.Error("'inside' should not match 'inn'")
	}
	if km.Count("The tavern is an inn") != 2 {
		t.Errorf("Count = %d, want 2", km.Count("The tavern is an inn"))
	}
}
