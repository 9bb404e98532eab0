// Package narrative tracks advisory story and scene tags for a session and
// builds the prompt handed to the narrator.
package narrative

import "github.com/jwebster45206/story-arbiter/pkg/textfilter"

// Story stages, in order
const (
	StoryIntro        = "intro"
	StoryTavern       = "tavern"
	StoryQuestOffer   = "quest_offer"
	StoryQuestDetails = "quest_details"
)

// storyTransitions are the keywords that move the story from a stage to the next
var storyTransitions = map[string]struct {
	next     string
	keywords *textfilter.KeywordMatcher
}{
	StoryIntro: {
		next:     StoryTavern,
		keywords: textfilter.NewKeywordMatcher("tavern", "inn", "ale", "drink", "bar", "innkeeper", "barkeep"),
	},
	StoryTavern: {
		next:     StoryQuestOffer,
		keywords: textfilter.NewKeywordMatcher("quest", "job", "work", "task", "reward", "help", "adventure", "rumor", "rumors"),
	},
	StoryQuestOffer: {
		next:     StoryQuestDetails,
		keywords: textfilter.NewKeywordMatcher("accept", "agree", "yes", "details", "tell me more", "where", "how much", "i'll do it"),
	},
}

// AdvanceStory returns the story stage after the player says text. The story
// moves at most one stage per turn and never moves backwards. Unknown stages
// are left as they are; an empty stage starts at intro.
func AdvanceStory(current, text string) string {
	if current == "" {
		current = StoryIntro
	}
	t, ok := storyTransitions[current]
	if !ok {
		return current
	}
	if t.keywords.MatchesAny(text) {
		return t.next
	}
	return current
}
