package narrative

import "github.com/jwebster45206/story-arbiter/pkg/textfilter"

// Scene tags. The scene is also the game-state tag handed to validators.
const (
	SceneIntro       = "intro"
	SceneCombat      = "combat"
	SceneSocial      = "social"
	SceneExploration = "exploration"
)

var sceneKeywords = []struct {
	scene    string
	keywords *textfilter.KeywordMatcher
}{
	{SceneCombat, textfilter.NewKeywordMatcher(
		"attack", "fight", "strike", "stab", "slash", "shoot", "cast", "draw my sword",
		"ambush", "charge", "kill", "initiative", "battle",
	)},
	{SceneSocial, textfilter.NewKeywordMatcher(
		"talk", "ask", "say", "speak", "greet", "persuade", "bargain", "haggle",
		"tell", "convince", "chat", "introduce",
	)},
	{SceneExploration, textfilter.NewKeywordMatcher(
		"explore", "search", "look", "walk", "travel", "go", "enter", "climb",
		"investigate", "open", "follow", "head", "map",
	)},
}

// DetectScene picks the scene implied by text. Combat outranks social, which
// outranks exploration. With no match the current scene is kept, or intro if
// there is none.
func DetectScene(current, text string) string {
	for _, s := range sceneKeywords {
		if s.keywords.MatchesAny(text) {
			return s.scene
		}
	}
	if current == "" {
		return SceneIntro
	}
	return current
}
