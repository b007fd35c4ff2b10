package session

import (
	"time"

	"ai-companion-demo/companion/internal/models"
)

// DemoCharacterID identifies the built-in offline character
const DemoCharacterID = "demo"

// DefaultReplies is the pool of canned replies used when chat is unavailable
var DefaultReplies = []string{
	"That's so interesting! Tell me more.",
	"I love spending time with you!",
	"Hmm, let me think about that...",
	"You always know how to make me smile.",
	"Really? I had no idea!",
}

// DefaultGreeting opens the transcript of the demo character
const DefaultGreeting = "Hi! I'm so happy to see you! How was your day?"

// DemoCharacter returns the character shown when the backend is unreachable
func DemoCharacter(now time.Time) models.Character {
	return models.Character{
		ID:        DemoCharacterID,
		Name:      "Aiko",
		Style:     models.StyleAnime,
		CreatedAt: now,
	}.WithParams(models.Params{Energy: 80, Mood: 75, Bond: 10})
}

// fallbackDelta is the progress shown for a synthesized reply. Bond grows
// on every tenth user message of the session.
func fallbackDelta(userMessages int) models.ParamDelta {
	d := models.ParamDelta{Energy: -1, Mood: 2}
	if userMessages > 0 && userMessages%10 == 0 {
		d.Bond = 1
	}
	return d
}
