package wizard

import (
	"fmt"
	"strings"

	"ai-companion-demo/companion/internal/models"
)

var placeholderColors = map[models.Style][]string{
	models.StyleAnime:     {"ff6b9d", "c084fc", "67e8f9", "fbbf24"},
	models.StyleCyberpunk: {"22d3ee", "a855f7", "f472b6", "84cc16"},
	models.StyleFantasy:   {"a78bfa", "f472b6", "34d399", "fcd34d"},
}

// PlaceholderAvatars returns count deterministic placeholder images for style.
// They stand in for generated avatars when generation is unavailable.
func PlaceholderAvatars(style models.Style, count int) []string {
	colors, ok := placeholderColors[style]
	if !ok {
		colors = placeholderColors[models.StyleAnime]
	}
	label := strings.ToUpper(string(style[:1])) + string(style[1:])

	out := make([]string, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, fmt.Sprintf(
			"https://via.placeholder.com/512x512/%s/ffffff?text=%s+Avatar+%d",
			colors[i%len(colors)], label, i+1,
		))
	}
	return out
}
