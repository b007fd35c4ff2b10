package main

import (
	"fmt"
	"io"
	"strings"

	"ai-companion-demo/companion/internal/models"

	"github.com/fatih/color"
)

const barWidth = 20

// bar draws value (0..100) as a fixed width gauge
func bar(value int) string {
	value = models.ClampUnit(value)
	filled := value * barWidth / 100
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", barWidth-filled) + "]"
}

func gaugeColor(value int) *color.Color {
	switch {
	case value < 30:
		return color.New(color.FgRed)
	case value < 60:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgGreen)
	}
}

func renderParams(w io.Writer, p models.Params) {
	gaugeColor(p.Energy).Fprintf(w, "  energy %s %3d\n", bar(p.Energy), p.Energy)
	gaugeColor(p.Mood).Fprintf(w, "  mood   %s %3d\n", bar(p.Mood), p.Mood)
	fmt.Fprintf(w, "  bond   %d\n", p.Bond)
	if status := models.DeriveStatus(p); status != models.StatusNormal {
		color.New(color.FgMagenta).Fprintf(w, "  status %s\n", status)
	}
}

func renderMessage(w io.Writer, name string, m models.ChatMessage) {
	if m.Role == models.RoleUser {
		color.New(color.FgBlue).Fprintf(w, "you> %s\n", m.Content)
		return
	}
	color.New(color.FgCyan).Fprintf(w, "%s> ", name)
	fmt.Fprintln(w, m.Content)
}
