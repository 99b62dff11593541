package tui

import (
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders markdown for the terminal.
// Rendering failures fall back to the raw text so the call never goes silent.
func NewRenderer() func(string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return func(s string) string { return s }
	}
	return func(markdown string) string {
		out, err := r.Render(markdown)
		if err != nil {
			return markdown
		}
		return out
	}
}
