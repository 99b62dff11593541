// Package tui holds the terminal presentation helpers for the interactive
// CLI: the banner and the markdown renderer.
package tui

import (
	"fmt"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the ASCII art banner for interactive sessions.
func PrintBanner(version string) {
	p := termenv.ColorProfile()
	// Warm gradient, amber into rose.
	s1 := termenv.String(` ____        _   ____            _     _       `).Foreground(p.Color("#fbbf24"))
	s2 := termenv.String(`| __ )  ___ | |_| __ ) _   _  __| | __| |_   _ `).Foreground(p.Color("#f59e0b"))
	s3 := termenv.String(`|  _ \ / _ \| __|  _ \| | | |/ _' |/ _' | | | |`).Foreground(p.Color("#f97316"))
	s4 := termenv.String(`| |_) | (_) | |_| |_) | |_| | (_| | (_| | |_| |`).Foreground(p.Color("#fb7185"))
	s5 := termenv.String(`|____/ \___/ \__|____/ \__,_|\__,_|\__,_|\__, |`).Foreground(p.Color("#f43f5e"))
	s6 := termenv.String(`                                         |___/ `).Foreground(p.Color("#e11d48"))

	fmt.Println()
	fmt.Println(s1)
	fmt.Println(s2)
	fmt.Println(s3)
	fmt.Println(s4)
	fmt.Println(s5)
	fmt.Println(s6)
	fmt.Println(termenv.String("  scripted calls, unscripted customers  ").Faint())
	fmt.Printf("  v%s\n\n", version)
}
