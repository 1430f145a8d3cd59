package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/dgallion1/novelsplit/internal/segment"
)

// PatternsCmd lists the boundary pattern table.
type PatternsCmd struct{}

var patternIDStyle = lipgloss.NewStyle().Bold(true).Width(26)

func (c *PatternsCmd) Run(g *globals) error {
	fmt.Fprintln(g.out, "Detected automatically, in priority order:")
	for i, p := range segment.DefaultPatterns() {
		fmt.Fprintf(g.out, "  %d. %s %s\n", i+1, patternIDStyle.Render(p.ID), p.Description)
	}
	fmt.Fprintln(g.out, "\nOnly with --pattern:")
	for _, p := range segment.ExtraPatterns() {
		fmt.Fprintf(g.out, "     %s %s\n", patternIDStyle.Render(p.ID), p.Description)
	}
	return nil
}
