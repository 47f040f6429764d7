package main

import "github.com/charmbracelet/lipgloss"

var (
	answerPrefixStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")) // cyan
	toolStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))             // gray
)

// Tree-drawing prefix for tool lines.
const treeCorner = "└ "
