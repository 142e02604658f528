package main

import (
	"fmt"
	"strings"

	"github.com/ashureev/goalmap/internal/domain"
	"github.com/ashureev/goalmap/internal/roadmap"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	doneStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999")).Strikethrough(true)
	idStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))

	difficultyStyles = map[domain.Difficulty]lipgloss.Style{
		domain.DifficultyGreen:  lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")),
		domain.DifficultyYellow: lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")),
		domain.DifficultyRed:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")),
		domain.DifficultyPurple: lipgloss.NewStyle().Foreground(lipgloss.Color("#9B59B6")),
	}
)

func renderList(items []roadmap.RoadmapListItem) string {
	if len(items) == 0 {
		return "no roadmaps\n"
	}
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "%s %s %s\n", idStyle.Render(fmt.Sprintf("#%d", it.ID)), titleStyle.Render(it.Title), it.Progress)
	}
	return b.String()
}

func renderRoadmap(view *roadmap.RoadmapView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", idStyle.Render(fmt.Sprintf("#%d", view.ID)), titleStyle.Render(view.Title))
	writeNodes(&b, view.Steps, "")
	return b.String()
}

func renderSteps(nodes []*roadmap.StepNode) string {
	var b strings.Builder
	writeNodes(&b, nodes, "")
	return b.String()
}

func writeNodes(b *strings.Builder, nodes []*roadmap.StepNode, prefix string) {
	for i, n := range nodes {
		branch, next := "├── ", "│   "
		if i == len(nodes)-1 {
			branch, next = "└── ", "    "
		}
		fmt.Fprintf(b, "%s%s%s\n", prefix, branch, stepLine(n))
		writeNodes(b, n.Children, prefix+next)
	}
}

func stepLine(n *roadmap.StepNode) string {
	mark := "[ ]"
	title := n.Title
	if n.IsDone {
		mark = "[x]"
		title = doneStyle.Render(title)
	}
	style, ok := difficultyStyles[n.Difficulty]
	if !ok {
		style = difficultyStyles[domain.DifficultyGreen]
	}
	return fmt.Sprintf("%s %s %s %s", mark, title, style.Render("●"), idStyle.Render(fmt.Sprintf("(%d)", n.ID)))
}
