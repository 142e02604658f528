package main

import (
	"strings"
	"testing"

	"github.com/ashureev/goalmap/internal/domain"
	"github.com/ashureev/goalmap/internal/roadmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderRoadmapTree(t *testing.T) {
	view := &roadmap.RoadmapView{
		ID:    3,
		Title: "Learn Go",
		Steps: []*roadmap.StepNode{
			{ID: 1, Title: "Basics", Difficulty: domain.DifficultyGreen, IsDone: true, Children: []*roadmap.StepNode{}},
			{ID: 2, Title: "Web", Difficulty: domain.DifficultyRed, Children: []*roadmap.StepNode{
				{ID: 5, Title: "Routing", Difficulty: "bogus", Children: []*roadmap.StepNode{}},
			}},
		},
	}

	lines := strings.Split(strings.TrimSuffix(renderRoadmap(view), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "Learn Go")
	assert.True(t, strings.HasPrefix(lines[1], "├── [x] "))
	assert.True(t, strings.HasPrefix(lines[2], "└── [ ] Web"))
	assert.True(t, strings.HasPrefix(lines[3], "    └── [ ] Routing"))
	assert.Contains(t, lines[3], "(5)")
}

func TestRenderList(t *testing.T) {
	assert.Equal(t, "no roadmaps\n", renderList(nil))

	got := renderList([]roadmap.RoadmapListItem{{ID: 1, Title: "Go", Progress: "1/4"}})
	assert.Contains(t, got, "Go")
	assert.Contains(t, got, "1/4")
}
