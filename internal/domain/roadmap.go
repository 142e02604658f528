package domain

import (
	"time"
)

// Roadmap is a named plan owned by one user. Steps holds the top-level steps
// (those without a parent) in display order, each with its subtree attached
// when the roadmap was loaded with its forest.
type Roadmap struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	OwnerID   int64     `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	Steps     []*Step   `json:"-"`
}

// Step is one node of a roadmap's plan tree.
//
// ParentID is nil for top-level steps. Children is only populated when the
// step was loaded as part of a roadmap forest; it is never persisted.
type Step struct {
	ID          int64
	RoadmapID   int64
	ParentID    *int64
	Position    int
	Title       string
	Description string
	Difficulty  Difficulty
	IsDone      bool
	CreatedAt   time.Time
	Children    []*Step
}

// IsTopLevel reports whether s has no parent.
func (s *Step) IsTopLevel() bool {
	return s.ParentID == nil
}

// StepDraft is a sanitized step descriptor ready to be persisted.
type StepDraft struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Difficulty  Difficulty `json:"difficulty"`
}
