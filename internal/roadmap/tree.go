// Package roadmap implements the roadmap tree operations: building nested
// step trees, aggregating progress, and orchestrating generation and storage
// for the user-facing roadmap operations.
package roadmap

import (
	"github.com/ashureev/goalmap/internal/domain"
)

// MaxTreeDepth bounds recursion when walking a step tree. Decomposition is
// never allowed to grow a tree past this depth.
const MaxTreeDepth = 256

// StepNode is the serializable form of a step and its subtree.
type StepNode struct {
	ID          int64             `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Difficulty  domain.Difficulty `json:"difficulty"`
	IsDone      bool              `json:"is_done"`
	Children    []*StepNode       `json:"children"`
}

// BuildTree converts a step and its loaded children into a StepNode tree.
// Children is always non-nil so leaves serialize as an empty list.
func BuildTree(step *domain.Step) (*StepNode, error) {
	return buildTree(step, 1, make(map[int64]struct{}))
}

// BuildForest builds a tree for each step, preserving order.
func BuildForest(steps []*domain.Step) ([]*StepNode, error) {
	nodes := make([]*StepNode, 0, len(steps))
	for _, st := range steps {
		n, err := BuildTree(st)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func buildTree(step *domain.Step, depth int, onPath map[int64]struct{}) (*StepNode, error) {
	if depth > MaxTreeDepth {
		return nil, &domain.StructuralError{StepID: step.ID, Reason: "tree exceeds maximum depth"}
	}
	if _, seen := onPath[step.ID]; seen {
		return nil, &domain.StructuralError{StepID: step.ID, Reason: "cycle in step tree"}
	}
	onPath[step.ID] = struct{}{}
	defer delete(onPath, step.ID)

	node := &StepNode{
		ID:          step.ID,
		Title:       step.Title,
		Description: step.Description,
		Difficulty:  step.Difficulty,
		IsDone:      step.IsDone,
		Children:    make([]*StepNode, 0, len(step.Children)),
	}
	for _, child := range step.Children {
		c, err := buildTree(child, depth+1, onPath)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, c)
	}
	return node, nil
}
