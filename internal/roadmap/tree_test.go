package roadmap

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/ashureev/goalmap/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func step(id int64, done bool, children ...*domain.Step) *domain.Step {
	return &domain.Step{
		ID:         id,
		Title:      "step",
		Difficulty: domain.DifficultyGreen,
		IsDone:     done,
		Children:   children,
	}
}

func TestBuildTreeLeafHasEmptyChildren(t *testing.T) {
	node, err := BuildTree(step(1, false))
	require.NoError(t, err)
	require.NotNil(t, node.Children)

	out, err := json.Marshal(node)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"title":"step","description":"","difficulty":"green","is_done":false,"children":[]}`, string(out))
}

func TestBuildTreePreservesOrderAndNesting(t *testing.T) {
	root := step(1, false,
		step(3, true, step(5, false)),
		step(2, false),
	)
	node, err := BuildTree(root)
	require.NoError(t, err)
	require.Len(t, node.Children, 2)
	assert.Equal(t, int64(3), node.Children[0].ID)
	assert.True(t, node.Children[0].IsDone)
	assert.Equal(t, int64(5), node.Children[0].Children[0].ID)
	assert.Equal(t, int64(2), node.Children[1].ID)
}

func TestBuildTreeDetectsCycle(t *testing.T) {
	a := step(1, false)
	b := step(2, false, a)
	a.Children = []*domain.Step{b}

	_, err := BuildTree(a)
	var structural *domain.StructuralError
	require.True(t, errors.As(err, &structural))
	assert.Equal(t, int64(1), structural.StepID)
}

func TestBuildTreeRejectsOverDeepTree(t *testing.T) {
	root := step(1, false)
	cur := root
	for i := 2; i <= MaxTreeDepth+1; i++ {
		next := step(int64(i), false)
		cur.Children = []*domain.Step{next}
		cur = next
	}

	_, err := BuildTree(root)
	var structural *domain.StructuralError
	assert.ErrorAs(t, err, &structural)
}

func TestBuildTreeAcceptsMaximumDepth(t *testing.T) {
	root := step(1, false)
	cur := root
	for i := 2; i <= MaxTreeDepth; i++ {
		next := step(int64(i), false)
		cur.Children = []*domain.Step{next}
		cur = next
	}

	_, err := BuildTree(root)
	assert.NoError(t, err)
}

func TestBuildForestEmpty(t *testing.T) {
	nodes, err := BuildForest(nil)
	require.NoError(t, err)
	assert.NotNil(t, nodes)
	assert.Empty(t, nodes)
}

func TestBuildTreeSharedSubtreeIsNotACycle(t *testing.T) {
	shared := step(9, false)
	root := step(1, false, step(2, false, shared), step(3, false, shared))

	_, err := BuildTree(root)
	assert.NoError(t, err)
}
