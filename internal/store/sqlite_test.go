package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ashureev/goalmap/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "roadmaps.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func drafts(titles ...string) []domain.StepDraft {
	out := make([]domain.StepDraft, 0, len(titles))
	for _, title := range titles {
		out = append(out, domain.StepDraft{Title: title, Difficulty: domain.DifficultyGreen})
	}
	return out
}

func TestGetOrCreateUserIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.GetOrCreateUser(ctx, "max-1")
	require.NoError(t, err)
	second, err := s.GetOrCreateUser(ctx, "max-1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "max-1", second.ExternalID)
}

func TestGetOrCreateUserConcurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const workers = 8
	ids := make([]int64, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, err := s.GetOrCreateUser(ctx, "racer")
			errs[i] = err
			if u != nil {
				ids[i] = u.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
}

func TestGetUserByExternalIDNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetUserByExternalID(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateAndGetRoadmapPreservesOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user, err := s.GetOrCreateUser(ctx, "owner")
	require.NoError(t, err)

	created, err := s.CreateRoadmap(ctx, user.ID, "Learn Go", drafts("Basics", "HTTP", "Databases", "Deploy"))
	require.NoError(t, err)
	require.Len(t, created.Steps, 4)

	got, err := s.GetRoadmap(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Learn Go", got.Title)
	assert.Equal(t, user.ID, got.OwnerID)
	require.Len(t, got.Steps, 4)
	for i, want := range []string{"Basics", "HTTP", "Databases", "Deploy"} {
		assert.Equal(t, want, got.Steps[i].Title)
		assert.Nil(t, got.Steps[i].ParentID)
		assert.Empty(t, got.Steps[i].Children)
		assert.False(t, got.Steps[i].IsDone)
	}
}

func TestAddChildrenInheritsRoadmapAndNests(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user, err := s.GetOrCreateUser(ctx, "owner")
	require.NoError(t, err)
	rm, err := s.CreateRoadmap(ctx, user.ID, "Learn Go", drafts("Basics", "HTTP"))
	require.NoError(t, err)

	parent := rm.Steps[1]
	children, err := s.AddChildren(ctx, parent.ID, drafts("Routing", "JSON", "Middleware"))
	require.NoError(t, err)
	require.Len(t, children, 3)
	for _, c := range children {
		assert.Equal(t, rm.ID, c.RoadmapID)
		require.NotNil(t, c.ParentID)
		assert.Equal(t, parent.ID, *c.ParentID)
	}

	grandchildren, err := s.AddChildren(ctx, children[0].ID, drafts("chi"))
	require.NoError(t, err)

	more, err := s.AddChildren(ctx, parent.ID, drafts("Testing"))
	require.NoError(t, err)
	assert.Equal(t, 3, more[0].Position)

	got, err := s.GetRoadmap(ctx, rm.ID)
	require.NoError(t, err)
	require.Len(t, got.Steps, 2)
	assert.Empty(t, got.Steps[0].Children)
	require.Len(t, got.Steps[1].Children, 4)
	assert.Equal(t, []string{"Routing", "JSON", "Middleware", "Testing"}, titles(got.Steps[1].Children))
	require.Len(t, got.Steps[1].Children[0].Children, 1)
	assert.Equal(t, grandchildren[0].ID, got.Steps[1].Children[0].Children[0].ID)

	depth, err := s.StepDepth(ctx, grandchildren[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 3, depth)
}

func TestAddChildrenUnknownParent(t *testing.T) {
	s := newTestStore(t)

	_, err := s.AddChildren(context.Background(), 999, drafts("orphan"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestToggleStepTwiceRestores(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user, err := s.GetOrCreateUser(ctx, "owner")
	require.NoError(t, err)
	rm, err := s.CreateRoadmap(ctx, user.ID, "Learn Go", drafts("Basics"))
	require.NoError(t, err)
	id := rm.Steps[0].ID

	on, err := s.ToggleStep(ctx, id)
	require.NoError(t, err)
	assert.True(t, on.IsDone)

	off, err := s.ToggleStep(ctx, id)
	require.NoError(t, err)
	assert.False(t, off.IsDone)

	_, err = s.ToggleStep(ctx, 12345)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteRoadmapCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user, err := s.GetOrCreateUser(ctx, "owner")
	require.NoError(t, err)
	rm, err := s.CreateRoadmap(ctx, user.ID, "Learn Go", drafts("Basics", "HTTP"))
	require.NoError(t, err)
	children, err := s.AddChildren(ctx, rm.Steps[0].ID, drafts("Types", "Loops"))
	require.NoError(t, err)
	grandchildren, err := s.AddChildren(ctx, children[1].ID, drafts("range"))
	require.NoError(t, err)

	require.NoError(t, s.DeleteRoadmap(ctx, rm.ID))

	_, err = s.GetRoadmap(ctx, rm.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	all := []int64{rm.Steps[0].ID, rm.Steps[1].ID, children[0].ID, children[1].ID, grandchildren[0].ID}
	for _, id := range all {
		_, err := s.GetStep(ctx, id)
		assert.ErrorIs(t, err, domain.ErrNotFound, "step %d survived delete", id)
	}

	assert.ErrorIs(t, s.DeleteRoadmap(ctx, rm.ID), domain.ErrNotFound)

	// The owner outlives its roadmaps.
	_, err = s.GetUserByExternalID(ctx, "owner")
	assert.NoError(t, err)
}

func TestAddChildrenAfterRoadmapDeleted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user, err := s.GetOrCreateUser(ctx, "owner")
	require.NoError(t, err)
	rm, err := s.CreateRoadmap(ctx, user.ID, "Learn Go", drafts("Basics"))
	require.NoError(t, err)
	require.NoError(t, s.DeleteRoadmap(ctx, rm.ID))

	_, err = s.AddChildren(ctx, rm.Steps[0].ID, drafts("late child"))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM steps`).Scan(&count))
	assert.Zero(t, count)
}

func TestListRoadmapsLoadsForests(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice, err := s.GetOrCreateUser(ctx, "alice")
	require.NoError(t, err)
	bob, err := s.GetOrCreateUser(ctx, "bob")
	require.NoError(t, err)

	first, err := s.CreateRoadmap(ctx, alice.ID, "Learn Go", drafts("a", "b"))
	require.NoError(t, err)
	_, err = s.AddChildren(ctx, first.Steps[0].ID, drafts("a1", "a2"))
	require.NoError(t, err)
	_, err = s.CreateRoadmap(ctx, alice.ID, "Run a marathon", drafts("c"))
	require.NoError(t, err)
	_, err = s.CreateRoadmap(ctx, bob.ID, "Bake bread", drafts("d"))
	require.NoError(t, err)

	list, err := s.ListRoadmaps(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Learn Go", list[0].Title)
	require.Len(t, list[0].Steps, 2)
	assert.Len(t, list[0].Steps[0].Children, 2)
	assert.Equal(t, "Run a marathon", list[1].Title)

	none, err := s.ListRoadmaps(ctx, 9999)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSchemaRejectsCrossRoadmapChild(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user, err := s.GetOrCreateUser(ctx, "owner")
	require.NoError(t, err)
	a, err := s.CreateRoadmap(ctx, user.ID, "A", drafts("a"))
	require.NoError(t, err)
	b, err := s.CreateRoadmap(ctx, user.ID, "B", drafts("b"))
	require.NoError(t, err)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO steps (roadmap_id, parent_id, position, title, created_at)
		VALUES (?, ?, 0, 'intruder', 0)`, b.ID, a.Steps[0].ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match parent roadmap")

	_, err = s.db.ExecContext(ctx, `UPDATE steps SET parent_id = ? WHERE id = ?`, a.Steps[0].ID, b.Steps[0].ID)
	require.Error(t, err)
}

func TestAssembleForestToleratesChildBeforeParent(t *testing.T) {
	pid := int64(1)
	steps := []*domain.Step{
		{ID: 2, ParentID: &pid, Position: 0, Children: []*domain.Step{}},
		{ID: 1, Position: 5, Children: []*domain.Step{}},
	}

	roots := assembleForest(steps)
	require.Len(t, roots, 1)
	assert.Equal(t, int64(1), roots[0].ID)
	require.Len(t, roots[0].Children, 1)
	assert.Equal(t, int64(2), roots[0].Children[0].ID)
}

func titles(steps []*domain.Step) []string {
	out := make([]string, 0, len(steps))
	for _, st := range steps {
		out = append(out, st.Title)
	}
	return out
}
