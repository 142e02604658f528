package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/goalmap/internal/domain"
)

const stepColumns = `id, roadmap_id, parent_id, position, title, description, difficulty, is_done, created_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoadmap(row rowScanner) (*domain.Roadmap, error) {
	var rm domain.Roadmap
	var createdAt int64
	if err := row.Scan(&rm.ID, &rm.OwnerID, &rm.Title, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan roadmap row: %w", err)
	}
	rm.CreatedAt = time.Unix(createdAt, 0)
	rm.Steps = []*domain.Step{}
	return &rm, nil
}

func scanStep(row rowScanner) (*domain.Step, error) {
	var st domain.Step
	var parentID sql.NullInt64
	var difficulty string
	var createdAt int64

	err := row.Scan(
		&st.ID, &st.RoadmapID, &parentID, &st.Position,
		&st.Title, &st.Description, &difficulty, &st.IsDone, &createdAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan step row: %w", err)
	}

	if parentID.Valid {
		pid := parentID.Int64
		st.ParentID = &pid
	}
	d, ok := domain.ParseDifficulty(difficulty)
	if !ok {
		slog.Warn("Stored step has unknown difficulty, using lowest tier", "step_id", st.ID, "difficulty", difficulty)
	}
	st.Difficulty = d
	st.CreatedAt = time.Unix(createdAt, 0)
	st.Children = []*domain.Step{}
	return &st, nil
}

func (s *SQLiteStore) queryStepList(ctx context.Context, query string, args ...any) ([]*domain.Step, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer closeRows(rows)

	var steps []*domain.Step
	for rows.Next() {
		st, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}
	return steps, nil
}

// assembleForest links a flat, position-ordered list of one roadmap's steps
// into parent/child trees and returns the top-level steps. Parents are
// resolved through an id index, so a child may precede its parent in the
// input without losing sibling order.
func assembleForest(steps []*domain.Step) []*domain.Step {
	byID := make(map[int64]*domain.Step, len(steps))
	for _, st := range steps {
		byID[st.ID] = st
	}

	roots := []*domain.Step{}
	for _, st := range steps {
		if st.ParentID == nil {
			roots = append(roots, st)
			continue
		}
		parent, ok := byID[*st.ParentID]
		if !ok {
			slog.Warn("Step parent missing from roadmap, dropping subtree",
				"step_id", st.ID, "parent_id", *st.ParentID, "roadmap_id", st.RoadmapID)
			continue
		}
		parent.Children = append(parent.Children, st)
	}
	return roots
}
