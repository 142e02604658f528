// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/ashureev/goalmap/internal/domain"
)

// Repository defines the interface for persisting users, roadmaps and their
// step trees. Lookups of missing rows return an error matching
// domain.ErrNotFound.
type Repository interface {
	// GetOrCreateUser returns the user with the given external ID, creating it
	// on first sight. Concurrent callers for the same ID get the same user.
	GetOrCreateUser(ctx context.Context, externalID string) (*domain.User, error)

	// GetUserByExternalID retrieves a user without creating it.
	GetUserByExternalID(ctx context.Context, externalID string) (*domain.User, error)

	// GetUserByID retrieves a user by internal ID.
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)

	// CreateRoadmap stores a roadmap and its top-level steps in one transaction.
	CreateRoadmap(ctx context.Context, ownerID int64, title string, drafts []domain.StepDraft) (*domain.Roadmap, error)

	// ListRoadmaps returns every roadmap owned by the user, each with its full
	// step forest attached.
	ListRoadmaps(ctx context.Context, ownerID int64) ([]*domain.Roadmap, error)

	// GetRoadmap retrieves a roadmap with its full step forest attached.
	GetRoadmap(ctx context.Context, id int64) (*domain.Roadmap, error)

	// GetStep retrieves a single step without its children.
	GetStep(ctx context.Context, id int64) (*domain.Step, error)

	// StepDepth returns how deep a step sits in its tree; top-level steps are at depth 1.
	StepDepth(ctx context.Context, id int64) (int, error)

	// AddChildren appends new leaf steps under an existing step in one
	// transaction. The children inherit the parent's roadmap.
	AddChildren(ctx context.Context, parentID int64, drafts []domain.StepDraft) ([]*domain.Step, error)

	// ToggleStep flips a step's completion flag and returns the updated step.
	ToggleStep(ctx context.Context, id int64) (*domain.Step, error)

	// DeleteRoadmap removes a roadmap and every step in it.
	DeleteRoadmap(ctx context.Context, id int64) error

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
