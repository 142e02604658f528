package roadmap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/goalmap/internal/domain"
	"github.com/ashureev/goalmap/internal/generator"
	"github.com/ashureev/goalmap/internal/identity"
	"github.com/ashureev/goalmap/internal/store"
	"golang.org/x/sync/singleflight"
)

// DefaultMaxDecomposeDepth is the depth below which steps may still be
// decomposed when no other cap is configured.
const DefaultMaxDecomposeDepth = 8

// RoadmapView is a roadmap with its steps as nested trees.
type RoadmapView struct {
	ID    int64       `json:"id"`
	Title string      `json:"title"`
	Steps []*StepNode `json:"steps"`
}

// RoadmapListItem is one row of a user's roadmap listing.
type RoadmapListItem struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Progress string `json:"progress"`
	Done     int    `json:"-"`
	Total    int    `json:"-"`
}

// ToggleResult is the new completion state of a step.
type ToggleResult struct {
	ID     int64 `json:"id"`
	IsDone bool  `json:"is_done"`
}

// Service implements the user-facing roadmap operations on top of a
// repository and a step generator.
type Service struct {
	repo            store.Repository
	gen             generator.Generator
	maxDepth        int
	generateTimeout time.Duration
	publisher       EventPublisher
	metrics         Recorder
	logger          *slog.Logger

	users singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithMaxDecomposeDepth caps how deep decomposition may grow a tree. Zero
// leaves only the MaxTreeDepth bound.
func WithMaxDecomposeDepth(n int) Option {
	return func(s *Service) { s.maxDepth = n }
}

// WithGenerateTimeout bounds each generator call.
func WithGenerateTimeout(d time.Duration) Option {
	return func(s *Service) { s.generateTimeout = d }
}

// WithPublisher sets the receiver of mutation events.
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r Recorder) Option {
	return func(s *Service) { s.metrics = r }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a roadmap service.
func NewService(repo store.Repository, gen generator.Generator, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		gen:      gen,
		maxDepth: DefaultMaxDecomposeDepth,
		metrics:  noopRecorder{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxDepth <= 0 || s.maxDepth > MaxTreeDepth {
		s.maxDepth = MaxTreeDepth
	}
	return s
}

// MaxDecomposeDepth returns the effective decomposition depth cap.
func (s *Service) MaxDecomposeDepth() int {
	return s.maxDepth
}

// CreateRoadmap generates the top level of a new roadmap for prompt and
// stores it under the user, creating the user on first sight. Nothing is
// stored when generation fails or yields no steps.
func (s *Service) CreateRoadmap(ctx context.Context, externalUserID, prompt string) (*RoadmapView, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, &domain.InputError{Field: "prompt", Reason: "must not be empty"}
	}
	externalUserID = strings.TrimSpace(externalUserID)
	if externalUserID == "" {
		return nil, &domain.InputError{Field: "maxUserId", Reason: "must not be empty"}
	}
	if !identity.Valid(externalUserID) {
		return nil, &domain.InputError{Field: "maxUserId", Reason: "must be 1-128 characters of letters, digits or ._:@-"}
	}

	user, err := s.resolveUser(ctx, externalUserID)
	if err != nil {
		return nil, err
	}

	drafts, err := s.generate(ctx, generator.ModeTopLevel, func(ctx context.Context) ([]domain.StepDraft, error) {
		return s.gen.GenerateTopLevel(ctx, prompt)
	})
	if err != nil {
		return nil, err
	}

	rm, err := s.repo.CreateRoadmap(ctx, user.ID, prompt, drafts)
	if err != nil {
		return nil, fmt.Errorf("create roadmap: %w", err)
	}

	nodes, err := BuildForest(rm.Steps)
	if err != nil {
		return nil, err
	}

	s.metrics.RoadmapCreated()
	s.metrics.StepsCreated(len(rm.Steps))
	s.logger.Info("Roadmap created", "user_id", externalUserID, "roadmap_id", rm.ID, "steps", len(rm.Steps))
	if item, err := listItem(rm); err == nil {
		s.publish(Event{
			Type:            EventRoadmapCreated,
			OwnerExternalID: user.ExternalID,
			Data:            item,
		})
	}

	return &RoadmapView{ID: rm.ID, Title: rm.Title, Steps: nodes}, nil
}

// ListRoadmaps returns the user's roadmaps with their progress. An unknown
// user has no roadmaps; it is not created.
func (s *Service) ListRoadmaps(ctx context.Context, externalUserID string) ([]RoadmapListItem, error) {
	externalUserID = strings.TrimSpace(externalUserID)
	user, err := s.repo.GetUserByExternalID(ctx, externalUserID)
	if errors.Is(err, domain.ErrNotFound) {
		return []RoadmapListItem{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	roadmaps, err := s.repo.ListRoadmaps(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list roadmaps: %w", err)
	}

	items := make([]RoadmapListItem, 0, len(roadmaps))
	for _, rm := range roadmaps {
		item, err := listItem(rm)
		if err != nil {
			return nil, fmt.Errorf("roadmap %d: %w", rm.ID, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// GetRoadmap returns a roadmap with its full step forest.
func (s *Service) GetRoadmap(ctx context.Context, id int64) (*RoadmapView, error) {
	rm, err := s.repo.GetRoadmap(ctx, id)
	if err != nil {
		return nil, err
	}
	nodes, err := BuildForest(rm.Steps)
	if err != nil {
		return nil, err
	}
	return &RoadmapView{ID: rm.ID, Title: rm.Title, Steps: nodes}, nil
}

// DecomposeStep generates sub-steps for a step and appends them as its
// children, returning only the new children.
func (s *Service) DecomposeStep(ctx context.Context, stepID int64) ([]*StepNode, error) {
	step, err := s.repo.GetStep(ctx, stepID)
	if err != nil {
		return nil, err
	}

	depth, err := s.repo.StepDepth(ctx, stepID)
	if err != nil {
		return nil, err
	}
	if depth >= s.maxDepth {
		return nil, &domain.DepthLimitError{StepID: stepID, Depth: depth, Max: s.maxDepth}
	}

	drafts, err := s.generate(ctx, generator.ModeChildren, func(ctx context.Context) ([]domain.StepDraft, error) {
		return s.gen.GenerateChildren(ctx, step.Title, step.Description)
	})
	if err != nil {
		return nil, err
	}

	children, err := s.repo.AddChildren(ctx, stepID, drafts)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("add children: %w", err)
	}

	nodes, err := BuildForest(children)
	if err != nil {
		return nil, err
	}

	s.metrics.StepsCreated(len(children))
	s.logger.Info("Step decomposed", "step_id", stepID, "roadmap_id", step.RoadmapID, "children", len(children))

	if s.publisher != nil {
		if owner, progress, ok := s.ownerAndProgress(ctx, step.RoadmapID); ok {
			s.publish(Event{
				Type:            EventStepsAdded,
				OwnerExternalID: owner,
				Data: StepsAddedData{
					RoadmapID: step.RoadmapID,
					ParentID:  stepID,
					Steps:     nodes,
					Progress:  progress,
				},
			})
		}
	}

	return nodes, nil
}

// ToggleStep flips a step's completion flag.
func (s *Service) ToggleStep(ctx context.Context, stepID int64) (*ToggleResult, error) {
	step, err := s.repo.ToggleStep(ctx, stepID)
	if err != nil {
		return nil, err
	}

	s.metrics.StepToggled()
	s.logger.Info("Step toggled", "step_id", step.ID, "roadmap_id", step.RoadmapID, "is_done", step.IsDone)

	if s.publisher != nil {
		if owner, progress, ok := s.ownerAndProgress(ctx, step.RoadmapID); ok {
			s.publish(Event{
				Type:            EventStepToggled,
				OwnerExternalID: owner,
				Data: StepToggledData{
					RoadmapID: step.RoadmapID,
					ID:        step.ID,
					IsDone:    step.IsDone,
					Progress:  progress,
				},
			})
		}
	}

	return &ToggleResult{ID: step.ID, IsDone: step.IsDone}, nil
}

// DeleteRoadmap removes a roadmap and all of its steps.
func (s *Service) DeleteRoadmap(ctx context.Context, id int64) error {
	var owner string
	if s.publisher != nil {
		if rm, err := s.repo.GetRoadmap(ctx, id); err == nil {
			if u, err := s.repo.GetUserByID(ctx, rm.OwnerID); err == nil {
				owner = u.ExternalID
			}
		}
	}

	if err := s.repo.DeleteRoadmap(ctx, id); err != nil {
		return err
	}

	s.metrics.RoadmapDeleted()
	s.logger.Info("Roadmap deleted", "roadmap_id", id)
	if owner != "" {
		s.publish(Event{
			Type:            EventRoadmapDeleted,
			OwnerExternalID: owner,
			Data:            RoadmapDeletedData{ID: id},
		})
	}
	return nil
}

func (s *Service) resolveUser(ctx context.Context, externalID string) (*domain.User, error) {
	v, err, _ := s.users.Do(externalID, func() (any, error) {
		return s.repo.GetOrCreateUser(ctx, externalID)
	})
	if err != nil {
		return nil, fmt.Errorf("resolve user: %w", err)
	}
	return v.(*domain.User), nil
}

func (s *Service) generate(ctx context.Context, mode generator.Mode, call func(context.Context) ([]domain.StepDraft, error)) ([]domain.StepDraft, error) {
	if s.generateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.generateTimeout)
		defer cancel()
	}

	start := time.Now()
	drafts, err := call(ctx)
	elapsed := time.Since(start)

	switch {
	case err != nil:
		outcome := "error"
		if errors.Is(err, generator.ErrUnavailable) {
			outcome = "unavailable"
		}
		s.metrics.ObserveGeneration(string(mode), outcome, elapsed)
		s.logger.Error("Step generation failed", "mode", mode, "error", err)
		return nil, &domain.GenerationError{Op: string(mode), Err: err}
	case len(drafts) == 0:
		s.metrics.ObserveGeneration(string(mode), "empty", elapsed)
		s.logger.Warn("Step generation returned no steps", "mode", mode)
		return nil, &domain.GenerationError{Op: string(mode), Err: domain.ErrEmptyGeneration}
	}

	s.metrics.ObserveGeneration(string(mode), "ok", elapsed)
	return drafts, nil
}

// ownerAndProgress loads what an event needs. Failures are logged and
// suppress the event; they never fail the mutation.
func (s *Service) ownerAndProgress(ctx context.Context, roadmapID int64) (string, string, bool) {
	rm, err := s.repo.GetRoadmap(ctx, roadmapID)
	if err != nil {
		s.logger.Warn("Skipping event, roadmap not loadable", "roadmap_id", roadmapID, "error", err)
		return "", "", false
	}
	u, err := s.repo.GetUserByID(ctx, rm.OwnerID)
	if err != nil {
		s.logger.Warn("Skipping event, owner not loadable", "roadmap_id", roadmapID, "error", err)
		return "", "", false
	}
	p, err := CountProgress(rm.Steps)
	if err != nil {
		s.logger.Warn("Skipping event, step tree is corrupted", "roadmap_id", roadmapID, "error", err)
		return "", "", false
	}
	return u.ExternalID, p.String(), true
}

func (s *Service) publish(ev Event) {
	if s.publisher == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	s.publisher.Publish(ev)
}

func listItem(rm *domain.Roadmap) (RoadmapListItem, error) {
	p, err := CountProgress(rm.Steps)
	if err != nil {
		return RoadmapListItem{}, err
	}
	return RoadmapListItem{ID: rm.ID, Title: rm.Title, Progress: p.String(), Done: p.Done, Total: p.Total}, nil
}
