package roadmap

import "time"

// EventType names a change pushed to live subscribers.
type EventType string

const (
	EventRoadmapCreated EventType = "roadmap_created"
	EventStepsAdded     EventType = "steps_added"
	EventStepToggled    EventType = "step_toggled"
	EventRoadmapDeleted EventType = "roadmap_deleted"
)

// Event is published after a successful mutation. OwnerExternalID routes it
// to the owner's subscribers.
type Event struct {
	Type            EventType `json:"type"`
	OwnerExternalID string    `json:"-"`
	Timestamp       time.Time `json:"timestamp"`
	Data            any       `json:"data"`
}

// EventPublisher receives service events. Publish must not block.
type EventPublisher interface {
	Publish(Event)
}

// StepsAddedData is the payload of EventStepsAdded.
type StepsAddedData struct {
	RoadmapID int64       `json:"roadmap_id"`
	ParentID  int64       `json:"parent_id"`
	Steps     []*StepNode `json:"steps"`
	Progress  string      `json:"progress"`
}

// StepToggledData is the payload of EventStepToggled.
type StepToggledData struct {
	RoadmapID int64  `json:"roadmap_id"`
	ID        int64  `json:"id"`
	IsDone    bool   `json:"is_done"`
	Progress  string `json:"progress"`
}

// RoadmapDeletedData is the payload of EventRoadmapDeleted.
type RoadmapDeletedData struct {
	ID int64 `json:"id"`
}

// Recorder receives operation metrics.
type Recorder interface {
	ObserveGeneration(mode, outcome string, d time.Duration)
	StepsCreated(n int)
	RoadmapCreated()
	RoadmapDeleted()
	StepToggled()
}

type noopRecorder struct{}

func (noopRecorder) ObserveGeneration(string, string, time.Duration) {}
func (noopRecorder) StepsCreated(int)                                {}
func (noopRecorder) RoadmapCreated()                                 {}
func (noopRecorder) RoadmapDeleted()                                 {}
func (noopRecorder) StepToggled()                                    {}
