package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ashureev/goalmap/internal/domain"
	"github.com/google/uuid"
)

// JournalConfig configures the generation journal.
type JournalConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// JournalEvent is one NDJSON line describing a generation call.
type JournalEvent struct {
	Timestamp  time.Time          `json:"ts"`
	ID         string             `json:"id"`
	Mode       Mode               `json:"mode"`
	Input      PromptInput        `json:"input"`
	Raw        string             `json:"raw,omitempty"`
	Steps      []domain.StepDraft `json:"steps"`
	Error      string             `json:"error,omitempty"`
	DurationMS int64              `json:"duration_ms"`
}

// Journal appends generation events to one file per day. Writes happen on a
// background goroutine; when the queue is full events are dropped.
type Journal struct {
	dir    string
	logger *slog.Logger
	queue  chan JournalEvent
	done   chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	closed    bool
}

// NewJournal starts a journal writer. A disabled journal accepts and discards
// events.
func NewJournal(cfg JournalConfig, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}
	j := &Journal{dir: cfg.Dir, logger: logger}
	if !cfg.Enabled {
		return j, nil
	}
	if cfg.Dir == "" {
		return nil, errors.New("journal directory is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = 1000
	}
	j.queue = make(chan JournalEvent, size)
	j.done = make(chan struct{})
	go j.run()
	return j, nil
}

// Log enqueues ev without blocking.
func (j *Journal) Log(ev JournalEvent) {
	if j == nil || j.queue == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return
	}
	select {
	case j.queue <- ev:
	default:
		j.logger.Warn("Generation journal queue full, dropping event", "id", ev.ID, "mode", ev.Mode)
	}
}

// Close flushes queued events and stops the writer.
func (j *Journal) Close() error {
	if j == nil || j.queue == nil {
		return nil
	}
	j.closeOnce.Do(func() {
		j.mu.Lock()
		j.closed = true
		close(j.queue)
		j.mu.Unlock()
		<-j.done
	})
	return nil
}

func (j *Journal) run() {
	defer close(j.done)

	var (
		file    *os.File
		current string
	)
	defer func() {
		if file != nil {
			_ = file.Close()
		}
	}()

	for ev := range j.queue {
		name := j.fileName(ev.Timestamp)
		if name != current {
			if file != nil {
				_ = file.Close()
				file = nil
			}
			f, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				j.logger.Error("Failed to open generation journal", "path", name, "error", err)
				current = ""
				continue
			}
			file, current = f, name
		}

		line, err := json.Marshal(ev)
		if err != nil {
			j.logger.Warn("Failed to encode journal event", "id", ev.ID, "error", err)
			continue
		}
		if _, err := file.Write(append(line, '\n')); err != nil {
			j.logger.Warn("Failed to write journal event", "id", ev.ID, "error", err)
		}
	}
}

func (j *Journal) fileName(ts time.Time) string {
	return filepath.Join(j.dir, "generations-"+ts.UTC().Format("2006-01-02")+".ndjson")
}

type rawKey struct{}

type rawCapture struct {
	text string
}

// recordRaw stores the unparsed model text for the journal, if one is listening.
func recordRaw(ctx context.Context, raw string) {
	if c, ok := ctx.Value(rawKey{}).(*rawCapture); ok {
		c.text = raw
	}
}

// Journaled records every call made through next.
type Journaled struct {
	next    Generator
	journal *Journal
}

var _ Generator = (*Journaled)(nil)

// WithJournal wraps next so that each call is written to j.
func WithJournal(next Generator, j *Journal) *Journaled {
	return &Journaled{next: next, journal: j}
}

// GenerateTopLevel forwards to the wrapped generator and journals the call.
func (g *Journaled) GenerateTopLevel(ctx context.Context, topic string) ([]domain.StepDraft, error) {
	return g.record(ctx, ModeTopLevel, PromptInput{Topic: topic}, func(ctx context.Context) ([]domain.StepDraft, error) {
		return g.next.GenerateTopLevel(ctx, topic)
	})
}

// GenerateChildren forwards to the wrapped generator and journals the call.
func (g *Journaled) GenerateChildren(ctx context.Context, title, description string) ([]domain.StepDraft, error) {
	in := PromptInput{Title: title, Description: description}
	return g.record(ctx, ModeChildren, in, func(ctx context.Context) ([]domain.StepDraft, error) {
		return g.next.GenerateChildren(ctx, title, description)
	})
}

func (g *Journaled) record(ctx context.Context, mode Mode, in PromptInput, call func(context.Context) ([]domain.StepDraft, error)) ([]domain.StepDraft, error) {
	capture := &rawCapture{}
	start := time.Now()
	drafts, err := call(context.WithValue(ctx, rawKey{}, capture))

	ev := JournalEvent{
		Mode:       mode,
		Input:      in,
		Raw:        capture.text,
		Steps:      drafts,
		DurationMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	g.journal.Log(ev)
	return drafts, err
}
