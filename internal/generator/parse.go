package generator

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/ashureev/goalmap/internal/domain"
)

// PlaceholderTitle replaces a missing or blank step title.
const PlaceholderTitle = "Untitled step"

// ErrNoJSONArray is returned when model output contains no JSON array.
var ErrNoJSONArray = errors.New("no JSON array in model output")

var fencedBlock = regexp.MustCompile("(?is)```[a-z]*\\s*(.*?)\\s*```")

// ExtractJSONArray isolates the JSON array text in raw model output. The
// first fenced code block holding a valid array wins, whatever its language
// tag; otherwise the span from the first '[' to the last ']' of raw.
func ExtractJSONArray(raw string) (string, error) {
	for _, m := range fencedBlock.FindAllStringSubmatch(raw, -1) {
		body := m[1]
		if strings.HasPrefix(body, "[") && json.Valid([]byte(body)) {
			return body, nil
		}
	}
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start == -1 || end < start {
		return "", ErrNoJSONArray
	}
	return raw[start : end+1], nil
}

// ParseSteps turns raw model output into step drafts. Malformed entries are
// repaired with defaults and logged rather than rejected.
func ParseSteps(raw string) ([]domain.StepDraft, error) {
	text, err := ExtractJSONArray(raw)
	if err != nil {
		return nil, err
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil, fmt.Errorf("decode step array: %w", err)
	}

	drafts := make([]domain.StepDraft, 0, len(items))
	for i, item := range items {
		var obj map[string]any
		if err := json.Unmarshal(item, &obj); err != nil || obj == nil {
			slog.Warn("Skipping non-object step descriptor", "index", i)
			continue
		}
		drafts = append(drafts, DraftFromMap(i, obj))
	}
	return drafts, nil
}

// DraftFromMap builds a StepDraft from a loosely-typed descriptor, applying
// the title, description and difficulty defaults.
func DraftFromMap(index int, obj map[string]any) domain.StepDraft {
	var d domain.StepDraft

	title, _ := obj["title"].(string)
	if strings.TrimSpace(title) == "" {
		slog.Warn("Step descriptor has no usable title, using placeholder", "index", index)
		title = PlaceholderTitle
	}
	d.Title = strings.TrimSpace(title)

	switch desc := obj["description"].(type) {
	case string:
		d.Description = desc
	case nil:
		slog.Warn("Step descriptor has no description", "index", index)
	default:
		slog.Warn("Step descriptor description is not a string, ignoring", "index", index)
	}

	raw, _ := obj["difficulty"].(string)
	diff, ok := domain.ParseDifficulty(raw)
	if !ok {
		slog.Warn("Step descriptor has invalid difficulty, defaulting",
			"index", index, "difficulty", raw, "default", diff)
	}
	d.Difficulty = diff
	return d
}
