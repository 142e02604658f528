package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotFoundErrorMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("get roadmap: %w", NewNotFound("roadmap", 42))

	assert.ErrorIs(t, err, ErrNotFound)
	assert.EqualError(t, err, "get roadmap: roadmap 42 not found")

	var nf *NotFoundError
	if assert.ErrorAs(t, err, &nf) {
		assert.Equal(t, "roadmap", nf.Entity)
		assert.Equal(t, "42", nf.ID)
	}
}

func TestGenerationErrorUnwraps(t *testing.T) {
	err := &GenerationError{Op: "children", Err: context.DeadlineExceeded}

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "children")

	empty := &GenerationError{Op: "top_level", Err: ErrEmptyGeneration}
	assert.True(t, errors.Is(empty, ErrEmptyGeneration))
}

func TestParseDifficulty(t *testing.T) {
	tests := []struct {
		in     string
		want   Difficulty
		wantOK bool
	}{
		{"green", DifficultyGreen, true},
		{" Yellow ", DifficultyYellow, true},
		{"RED", DifficultyRed, true},
		{"purple", DifficultyPurple, true},
		{"", DifficultyGreen, false},
		{"impossible", DifficultyGreen, false},
	}
	for _, tt := range tests {
		got, ok := ParseDifficulty(tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
		assert.Equal(t, tt.wantOK, ok, "input %q", tt.in)
	}
	assert.Less(t, DifficultyGreen.Tier(), DifficultyPurple.Tier())
}
