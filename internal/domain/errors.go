package domain

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrNotFound matches every *NotFoundError via errors.Is.
	ErrNotFound = errors.New("not found")

	// ErrEmptyGeneration is the cause of a GenerationError when the generator
	// returned no usable steps.
	ErrEmptyGeneration = errors.New("generator returned no steps")
)

// NotFoundError reports a missing user, roadmap or step.
type NotFoundError struct {
	Entity string
	ID     string
}

// NewNotFound returns a NotFoundError for an entity keyed by a numeric id.
func NewNotFound(entity string, id int64) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: strconv.FormatInt(id, 10)}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// Is makes errors.Is(err, ErrNotFound) true for any NotFoundError.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// GenerationError reports that the step generator produced nothing usable,
// whether it failed, timed out or answered with an empty list.
type GenerationError struct {
	Op  string
	Err error
}

func (e *GenerationError) Error() string {
	if e.Err == nil {
		return "generate " + e.Op + ": no usable output"
	}
	return "generate " + e.Op + ": " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// StructuralError reports a cycle or an over-deep tree found while walking
// steps. The data model rules this out; seeing one means corrupted storage.
type StructuralError struct {
	StepID int64
	Reason string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("step %d: %s", e.StepID, e.Reason)
}

// DepthLimitError is returned when decomposing a step would exceed the
// configured maximum tree depth.
type DepthLimitError struct {
	StepID int64
	Depth  int
	Max    int
}

func (e *DepthLimitError) Error() string {
	return fmt.Sprintf("step %d is at depth %d, decomposition limit is %d", e.StepID, e.Depth, e.Max)
}

// InputError reports caller input that cannot be used, such as an empty
// prompt or a malformed user id. Malformed fields in generated step
// descriptors are a different matter: they are repaired with defaults and
// logged, never returned.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return e.Field + ": " + e.Reason
}
