package scheduling

import (
	"errors"

	"scheduling-api/internal/duration"
	"scheduling-api/internal/store"
)

var (
	// ErrDuplicateName is returned when a project or task name is already
	// taken within its company or project.
	ErrDuplicateName = errors.New("name already exists")
	// ErrPastStartTime is returned when a start precedes the allowed floor
	ErrPastStartTime = errors.New("start time is in the past")
	// ErrInvalidState is returned when an operation does not apply to the
	// current derived state.
	ErrInvalidState = errors.New("invalid state for operation")
	// ErrCyclicDependency is returned when a dependency edge would close a cycle
	ErrCyclicDependency = errors.New("cyclic dependency")
	// ErrInvalidInput is returned for malformed requests
	ErrInvalidInput = errors.New("invalid input")

	ErrNotFound        = store.ErrNotFound
	ErrInvalidDuration = duration.ErrInvalidDuration
)
