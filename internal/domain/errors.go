package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrForbidden     = errors.New("forbidden")
	ErrCycleRejected = errors.New("cycle rejected")
)

// InvalidTransitionError is returned when a lifecycle operation does not apply to
// the task's current state.
type InvalidTransitionError struct {
	TaskID string
	Op     string
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	if e.TaskID == "" {
		return fmt.Sprintf("invalid %s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("invalid %s on task %s: %s", e.Op, e.TaskID, e.Reason)
}

type CycleRejectedError struct {
	ManagerID     string
	SubordinateID string
}

func (e *CycleRejectedError) Error() string {
	if e.ManagerID == e.SubordinateID {
		return fmt.Sprintf("user %s cannot manage themselves", e.ManagerID)
	}
	return fmt.Sprintf("linking %s over %s would create a cycle", e.ManagerID, e.SubordinateID)
}

func (e *CycleRejectedError) Unwrap() error { return ErrCycleRejected }

type DuplicateLinkError struct {
	ManagerID     string
	SubordinateID string
}

func (e *DuplicateLinkError) Error() string {
	return fmt.Sprintf("%s already manages %s", e.ManagerID, e.SubordinateID)
}

// ForbiddenError wraps ErrForbidden with the actor and the refused action.
type ForbiddenError struct {
	ActorID string
	Action  string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("%s: %s may not %s", ErrForbidden, e.ActorID, e.Action)
}

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

// NotFoundError wraps ErrNotFound with the entity kind and id.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }
