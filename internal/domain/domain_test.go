package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTaskSetsReminderAtDeadline(t *testing.T) {
	now := time.Date(2024, 3, 10, 11, 0, 0, 0, time.UTC)
	dl := now.Add(2 * time.Hour)
	task, err := NewTask("t1", "u1", "  write report ", &dl, "u1", now)
	require.NoError(t, err)
	assert.Equal(t, "write report", task.Description)
	assert.Equal(t, StatusNew, task.Status)
	require.NotNil(t, task.NextReminderAt)
	assert.True(t, task.NextReminderAt.Equal(dl))
	assert.Nil(t, task.AssignedBy, "self-assigned tasks carry no assigner")
}

func TestNewTaskRejectsPastDeadline(t *testing.T) {
	now := time.Date(2024, 3, 10, 11, 0, 0, 0, time.UTC)
	dl := now
	_, err := NewTask("t1", "u1", "x", &dl, "", now)
	var ite *InvalidTransitionError
	require.ErrorAs(t, err, &ite)
}

func TestNewTaskWithoutDeadline(t *testing.T) {
	task, err := NewTask("t1", "u1", "x", nil, "boss", time.Now())
	require.NoError(t, err)
	assert.Nil(t, task.Deadline)
	assert.Nil(t, task.NextReminderAt)
	require.NotNil(t, task.AssignedBy)
	assert.Equal(t, "boss", *task.AssignedBy)
}

func TestCanAdvanceTo(t *testing.T) {
	task := Task{Status: StatusInProgress}
	assert.True(t, task.CanAdvanceTo(StatusAlmostDone))
	assert.True(t, task.CanAdvanceTo(StatusInProgress))
	assert.False(t, task.CanAdvanceTo(StatusNew))
	assert.False(t, task.CanAdvanceTo(Status("bogus")))
	task.Status = StatusDone
	assert.False(t, task.CanAdvanceTo(StatusDone))
}

func TestNewManagerLinkRejectsSelf(t *testing.T) {
	_, err := NewManagerLink("a", "a", time.Now())
	var cre *CycleRejectedError
	require.ErrorAs(t, err, &cre)
}

func TestTypedErrorsUnwrap(t *testing.T) {
	assert.True(t, errors.Is(&NotFoundError{Kind: "task", ID: "x"}, ErrNotFound))
	assert.True(t, errors.Is(&ForbiddenError{ActorID: "a", Action: "edit"}, ErrForbidden))
	assert.True(t, errors.Is(&CycleRejectedError{ManagerID: "a", SubordinateID: "b"}, ErrCycleRejected))
}
