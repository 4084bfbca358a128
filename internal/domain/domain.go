package domain

import (
	"errors"
	"strings"
	"time"
)

type Role string

const (
	RoleEmployee  Role = "employee"
	RoleLead      Role = "lead"
	RoleHead      Role = "head"
	RoleDeveloper Role = "developer"
)

func (r Role) Valid() bool {
	switch r {
	case RoleEmployee, RoleLead, RoleHead, RoleDeveloper:
		return true
	}
	return false
}

// CanManageLinks reports whether the role may create or remove manager links.
func (r Role) CanManageLinks() bool {
	return r == RoleHead || r == RoleDeveloper
}

type Status string

const (
	StatusNew        Status = "new"
	StatusInProgress Status = "in_progress"
	// StatusAlmostDone is reserved: it can be set manually but nothing reads it.
	StatusAlmostDone Status = "almost_done"
	StatusDone       Status = "done"
)

func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusAlmostDone, StatusDone:
		return true
	}
	return false
}

func (s Status) rank() int {
	switch s {
	case StatusNew:
		return 0
	case StatusInProgress:
		return 1
	case StatusAlmostDone:
		return 2
	case StatusDone:
		return 3
	}
	return -1
}

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool { return s == StatusDone }

type EventKind string

const (
	EventCreate   EventKind = "create"
	EventStart    EventKind = "start"
	EventPostpone EventKind = "postpone"
	EventDone     EventKind = "done"
	EventStatus   EventKind = "status"
	EventSnooze   EventKind = "snooze"
)

type User struct {
	ID         string    `json:"id"`
	FullName   string    `json:"full_name"`
	Role       Role      `json:"role" enum:"employee,lead,head,developer"`
	Department string    `json:"department,omitempty"`
	Active     bool      `json:"active"`
	Registered bool      `json:"registered"`
	CreatedAt  time.Time `json:"created_at" format:"date-time"`
}

// NewUser builds a freshly contacted, unregistered employee.
func NewUser(id, fullName string, now time.Time) (User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, errors.New("user id is required")
	}
	name := strings.TrimSpace(fullName)
	if name == "" {
		name = "unknown"
	}
	return User{
		ID:        id,
		FullName:  name,
		Role:      RoleEmployee,
		Active:    true,
		CreatedAt: now.UTC(),
	}, nil
}

type ManagerLink struct {
	ManagerID     string    `json:"manager_id"`
	SubordinateID string    `json:"subordinate_id"`
	CreatedAt     time.Time `json:"created_at" format:"date-time"`
}

// NewManagerLink rejects self links; cycle checks need the whole graph and live in
// the hierarchy package.
func NewManagerLink(managerID, subordinateID string, now time.Time) (ManagerLink, error) {
	if managerID == "" || subordinateID == "" {
		return ManagerLink{}, errors.New("manager and subordinate are required")
	}
	if managerID == subordinateID {
		return ManagerLink{}, &CycleRejectedError{ManagerID: managerID, SubordinateID: subordinateID}
	}
	return ManagerLink{ManagerID: managerID, SubordinateID: subordinateID, CreatedAt: now.UTC()}, nil
}

type Task struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	Description        string     `json:"description"`
	Deadline           *time.Time `json:"deadline,omitempty" format:"date-time"`
	Status             Status     `json:"status" enum:"new,in_progress,almost_done,done"`
	CreatedAt          time.Time  `json:"created_at" format:"date-time"`
	UpdatedAt          time.Time  `json:"updated_at" format:"date-time"`
	StartedAt          *time.Time `json:"started_at,omitempty" format:"date-time"`
	CompletedAt        *time.Time `json:"completed_at,omitempty" format:"date-time"`
	CompletedBy        *string    `json:"completed_by,omitempty"`
	AssignedBy         *string    `json:"assigned_by,omitempty"`
	NextReminderAt     *time.Time `json:"next_reminder_at,omitempty" format:"date-time"`
	LastReminderAt     *time.Time `json:"last_reminder_at,omitempty" format:"date-time"`
	LastReminderMsgID  *string    `json:"last_reminder_msg_id,omitempty"`
	LastPostponeReason *string    `json:"last_postpone_reason,omitempty"`
	DelayMinutes       int        `json:"delay_minutes"`
}

// NewTask enforces creation invariants: a description, an owner and a reminder clock
// set exactly at the deadline.
func NewTask(id, userID, description string, deadline *time.Time, assignedBy string, now time.Time) (Task, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return Task{}, errors.New("description is required")
	}
	if userID == "" {
		return Task{}, errors.New("owner is required")
	}
	now = now.UTC()
	t := Task{
		ID:          id,
		UserID:      userID,
		Description: description,
		Status:      StatusNew,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if deadline != nil {
		d := deadline.UTC()
		if !d.After(now) {
			return Task{}, &InvalidTransitionError{TaskID: id, Op: "create", Reason: "deadline must be in the future"}
		}
		t.Deadline = &d
		next := d
		t.NextReminderAt = &next
	}
	if assignedBy != "" && assignedBy != userID {
		t.AssignedBy = &assignedBy
	}
	return t, nil
}

// CanAdvanceTo reports whether a manual status change keeps the status monotonic.
func (t Task) CanAdvanceTo(next Status) bool {
	if t.Status.Terminal() || !next.Valid() {
		return false
	}
	return next.rank() >= t.Status.rank()
}

type TaskEvent struct {
	ID      int64          `json:"id"`
	TaskID  string         `json:"task_id"`
	Kind    EventKind      `json:"kind" enum:"create,start,postpone,done,status,snooze"`
	At      time.Time      `json:"at" format:"date-time"`
	ActorID string         `json:"actor_id,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}
