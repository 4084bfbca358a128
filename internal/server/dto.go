package server

import (
	"remindline/internal/domain"
	"remindline/internal/engine"
	"remindline/internal/scheduler"
)

// Request payloads

type CreateTaskRequest struct {
	ID *string `json:"id,omitempty"`
	// OwnerID defaults to the caller. A different owner makes the task an
	// assignment.
	OwnerID     string `json:"owner_id,omitempty"`
	Description string `json:"description" minLength:"1"`
	Deadline    string `json:"deadline,omitempty" example:"завтра в 15:00"`
}

type PostponeRequest struct {
	Deadline string `json:"deadline" minLength:"1" example:"через 2 часа"`
	Reason   string `json:"reason,omitempty"`
}

type SnoozeRequest struct {
	Minutes int    `json:"minutes,omitempty" minimum:"0" maximum:"1440"`
	Until   string `json:"until,omitempty" example:"в 16"`
}

type StatusRequest struct {
	Status domain.Status `json:"status" enum:"new,in_progress,almost_done"`
}

type EnsureUserRequest struct {
	ID         string `json:"id" minLength:"1"`
	FullName   string `json:"full_name,omitempty"`
	Department string `json:"department,omitempty"`
	Register   bool   `json:"register,omitempty"`
}

type RoleRequest struct {
	Role domain.Role `json:"role" enum:"employee,lead,head,developer"`
}

type LinkRequest struct {
	ManagerID     string `json:"manager_id" minLength:"1"`
	SubordinateID string `json:"subordinate_id" minLength:"1"`
}

type ReplyRequest struct {
	MessageID string `json:"message_id" minLength:"1"`
	Text      string `json:"text" minLength:"1"`
}

// Response payloads

type TaskBody struct {
	Body domain.Task `json:"body"`
}

type TaskListBody struct {
	Body []domain.Task `json:"body"`
}

type CreateTaskBody struct {
	Body engine.CreateResult `json:"body"`
}

type UserBody struct {
	Body domain.User `json:"body"`
}

type UserListBody struct {
	Body []domain.User `json:"body"`
}

type LinkBody struct {
	Body domain.ManagerLink `json:"body"`
}

type EventListBody struct {
	Body []domain.TaskEvent `json:"body"`
}

type ReplyBody struct {
	Body engine.ReplyResult `json:"body"`
}

type TickBody struct {
	Body scheduler.TickResult `json:"body"`
}
