// Package notify delivers reminder and escalation messages to people through a
// chat gateway.
package notify

import (
	"context"
	"fmt"
)

// Handle identifies a delivered message so it can be edited or replied to.
type Handle string

type Recipient struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name,omitempty"`
	Language string `json:"language,omitempty"`
}

// Action is a quick-action button attached to a message. Data is what the chat
// layer posts back when it is pressed.
type Action struct {
	Kind  string `json:"kind"`
	Label string `json:"label"`
	Data  string `json:"data"`
}

const (
	ActionDone     = "done"
	ActionSnooze   = "snooze"
	ActionCustom   = "custom"
	ActionPostpone = "postpone"
)

// SnoozeMinutes are the offsets offered on reminder messages.
var SnoozeMinutes = []int{10, 15, 30, 60}

type Message struct {
	Kind    string   `json:"kind"`
	TaskID  string   `json:"task_id,omitempty"`
	Text    string   `json:"text"`
	Actions []Action `json:"actions,omitempty"`
	ReplyTo Handle   `json:"reply_to,omitempty"`
}

type Notifier interface {
	Send(ctx context.Context, to Recipient, msg Message) (Handle, error)
	// EditOrAppend replaces the message behind h, or sends a new one when the
	// gateway can no longer edit it.
	EditOrAppend(ctx context.Context, to Recipient, h Handle, msg Message) (Handle, error)
}

type DeliveryError struct {
	Recipient string
	Status    int
	Err       error
}

func (e *DeliveryError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("deliver to %s: status %d: %v", e.Recipient, e.Status, e.Err)
	}
	return fmt.Sprintf("deliver to %s: %v", e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
