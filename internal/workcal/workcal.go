// Package workcal keeps notification instants inside the business window.
package workcal

import (
	"fmt"
	"time"
)

const (
	// NearDeadline is how close a deadline must be before the next check is
	// pinned to it instead of the hourly heartbeat.
	NearDeadline = time.Hour
	// Grace is added to a near deadline so the check lands just after it.
	Grace     = 5 * time.Minute
	Heartbeat = time.Hour
)

type Calendar struct {
	StartHour int
	EndHour   int
	Location  *time.Location
	Now       func() time.Time
}

// New validates the window. start must be before end and both within a day.
func New(startHour, endHour int, loc *time.Location) (*Calendar, error) {
	if startHour < 0 || endHour > 24 || startHour >= endHour {
		return nil, fmt.Errorf("invalid work window %d-%d", startHour, endHour)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Calendar{StartHour: startHour, EndHour: endHour, Location: loc}, nil
}

func (c *Calendar) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// IsWithinWindow reports whether t's local hour is in [StartHour, EndHour).
func (c *Calendar) IsWithinWindow(t time.Time) bool {
	h := t.In(c.Location).Hour()
	return h >= c.StartHour && h < c.EndHour
}

// ClampForward moves t to the nearest window start at or after it. Instants
// already inside the window are returned unchanged.
func (c *Calendar) ClampForward(t time.Time) time.Time {
	local := t.In(c.Location)
	y, m, d := local.Date()
	start := time.Date(y, m, d, c.StartHour, 0, 0, 0, c.Location)
	switch {
	case local.Before(start):
		return start.UTC()
	case local.Hour() >= c.EndHour:
		return time.Date(y, m, d+1, c.StartHour, 0, 0, 0, c.Location).UTC()
	}
	return t.UTC()
}

// NextReminderAfter decides when a task should be looked at again. A deadline
// within the hour gets a check just after it; anything else (including no
// deadline) gets the hourly heartbeat. The result is always inside the window.
func (c *Calendar) NextReminderAfter(deadline *time.Time) time.Time {
	now := c.now()
	if deadline != nil && deadline.Sub(now) <= NearDeadline {
		return c.ClampForward(deadline.Add(Grace))
	}
	return c.ClampForward(now.Add(Heartbeat))
}

// Local formats t in the calendar zone for messages.
func (c *Calendar) Local(t time.Time) string {
	return t.In(c.Location).Format("02.01.2006 15:04")
}
