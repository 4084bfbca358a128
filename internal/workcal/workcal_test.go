package workcal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var msk = time.FixedZone("MSK", 3*60*60)

func newCal(t *testing.T, now time.Time) *Calendar {
	t.Helper()
	c, err := New(10, 19, msk)
	require.NoError(t, err)
	c.Now = func() time.Time { return now }
	return c
}

func at(d, h, m int) time.Time { return time.Date(2025, 9, d, h, m, 0, 0, msk) }

func TestNewRejectsBadWindow(t *testing.T) {
	_, err := New(19, 10, msk)
	assert.Error(t, err)
	_, err = New(10, 25, msk)
	assert.Error(t, err)
}

func TestIsWithinWindow(t *testing.T) {
	c := newCal(t, at(22, 12, 0))
	assert.False(t, c.IsWithinWindow(at(22, 9, 59)))
	assert.True(t, c.IsWithinWindow(at(22, 10, 0)))
	assert.True(t, c.IsWithinWindow(at(22, 18, 59)))
	assert.False(t, c.IsWithinWindow(at(22, 19, 0)))
}

func TestClampForward(t *testing.T) {
	c := newCal(t, at(22, 12, 0))
	assert.True(t, at(22, 10, 0).Equal(c.ClampForward(at(22, 7, 30))))
	assert.True(t, at(22, 13, 5).Equal(c.ClampForward(at(22, 13, 5))))
	assert.True(t, at(23, 10, 0).Equal(c.ClampForward(at(22, 19, 0))))
	assert.True(t, at(23, 10, 0).Equal(c.ClampForward(at(22, 23, 59))))
}

func TestClampForwardIdempotent(t *testing.T) {
	c := newCal(t, at(22, 12, 0))
	start := at(20, 0, 0)
	for m := 0; m < 3*24*60; m += 7 {
		x := start.Add(time.Duration(m) * time.Minute)
		once := c.ClampForward(x)
		assert.True(t, once.Equal(c.ClampForward(once)), "not idempotent at %s", x)
		assert.True(t, c.IsWithinWindow(once))
		assert.False(t, once.Before(x))
	}
}

func TestNextReminderAfterNearDeadline(t *testing.T) {
	c := newCal(t, at(22, 14, 0))
	dl := at(22, 14, 20)
	assert.True(t, at(22, 14, 25).Equal(c.NextReminderAfter(&dl)))
}

// A deadline at 20:20 is outside the window: the reminder moves to 10:00 next day.
func TestNextReminderAfterEveningDeadline(t *testing.T) {
	c := newCal(t, at(22, 20, 0))
	dl := at(22, 20, 20)
	assert.True(t, at(23, 10, 0).Equal(c.NextReminderAfter(&dl)))
}

func TestNextReminderAfterDistantDeadline(t *testing.T) {
	c := newCal(t, at(22, 11, 0))
	dl := at(25, 12, 0)
	assert.True(t, at(22, 12, 0).Equal(c.NextReminderAfter(&dl)))
}

func TestNextReminderAfterNoDeadline(t *testing.T) {
	c := newCal(t, at(22, 18, 30))
	assert.True(t, at(23, 10, 0).Equal(c.NextReminderAfter(nil)))
}

func TestNextReminderAlwaysInWindow(t *testing.T) {
	start := at(22, 0, 0)
	for m := 0; m < 24*60; m += 13 {
		now := start.Add(time.Duration(m) * time.Minute)
		c := newCal(t, now)
		for _, off := range []time.Duration{-2 * time.Hour, 0, 30 * time.Minute, 3 * time.Hour, 48 * time.Hour} {
			dl := now.Add(off)
			assert.True(t, c.IsWithinWindow(c.NextReminderAfter(&dl)))
		}
	}
}

func TestLocal(t *testing.T) {
	c := newCal(t, at(22, 12, 0))
	assert.Equal(t, "22.09.2025 14:20", c.Local(time.Date(2025, 9, 22, 11, 20, 0, 0, time.UTC)))
}
