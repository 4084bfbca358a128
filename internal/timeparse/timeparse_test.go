package timeparse_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindline/internal/timeparse"
)

func moscow(t *testing.T) *time.Location {
	t.Helper()
	return time.FixedZone("MSK", 3*60*60)
}

func TestParseAccepted(t *testing.T) {
	loc := moscow(t)
	// 2025-09-22 14:00 local.
	ref := time.Date(2025, 9, 22, 14, 0, 0, 0, loc)

	cases := []struct {
		in   string
		want time.Time
	}{
		{"через 20 минут", ref.Add(20 * time.Minute)},
		{"Через 2 часа", ref.Add(2 * time.Hour)},
		{"in 45 min", ref.Add(45 * time.Minute)},
		{"in 1 hour", ref.Add(time.Hour)},
		{"сегодня в 19", time.Date(2025, 9, 22, 19, 0, 0, 0, loc)},
		{"сегодня в 19:30", time.Date(2025, 9, 22, 19, 30, 0, 0, loc)},
		{"today 09:00", time.Date(2025, 9, 23, 9, 0, 0, 0, loc)},
		{"завтра", time.Date(2025, 9, 23, 10, 0, 0, 0, loc)},
		{"завтра в 12:15", time.Date(2025, 9, 23, 12, 15, 0, 0, loc)},
		{"tomorrow at 8", time.Date(2025, 9, 23, 8, 0, 0, 0, loc)},
		{"в 19", time.Date(2025, 9, 22, 19, 0, 0, 0, loc)},
		{"at 9", time.Date(2025, 9, 23, 9, 0, 0, 0, loc)},
		{"21:43", time.Date(2025, 9, 22, 21, 43, 0, 0, loc)},
		{"14:00", time.Date(2025, 9, 23, 14, 0, 0, 0, loc)},
		{"2143", time.Date(2025, 9, 22, 21, 43, 0, 0, loc)},
		{"0930", time.Date(2025, 9, 23, 9, 30, 0, 0, loc)},
		{"30.09", time.Date(2025, 9, 30, 10, 0, 0, 0, loc)},
		{"30.09 11:00", time.Date(2025, 9, 30, 11, 0, 0, 0, loc)},
		{"30.09 в 11", time.Date(2025, 9, 30, 11, 0, 0, 0, loc)},
		{"01.10.2025 09:30", time.Date(2025, 10, 1, 9, 30, 0, 0, loc)},
		{"01.09", time.Date(2026, 9, 1, 10, 0, 0, 0, loc)},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := timeparse.Parse(tc.in, ref, loc)
			require.NoError(t, err)
			assert.Equal(t, time.UTC, got.Location())
			assert.True(t, tc.want.Equal(got), "want %s got %s", tc.want, got)
			assert.True(t, got.After(ref))
		})
	}
}

func TestParseRejected(t *testing.T) {
	loc := moscow(t)
	ref := time.Date(2025, 9, 22, 14, 0, 0, 0, loc)

	for _, in := range []string{
		"",
		"   ",
		"когда-нибудь",
		"сегодня",
		"через 0 минут",
		"2460",
		"31.02",
		"01.01.2020",
		"31.13.2025",
		"25:00",
		"30.09 25:00",
		"30.09 в 10:75",
		"завтра в 25",
		"tomorrow 24:30",
		"через 1.5 часа",
		"in 2.5 hours",
	} {
		t.Run(in, func(t *testing.T) {
			_, err := timeparse.Parse(in, ref, loc)
			var pe *timeparse.ParseError
			require.True(t, errors.As(err, &pe), "expected ParseError for %q, got %v", in, err)
		})
	}
}

// A task created at 14:00 with "in 20 minutes" gets its deadline at 14:20.
func TestParseRelativeFromReference(t *testing.T) {
	loc := moscow(t)
	ref := time.Date(2025, 9, 22, 14, 0, 0, 0, loc)
	got, err := timeparse.New(loc).Parse("через 20 минут", ref)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 9, 22, 11, 20, 0, 0, time.UTC), got)
}

func TestParseAlwaysAfterReference(t *testing.T) {
	loc := moscow(t)
	p := timeparse.New(loc)
	inputs := []string{"в 10", "10:00", "1000", "сегодня в 10", "завтра", "22.09", "через 1 минуту"}
	start := time.Date(2025, 9, 22, 0, 0, 0, 0, loc)
	for m := 0; m < 24*60; m += 17 {
		ref := start.Add(time.Duration(m) * time.Minute)
		for _, in := range inputs {
			got, err := p.Parse(in, ref)
			if err != nil {
				continue
			}
			require.True(t, got.After(ref), "%q at %s gave %s", in, ref, got)
		}
	}
}

func TestNilLocationIsUTC(t *testing.T) {
	p := timeparse.New(nil)
	assert.Equal(t, time.UTC, p.Location())
}
