// Package timeparse turns human deadline text ("через 20 минут", "завтра в 10",
// "30.09 11:00", "in 2 hours") into an absolute UTC instant.
package timeparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultHour is used by day and date forms that omit a time.
const DefaultHour = 10

// ParseError is returned for any text the grammar does not accept.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("cannot parse time %q", e.Input)
	}
	return fmt.Sprintf("cannot parse time %q: %s", e.Input, e.Reason)
}

// rule is one grammar form. matched=false lets the next rule try; a non-nil error
// means the form was recognised but the value is unusable.
type rule interface {
	name() string
	apply(s string, ref time.Time) (t time.Time, matched bool, err error)
}

type Parser struct {
	loc   *time.Location
	rules []rule
}

// New returns a parser resolving wall-clock forms in loc (UTC when nil).
func New(loc *time.Location) *Parser {
	if loc == nil {
		loc = time.UTC
	}
	return &Parser{
		loc: loc,
		rules: []rule{
			relativeRule{},
			dayRule{},
			atRule{},
			colonRule{},
			digitsRule{},
			dateRule{},
		},
	}
}

// Parse is a convenience wrapper around New(loc).Parse.
func Parse(text string, ref time.Time, loc *time.Location) (time.Time, error) {
	return New(loc).Parse(text, ref)
}

// Location reports the zone wall-clock forms are resolved in.
func (p *Parser) Location() *time.Location { return p.loc }

// Parse resolves text relative to ref. The result is UTC and strictly after ref.
func (p *Parser) Parse(text string, ref time.Time) (time.Time, error) {
	s := normalize(text)
	if s == "" {
		return time.Time{}, &ParseError{Input: text, Reason: "empty"}
	}
	local := ref.In(p.loc)
	for _, r := range p.rules {
		t, ok, err := r.apply(s, local)
		if err != nil {
			return time.Time{}, &ParseError{Input: text, Reason: fmt.Sprintf("%s: %v", r.name(), err)}
		}
		if !ok {
			continue
		}
		if !t.After(ref) {
			return time.Time{}, &ParseError{Input: text, Reason: "resolves to the past"}
		}
		return t.UTC(), nil
	}
	return time.Time{}, &ParseError{Input: text}
}

func normalize(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = strings.ReplaceAll(s, "ё", "е")
	return strings.Join(strings.Fields(s), " ")
}

// Go's \b only knows ASCII word characters, so Cyrillic keywords are bounded by
// whitespace or the ends of the string instead.
const (
	lb = `(?:^|\s)`
	rb = `(?:\s|$|[.,!])`
)

var (
	reRelMinutes = regexp.MustCompile(lb + `(?:через|in)\s+(\d{1,5})\s*(?:минуту|минуты|минут|мин|м|minutes|minute|mins|min|m)` + rb)
	reRelHours   = regexp.MustCompile(lb + `(?:через|in)\s+(\d{1,4})\s*(?:часов|часа|час|ч|hours|hour|hrs|hr|h)` + rb)

	reToday    = regexp.MustCompile(lb + `(?:сегодня|today)` + rb)
	reTomorrow = regexp.MustCompile(lb + `(?:завтра|tomorrow)` + rb)

	reClock    = regexp.MustCompile(`(?:^|\D)([01]?\d|2[0-3]):([0-5]\d)(?:\D|$)`)
	reAtHour   = regexp.MustCompile(lb + `(?:в|at)\s+([01]?\d|2[0-3])(?::([0-5]\d))?` + rb)
	reBareAt   = regexp.MustCompile(`^(?:в|at)\s+([01]?\d|2[0-3])(?::([0-5]\d))?$`)
	reBareHHMM = regexp.MustCompile(`^([01]?\d|2[0-3]):([0-5]\d)$`)
	reDigits   = regexp.MustCompile(`^(\d{2})(\d{2})$`)
	reDate     = regexp.MustCompile(`(?:^|[^\d.])([0-3]?\d)\.([01]?\d)(?:\.(\d{4}))?(?:[^\d.]|$)`)

	// Looser shapes of the time tokens above, used to reject "25:00" or "в 25"
	// instead of silently falling back to DefaultHour.
	reAnyClock  = regexp.MustCompile(`(?:^|\D)(\d{1,2}):(\d{2})(?:\D|$)`)
	reAnyAtHour = regexp.MustCompile(lb + `(?:в|at)\s+(\d{1,2})(?::(\d{2}))?` + rb)
	reRelPrefix = regexp.MustCompile(lb + `(?:через|in)\s*$`)
)

type relativeRule struct{}

func (relativeRule) name() string { return "relative offset" }

func (relativeRule) apply(s string, ref time.Time) (time.Time, bool, error) {
	unit := time.Minute
	m := reRelMinutes.FindStringSubmatch(s)
	if m == nil {
		m = reRelHours.FindStringSubmatch(s)
		unit = time.Hour
	}
	if m == nil {
		return time.Time{}, false, nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, true, err
	}
	if n <= 0 {
		return time.Time{}, true, fmt.Errorf("offset must be positive")
	}
	return ref.Add(time.Duration(n) * unit), true, nil
}

// dayRule handles "today"/"tomorrow". Today needs an explicit time; tomorrow
// defaults to DefaultHour.
type dayRule struct{}

func (dayRule) name() string { return "day" }

func (dayRule) apply(s string, ref time.Time) (time.Time, bool, error) {
	today := reToday.MatchString(s)
	tomorrow := !today && reTomorrow.MatchString(s)
	if !today && !tomorrow {
		return time.Time{}, false, nil
	}
	hh, mm, ok, err := clockIn(s)
	if err != nil {
		return time.Time{}, true, err
	}
	if today {
		if !ok {
			return time.Time{}, true, fmt.Errorf("a time is required")
		}
		return rollDaily(wallClock(ref, 0, hh, mm), ref), true, nil
	}
	if !ok {
		hh, mm = DefaultHour, 0
	}
	return wallClock(ref, 1, hh, mm), true, nil
}

// atRule handles a bare "в 19" / "at 9:30".
type atRule struct{}

func (atRule) name() string { return "at hour" }

func (atRule) apply(s string, ref time.Time) (time.Time, bool, error) {
	m := reBareAt.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false, nil
	}
	hh, _ := strconv.Atoi(m[1])
	mm := 0
	if m[2] != "" {
		mm, _ = strconv.Atoi(m[2])
	}
	return rollDaily(wallClock(ref, 0, hh, mm), ref), true, nil
}

type colonRule struct{}

func (colonRule) name() string { return "clock" }

func (colonRule) apply(s string, ref time.Time) (time.Time, bool, error) {
	m := reBareHHMM.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false, nil
	}
	hh, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	return rollDaily(wallClock(ref, 0, hh, mm), ref), true, nil
}

// digitsRule handles exactly four digits, "2143".
type digitsRule struct{}

func (digitsRule) name() string { return "four digits" }

func (digitsRule) apply(s string, ref time.Time) (time.Time, bool, error) {
	m := reDigits.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false, nil
	}
	hh, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	if hh > 23 || mm > 59 {
		return time.Time{}, true, fmt.Errorf("%02d:%02d is not a valid time", hh, mm)
	}
	return rollDaily(wallClock(ref, 0, hh, mm), ref), true, nil
}

// dateRule handles DD.MM[.YYYY] with an optional time. Without a year a past
// instant rolls to next year; with an explicit year it is rejected.
type dateRule struct{}

func (dateRule) name() string { return "date" }

func (dateRule) apply(s string, ref time.Time) (time.Time, bool, error) {
	idx := reDate.FindStringSubmatchIndex(s)
	if idx == nil {
		return time.Time{}, false, nil
	}
	if reRelPrefix.MatchString(s[:idx[2]]) {
		return time.Time{}, true, fmt.Errorf("offsets take a whole number of minutes or hours")
	}
	m := reDate.FindStringSubmatch(s)
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year := ref.Year()
	explicitYear := m[3] != ""
	if explicitYear {
		year, _ = strconv.Atoi(m[3])
	}
	rest := strings.Replace(s, strings.TrimSpace(strings.Trim(m[0], " ,!")), " ", 1)
	hh, mm, ok, err := clockIn(rest)
	if err != nil {
		return time.Time{}, true, err
	}
	if !ok {
		hh, mm = DefaultHour, 0
	}
	t, err := date(year, month, day, hh, mm, ref.Location())
	if err != nil {
		return time.Time{}, true, err
	}
	if t.After(ref) {
		return t, true, nil
	}
	if explicitYear {
		return time.Time{}, true, fmt.Errorf("%s is in the past", t.Format("02.01.2006 15:04"))
	}
	t, err = date(year+1, month, day, hh, mm, ref.Location())
	if err != nil {
		return time.Time{}, true, err
	}
	return t, true, nil
}

// clockIn finds "HH:MM" or "в|at HH[:MM]" anywhere in s. A token of that shape
// with an hour or minute out of range is an error.
func clockIn(s string) (hh, mm int, ok bool, err error) {
	if m := reClock.FindStringSubmatch(s); m != nil {
		hh, _ = strconv.Atoi(m[1])
		mm, _ = strconv.Atoi(m[2])
		return hh, mm, true, nil
	}
	if m := reAtHour.FindStringSubmatch(s); m != nil {
		hh, _ = strconv.Atoi(m[1])
		if m[2] != "" {
			mm, _ = strconv.Atoi(m[2])
		}
		return hh, mm, true, nil
	}
	for _, re := range []*regexp.Regexp{reAnyClock, reAnyAtHour} {
		if m := re.FindStringSubmatch(s); m != nil {
			return 0, 0, false, fmt.Errorf("%s is not a valid time", strings.TrimSpace(m[0]))
		}
	}
	return 0, 0, false, nil
}

func wallClock(ref time.Time, addDays, hh, mm int) time.Time {
	y, mo, d := ref.Date()
	return time.Date(y, mo, d+addDays, hh, mm, 0, 0, ref.Location())
}

func rollDaily(t, ref time.Time) time.Time {
	if t.After(ref) {
		return t
	}
	return t.AddDate(0, 0, 1)
}

// date builds a local instant and rejects values time.Date would normalise, such
// as 31.02.
func date(year, month, day, hh, mm int, loc *time.Location) (time.Time, error) {
	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, fmt.Errorf("%02d.%02d is not a valid date", day, month)
	}
	t := time.Date(year, time.Month(month), day, hh, mm, 0, 0, loc)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, fmt.Errorf("%02d.%02d.%d is not a valid date", day, month, year)
	}
	return t, nil
}
