// Package datekey turns the many shapes a date arrives in (picker values, stored strings,
// epoch millis, document-store timestamps) into canonical local calendar keys and computes
// the day and minute distances shown next to every task.
package datekey

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

// Layout is the canonical key layout.
const Layout = "2006-01-02"

var keyPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Key is a calendar day in the user's timezone, formatted YYYY-MM-DD.
type Key string

// FromTime renders the calendar fields of t in its own location.
func FromTime(t time.Time) Key {
	return Key(t.Format(Layout))
}

// Matches reports whether s already has the key shape. It does not check the calendar.
func Matches(s string) bool {
	return keyPattern.MatchString(s)
}

// Date splits the key into calendar fields.
func (k Key) Date() (year int, month time.Month, day int, ok bool) {
	s := string(k)
	if !Matches(s) {
		return 0, 0, 0, false
	}
	y, err := strconv.Atoi(s[0:4])
	if err != nil {
		return 0, 0, 0, false
	}
	m, err := strconv.Atoi(s[5:7])
	if err != nil {
		return 0, 0, 0, false
	}
	d, err := strconv.Atoi(s[8:10])
	if err != nil {
		return 0, 0, 0, false
	}
	return y, time.Month(m), d, true
}

// Valid reports whether the key names a real calendar day.
func (k Key) Valid() bool {
	y, m, d, ok := k.Date()
	if !ok {
		return false
	}
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return t.Year() == y && t.Month() == m && t.Day() == d
}

// Time returns local midnight of the key's day in loc.
func (k Key) Time(loc *time.Location) (time.Time, bool) {
	y, m, d, ok := k.Date()
	if !ok {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	return time.Date(y, m, d, 0, 0, 0, 0, loc), true
}

// AddDays moves the key by n calendar days.
func (k Key) AddDays(n int) Key {
	t, ok := k.Time(time.UTC)
	if !ok {
		return k
	}
	return FromTime(t.AddDate(0, 0, n))
}

func (k Key) String() string { return string(k) }

// Timestamp is the document-store wire shape of an instant.
type Timestamp struct {
	Seconds int64 `json:"seconds"`
}

// ResolveLocation loads the named IANA zone. When name is empty or cannot be loaded it
// falls back to the host's local zone, labelled with its current UTC offset. The label is
// informational only; conversions always go through the returned location.
func ResolveLocation(name string, at time.Time) (*time.Location, string) {
	if name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc, loc.String()
		}
	} else if local := time.Local.String(); local != "" && local != "Local" {
		return time.Local, local
	}
	return time.Local, OffsetLabel(at.In(time.Local))
}

// OffsetLabel formats the zone offset of t as UTC±HH:MM.
func OffsetLabel(t time.Time) string {
	_, offset := t.Zone()
	sign := '+'
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	return fmt.Sprintf("UTC%c%02d:%02d", sign, offset/3600, (offset%3600)/60)
}

// RoundHalfUp rounds .5 towards positive infinity, the way the stored counters were
// always rounded.
func RoundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}
