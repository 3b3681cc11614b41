package schedule

import (
	"fmt"
	"strconv"
	"time"

	"github.com/Fabian-Z77/StudySpace/internal/datekey"
	"github.com/Fabian-Z77/StudySpace/internal/plan"
)

// Unit is the display unit of a countdown.
type Unit string

const (
	Minutes Unit = "minutos"
	Hours   Unit = "horas"
	Days    Unit = "días"
)

// Distance is the gap until a review expressed in its display unit. Minutes always holds
// the rounded raw gap so callers can store sub-day countdowns exactly.
type Distance struct {
	Value   float64
	Unit    Unit
	Minutes int
}

// Int returns Value truncated to an integer.
func (d Distance) Int() int { return int(d.Value) }

func (d Distance) String() string {
	return fmt.Sprintf("%s %s", strconv.FormatFloat(d.Value, 'f', -1, 64), d.Unit)
}

// Classify picks minutes below an hour, hours below a day, days otherwise. Days keep one
// decimal; this is the preview shown while choosing a plan.
func Classify(now, target time.Time) Distance {
	diff := diffMinutes(now, target)
	switch {
	case diff < 60:
		return Distance{Value: float64(diff), Unit: Minutes, Minutes: diff}
	case diff < minutesPerDay:
		return Distance{Value: datekey.RoundHalfUp(float64(diff) / 60), Unit: Hours, Minutes: diff}
	default:
		days := datekey.RoundHalfUp(float64(diff)/minutesPerDay*10) / 10
		return Distance{Value: days, Unit: Days, Minutes: diff}
	}
}

// Persisted chooses the unit like Classify but counts days with the inclusive calendar
// convention of DaysBetween. This is the value stored on task records and used for
// sorting; it intentionally differs from the preview.
func Persisted(n *datekey.Normalizer, from, to time.Time) Distance {
	d := Classify(from, to)
	if d.Unit == Days {
		d.Value = float64(n.DaysBetween(from, to))
	}
	return d
}

// Gap is the stored distance from entry i to the next review. The Wozniak ten-minute
// review is pinned to 10 minutes and the last entry has no next review.
func Gap(n *datekey.Normalizer, entries []Entry, i int) Distance {
	e := entries[i]
	if e.Offset == plan.WozniakShortOffset {
		return Distance{Value: 10, Unit: Minutes, Minutes: 10}
	}
	if i+1 >= len(entries) {
		return Distance{Unit: Days}
	}
	return Persisted(n, e.Target, entries[i+1].Target)
}

// PreviewItem pairs an entry with its preview distance.
type PreviewItem struct {
	Entry    Entry
	Distance Distance
}

// Preview classifies every entry relative to from, usually the anchor.
func Preview(from time.Time, entries []Entry) []PreviewItem {
	items := make([]PreviewItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, PreviewItem{Entry: e, Distance: Classify(from, e.Target)})
	}
	return items
}

func diffMinutes(from, to time.Time) int {
	return int(datekey.RoundHalfUp(to.Sub(from).Minutes()))
}
