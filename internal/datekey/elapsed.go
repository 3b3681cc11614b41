package datekey

import (
	"math"
	"time"
)

const day = 24 * time.Hour

// DaysBetween counts calendar days from one date to another, inclusive of the target
// day: the same day is 1, tomorrow is 2, yesterday is 0. Both inputs are normalized to
// local keys first and compared as UTC midnights, so DST never shifts the count.
func (n *Normalizer) DaysBetween(from, to any) int {
	return KeyDaysBetween(n.Key(from), n.Key(to))
}

// DaysUntil is DaysBetween(today, target).
func (n *Normalizer) DaysUntil(target any) int {
	return n.DaysBetween(n.Today(), target)
}

// KeyDaysBetween is DaysBetween for keys that are already normalized.
func KeyDaysBetween(from, to Key) int {
	a, okA := from.Time(time.UTC)
	b, okB := to.Time(time.UTC)
	if !okA || !okB {
		return 1
	}
	return int(math.Floor(float64(b.Sub(a))/float64(day))) + 1
}

// MinutesSince returns the wall-clock minutes elapsed from input until now, rounded.
// Key-shaped input counts from local midnight. Unparseable input is treated as now.
func (n *Normalizer) MinutesSince(input string) int {
	t, ok := n.parseString(input)
	if !ok {
		n.log.Debug().Str("input", input).Msg("unparseable instant, minutes since = 0")
		return 0
	}
	return int(RoundHalfUp(n.now().Sub(t).Minutes()))
}
