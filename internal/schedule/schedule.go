// Package schedule expands repetition plans into review date-times and classifies how far
// away a review is.
package schedule

import (
	"time"

	"github.com/Fabian-Z77/StudySpace/internal/datekey"
	"github.com/Fabian-Z77/StudySpace/internal/plan"
)

const minutesPerDay = 1440

// Entry is one concrete review.
type Entry struct {
	Sequence int
	Target   time.Time
	Offset   float64
}

// Key is the entry's calendar day in the target's location.
func (e Entry) Key() datekey.Key {
	return datekey.FromTime(e.Target)
}

// Generate expands every plan offset from the same anchor, in catalog order. The plan
// "none" yields an empty schedule.
func Generate(anchor time.Time, p plan.Plan) []Entry {
	entries := make([]Entry, 0, len(p.Intervals))
	for i, offset := range p.Intervals {
		entries = append(entries, Entry{
			Sequence: i + 1,
			Target:   At(anchor, offset),
			Offset:   offset,
		})
	}
	return entries
}

// At applies a single offset to anchor. Offsets below one day are rounded to whole
// minutes; larger offsets advance the calendar day in the anchor's location, keeping the
// wall-clock time across DST changes. A fractional part of a multi-day offset is dropped.
func At(anchor time.Time, offset float64) time.Time {
	if offset < 1 {
		minutes := datekey.RoundHalfUp(offset * minutesPerDay)
		return anchor.Add(time.Duration(minutes) * time.Minute)
	}
	return anchor.AddDate(0, 0, int(offset))
}
