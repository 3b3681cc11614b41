package datekey

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jinzhu/now"
	"github.com/rs/zerolog"

	"github.com/Fabian-Z77/StudySpace/internal/clock"
)

// Normalizer converts date-like values into keys of one timezone.
type Normalizer struct {
	loc   *time.Location
	label string
	now   clock.Clock
	log   zerolog.Logger
}

// NewNormalizer resolves timezone (see ResolveLocation) and binds it to c.
func NewNormalizer(timezone string, c clock.Clock, log zerolog.Logger) *Normalizer {
	c = clock.OrSystem(c)
	loc, label := ResolveLocation(timezone, c())
	log.Debug().Str("timezone", label).Msg("date normalizer ready")
	return &Normalizer{loc: loc, label: label, now: c, log: log}
}

// NewNormalizerIn is NewNormalizer for an already loaded location.
func NewNormalizerIn(loc *time.Location, c clock.Clock) *Normalizer {
	if loc == nil {
		loc = time.Local
	}
	return &Normalizer{loc: loc, label: loc.String(), now: clock.OrSystem(c), log: zerolog.Nop()}
}

func (n *Normalizer) Location() *time.Location { return n.loc }

// Label is the resolved zone name or its UTC offset.
func (n *Normalizer) Label() string { return n.label }

// Now is the normalizer's clock reading in its location.
func (n *Normalizer) Now() time.Time { return n.now().In(n.loc) }

// Today is the current local calendar day.
func (n *Normalizer) Today() Key {
	return FromTime(n.Now())
}

// Key renders any supported date-like input as a local calendar key. Strings already in
// key shape are returned unchanged. Empty input and anything that cannot be interpreted
// yield today.
//
// Supported inputs: Key, string, time.Time, *time.Time, epoch milliseconds as int, int64
// or float64, Timestamp, *Timestamp and decoded documents carrying "seconds" or "_seconds".
func (n *Normalizer) Key(input any) Key {
	switch v := input.(type) {
	case Key:
		if Matches(string(v)) {
			return v
		}
	case string:
		if Matches(v) {
			return Key(v)
		}
	}
	t, ok := n.Instant(input)
	if !ok {
		if input != nil {
			n.log.Debug().Str("input", fmt.Sprintf("%v", input)).Msg("unparseable date, using today")
		}
		return n.Today()
	}
	return FromTime(t.In(n.loc))
}

// Instant interprets input as a point in time. Key-shaped strings are local midnight.
func (n *Normalizer) Instant(input any) (time.Time, bool) {
	switch v := input.(type) {
	case nil:
		return time.Time{}, false
	case Key:
		return n.parseString(string(v))
	case string:
		return n.parseString(v)
	case time.Time:
		if v.IsZero() {
			return time.Time{}, false
		}
		return v, true
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}
		return n.Instant(*v)
	case int:
		return fromMillis(float64(v))
	case int64:
		return fromMillis(float64(v))
	case float64:
		return fromMillis(v)
	case Timestamp:
		return fromSeconds(v.Seconds)
	case *Timestamp:
		if v == nil {
			return time.Time{}, false
		}
		return fromSeconds(v.Seconds)
	case map[string]any:
		for _, field := range []string{"seconds", "_seconds"} {
			if raw, ok := v[field]; ok {
				if secs, ok := toInt64(raw); ok && secs != 0 {
					return fromSeconds(secs)
				}
			}
		}
	}
	return time.Time{}, false
}

func (n *Normalizer) parseString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if Matches(s) {
		return Key(s).Time(n.loc)
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	t, err := now.With(n.Now()).Parse(s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func fromMillis(ms float64) (time.Time, bool) {
	if ms == 0 || math.IsNaN(ms) || math.IsInf(ms, 0) {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(ms)), true
}

func fromSeconds(secs int64) (time.Time, bool) {
	if secs == 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(secs * 1000), true
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int64:
		return x, true
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return int64(x), true
	case json.Number:
		i, err := x.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}
