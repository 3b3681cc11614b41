// Package plan holds the fixed catalog of spaced-repetition plans.
package plan

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrNotFound is returned for a key outside the catalog.
var ErrNotFound = errors.New("repetition plan not found")

// Plan keys.
const (
	Standard  = "standard"
	SM2       = "sm2"
	Wozniak   = "wozniak"
	Leitner5  = "leitner5"
	Leitner3  = "leitner3"
	Custom137 = "custom137"
	None      = "none"
	Debug     = "debug"
)

// WozniakShortOffset is the first Wozniak review, ten minutes expressed in days.
const WozniakShortOffset = 0.007

// Plan is a named list of review offsets in days, all measured from the same anchor.
// Offsets below one day are sub-day reviews.
type Plan struct {
	Key         string
	Name        string
	Description string
	Intervals   []float64
}

var catalog = []Plan{
	{
		Key:         Standard,
		Name:        "Estándar (7 repasos)",
		Description: "Plan recomendado para la mayoría de los casos",
		Intervals:   []float64{1, 6, 14, 30, 66, 150, 360},
	},
	{
		Key:         SM2,
		Name:        "Anki/SuperMemo (SM-2)",
		Description: "Basado en el algoritmo SM-2 con factor de facilidad",
		Intervals:   []float64{1, 6},
	},
	{
		Key:         Wozniak,
		Name:        "Wozniak (1985)",
		Description: "Plan original de SuperMemo para vocabulario",
		Intervals:   []float64{WozniakShortOffset, 1, 7, 30, 180},
	},
	{
		Key:         Leitner5,
		Name:        "Leitner (5 cajas)",
		Description: "Sistema de 5 niveles con intervalos crecientes",
		Intervals:   []float64{1, 2, 4, 8, 16},
	},
	{
		Key:         Leitner3,
		Name:        "Leitner Simplificado (3 cajas)",
		Description: "Sistema simplificado de 3 niveles",
		Intervals:   []float64{1, 3, 7},
	},
	{
		Key:         Custom137,
		Name:        "Esquema 1-3-7-14...",
		Description: "Plan popular con intervalos iniciales cortos",
		Intervals:   []float64{1, 3, 7, 14, 30, 60, 120},
	},
	{
		Key:         None,
		Name:        "Sin repetición",
		Description: "Solo una fecha sin repeticiones programadas",
		Intervals:   []float64{},
	},
	{
		Key:         Debug,
		Name:        "DEBUG",
		Description: "Plan de depuración: repaso en 1 y 2 minutos",
		Intervals:   []float64{1.0 / 1440, 2.0 / 1440},
	},
}

// Lookup returns a copy of the plan stored under key. Keys are matched case-insensitively.
func Lookup(key string) (Plan, error) {
	normalized := strings.ToLower(strings.TrimSpace(key))
	for _, p := range catalog {
		if p.Key == normalized {
			return p.clone(), nil
		}
	}
	return Plan{}, fmt.Errorf("%w: %q", ErrNotFound, key)
}

// All returns every plan in catalog order.
func All() []Plan {
	plans := make([]Plan, 0, len(catalog))
	for _, p := range catalog {
		plans = append(plans, p.clone())
	}
	return plans
}

// Keys returns the catalog keys in order.
func Keys() []string {
	keys := make([]string, 0, len(catalog))
	for _, p := range catalog {
		keys = append(keys, p.Key)
	}
	return keys
}

// Repeats reports whether the plan schedules any review.
func (p Plan) Repeats() bool { return len(p.Intervals) > 0 }

// Summary renders the offsets the way the plan picker shows them: "10 min, 1 días, 7 días".
func (p Plan) Summary() string {
	if !p.Repeats() {
		return "sin repasos"
	}
	parts := make([]string, 0, len(p.Intervals))
	for _, offset := range p.Intervals {
		if offset < 1 {
			parts = append(parts, fmt.Sprintf("%d min", int(math.Floor(offset*1440+0.5))))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s días", formatDays(offset)))
	}
	return strings.Join(parts, ", ")
}

func (p Plan) clone() Plan {
	c := p
	c.Intervals = append(make([]float64, 0, len(p.Intervals)), p.Intervals...)
	return c
}

func formatDays(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%d", int(v))
	}
	return fmt.Sprintf("%g", v)
}
