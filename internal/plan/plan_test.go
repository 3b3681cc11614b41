package plan

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupCatalog(t *testing.T) {
	cases := map[string][]float64{
		Standard:  {1, 6, 14, 30, 66, 150, 360},
		SM2:       {1, 6},
		Wozniak:   {0.007, 1, 7, 30, 180},
		Leitner5:  {1, 2, 4, 8, 16},
		Leitner3:  {1, 3, 7},
		Custom137: {1, 3, 7, 14, 30, 60, 120},
		None:      {},
		Debug:     {1.0 / 1440, 2.0 / 1440},
	}
	for key, want := range cases {
		p, err := Lookup(key)
		require.NoError(t, err, key)
		assert.Equal(t, key, p.Key)
		assert.Equal(t, want, p.Intervals, key)
		assert.NotEmpty(t, p.Name)
	}
	assert.Equal(t, []string{Standard, SM2, Wozniak, Leitner5, Leitner3, Custom137, None, Debug}, Keys())
}

func TestLookupIsCaseInsensitive(t *testing.T) {
	p, err := Lookup("  DEBUG ")
	require.NoError(t, err)
	assert.Equal(t, Debug, p.Key)
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("fibonacci")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLookupReturnsCopy(t *testing.T) {
	p, err := Lookup(Standard)
	require.NoError(t, err)
	p.Intervals[0] = 99

	again, err := Lookup(Standard)
	require.NoError(t, err)
	assert.Equal(t, 1.0, again.Intervals[0])

	all := All()
	all[0].Intervals[1] = 42
	assert.Equal(t, 6.0, All()[0].Intervals[1])
}

func TestIntervalsAreNonDecreasing(t *testing.T) {
	for _, p := range All() {
		for i := 1; i < len(p.Intervals); i++ {
			assert.GreaterOrEqual(t, p.Intervals[i], p.Intervals[i-1], p.Key)
		}
	}
}

func TestSummary(t *testing.T) {
	wozniak, _ := Lookup(Wozniak)
	assert.Equal(t, "10 min, 1 días, 7 días, 30 días, 180 días", wozniak.Summary())

	debug, _ := Lookup(Debug)
	assert.Equal(t, "1 min, 2 min", debug.Summary())

	none, _ := Lookup(None)
	assert.False(t, none.Repeats())
	assert.Equal(t, "sin repasos", none.Summary())
}
