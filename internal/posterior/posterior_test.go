package posterior

import (
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/san-kum/phongp/internal/dataset"
	"github.com/san-kum/phongp/internal/scale"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHDI_Narrowest(t *testing.T) {
	// skewed: most mass near 0, long right tail
	samples := []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 10}
	lo, hi := HDI(samples, 0.9)
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 0.8, hi)

	rng := rand.New(rand.NewPCG(1, 2))
	xs := make([]float64, 2000)
	for i := range xs {
		xs[i] = rng.ExpFloat64()
	}
	lo, hi = HDI(xs, 0.8)
	inside := 0
	for _, x := range xs {
		if x >= lo && x <= hi {
			inside++
		}
	}
	assert.GreaterOrEqual(t, inside, 1600)
	// for a decreasing density the HDI starts at the minimum
	assert.Less(t, lo, 0.05)

	// every other window of the same coverage is at least as wide
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	k := 1600
	for i := 0; i+k-1 < len(sorted); i += 37 {
		assert.GreaterOrEqual(t, sorted[i+k-1]-sorted[i], hi-lo-1e-12)
	}
}

func TestHDI_EqualWidthWindows(t *testing.T) {
	lo, hi := HDI([]float64{1, 2, 3, 4}, 0.5)
	assert.Equal(t, 2.0, lo)
	assert.Equal(t, 3.0, hi)

	lo, hi = HDI([]float64{50, 10, 40, 20, 30}, 0.4)
	assert.Equal(t, 20.0, lo)
	assert.Equal(t, 30.0, hi)

	// a strictly narrower window still wins over the central one
	lo, hi = HDI([]float64{0, 0.1, 5, 10, 15}, 0.4)
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 0.1, hi)
}

func TestSummarize(t *testing.T) {
	draws := [][]float64{{1, 10}, {2, 20}, {3, 30}, {4, 40}}
	rows, err := Summarize(draws, 0.5)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.InDelta(t, 2.5, rows[0].Mean, 1e-12)
	assert.InDelta(t, 25, rows[1].Mean, 1e-12)
	for _, r := range rows {
		assert.LessOrEqual(t, r.Low, r.Mean)
		assert.GreaterOrEqual(t, r.High, r.Mean)
	}

	_, err = Summarize(nil, 0.95)
	assert.ErrorIs(t, err, ErrNoDraws)
	_, err = Summarize(draws, 1)
	assert.ErrorIs(t, err, ErrBadProb)
}

func TestBackTransform(t *testing.T) {
	p := scale.Params{Mu: 200, Sigma: 40}
	got := BackTransform([]Row{{Mean: 0, Low: -1, High: 1.5}}, p)
	assert.Equal(t, []Row{{Mean: 200, Low: 160, High: 260}}, got)
}

func TestJoin(t *testing.T) {
	grid, err := dataset.ExpandGrid(
		dataset.Axis{Name: "time", Values: []float64{1, 2}},
		dataset.Axis{Name: "context", Levels: []string{"falling", "rising"}},
	)
	require.NoError(t, err)
	rows := []Row{{1, 0, 2}, {2, 1, 3}, {3, 2, 4}, {4, 3, 5}}

	out, err := Join(rows, grid, []string{"time", "context"})
	require.NoError(t, err)
	assert.Equal(t, []string{"time", "context", "mean", "low", "high"}, out.Names())
	ctx, err := out.Categorical("context")
	require.NoError(t, err)
	assert.Equal(t, []string{"falling", "rising", "falling", "rising"}, ctx)
	mean, err := out.Numeric("mean")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4}, mean)

	_, err = Join(rows[:3], grid, nil)
	assert.ErrorIs(t, err, ErrRowCount)
	_, err = Join(rows, grid, []string{"missing"})
	assert.ErrorIs(t, err, dataset.ErrUnknownColumn)
}
