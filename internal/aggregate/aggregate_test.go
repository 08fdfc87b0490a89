package aggregate

import (
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/san-kum/phongp/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func randomTable(t *testing.T, rows int, seed uint64) *dataset.Table {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, seed+1))
	sex := make([]string, rows)
	loc := make([]string, rows)
	tm := make([]float64, rows)
	f0 := make([]float64, rows)
	for i := 0; i < rows; i++ {
		sex[i] = []string{"f", "m"}[rng.IntN(2)]
		loc[i] = []string{"north", "south", "east"}[rng.IntN(3)]
		tm[i] = float64(1 + rng.IntN(10))
		f0[i] = 150 + 40*rng.NormFloat64()
	}
	tbl := dataset.New()
	require.NoError(t, tbl.AddCategorical("sex", sex))
	require.NoError(t, tbl.AddCategorical("location", loc))
	require.NoError(t, tbl.AddNumeric("time", tm))
	require.NoError(t, tbl.AddNumeric("f0", f0))
	return tbl
}

func TestSummarize_CountsSumToRows(t *testing.T) {
	for _, rows := range []int{1, 17, 500} {
		tbl := randomTable(t, rows, uint64(rows))
		groups, err := Summarize(tbl, "f0", []string{"sex", "location", "time"})
		require.NoError(t, err)

		total := 0
		for _, g := range groups {
			total += g.N
		}
		assert.Equal(t, rows, total, "rows=%d", rows)
	}
}

func TestSummarize_ExcludesMissing(t *testing.T) {
	tbl := dataset.New()
	require.NoError(t, tbl.AddCategorical("sex", []string{"f", "f", "m", dataset.Missing, "m", "f"}))
	require.NoError(t, tbl.AddNumeric("f0", []float64{210, 220, 120, 131, math.NaN(), 200}))

	groups, err := Summarize(tbl, "f0", []string{"sex"})
	require.NoError(t, err)
	complete, err := Complete(tbl, "f0", []string{"sex"})
	require.NoError(t, err)
	assert.Equal(t, 4, complete)

	total := 0
	keys := make([]string, len(groups))
	for i, g := range groups {
		total += g.N
		keys[i] = g.Key()
	}
	assert.Equal(t, complete, total)
	assert.Equal(t, []string{"f", "m"}, keys)
	assert.True(t, groups[1].Degenerate)
}

func TestSummarize_WeightCountEqualsRowCount(t *testing.T) {
	tbl := randomTable(t, 300, 7)
	groups, err := Summarize(tbl, "f0", []string{"sex", "location"})
	require.NoError(t, err)

	sex, _ := tbl.Categorical("sex")
	loc, _ := tbl.Categorical("location")
	want := map[string]int{}
	for i := range sex {
		want[sex[i]+"/"+loc[i]]++
	}
	require.Len(t, groups, len(want))
	for _, g := range groups {
		assert.Equal(t, want[g.Key()], g.N, g.Key())
	}
}

func TestSummarize_IntervalContainsMean(t *testing.T) {
	tbl := randomTable(t, 400, 3)
	groups, err := Summarize(tbl, "f0", []string{"sex", "time"}, Alpha(0.01))
	require.NoError(t, err)
	for _, g := range groups {
		if g.Degenerate {
			continue
		}
		assert.LessOrEqual(t, g.Low, g.Mean)
		assert.LessOrEqual(t, g.Mean, g.High)
		assert.InDelta(t, g.Mean-g.Low, g.High-g.Mean, 1e-9, "interval must be symmetric")
	}
}

func TestSummarize_MatchesGonum(t *testing.T) {
	tbl := dataset.New()
	require.NoError(t, tbl.AddCategorical("g", []string{"a", "a", "a", "a"}))
	vals := []float64{1, 2, 4, 8}
	require.NoError(t, tbl.AddNumeric("y", vals))

	groups, err := Summarize(tbl, "y", []string{"g"})
	require.NoError(t, err)
	require.Len(t, groups, 1)

	mean, sd := stat.MeanStdDev(vals, nil)
	g := groups[0]
	assert.InDelta(t, mean, g.Mean, 1e-12)
	assert.InDelta(t, sd, g.SD, 1e-12)
	assert.InDelta(t, sd/2, g.SE, 1e-12)
	// t(0.975, 3) = 3.182446
	assert.InDelta(t, mean+3.182446*sd/2, g.High, 1e-5)
}

func TestSummarize_WidthDecreasesWithN(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 12))
	prev := math.Inf(1)
	for n := 2; n <= 40; n++ {
		vals := make([]float64, n)
		for i := range vals {
			vals[i] = rng.NormFloat64()
		}
		// rescale so every group has sample sd exactly 1
		m, sd := stat.MeanStdDev(vals, nil)
		groups := make([]string, n)
		for i := range vals {
			vals[i] = (vals[i] - m) / sd
			groups[i] = "g"
		}
		tbl := dataset.New()
		require.NoError(t, tbl.AddCategorical("g", groups))
		require.NoError(t, tbl.AddNumeric("y", vals))

		out, err := Summarize(tbl, "y", []string{"g"})
		require.NoError(t, err)
		width := out[0].High - out[0].Low
		assert.Less(t, width, prev, fmt.Sprintf("n=%d", n))
		prev = width
	}
}

func TestSummarize_DegenerateGroup(t *testing.T) {
	tbl := dataset.New()
	require.NoError(t, tbl.AddCategorical("g", []string{"a", "a", "b"}))
	require.NoError(t, tbl.AddNumeric("y", []float64{1, 3, 5}))

	groups, err := Summarize(tbl, "y", []string{"g"})
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.False(t, groups[0].Degenerate)
	assert.True(t, groups[1].Degenerate)
	assert.True(t, math.IsNaN(groups[1].SE))
	assert.True(t, math.IsNaN(groups[1].Low))
	assert.Equal(t, 5.0, groups[1].Mean)

	_, err = Summarize(tbl, "y", []string{"g"}, Strict())
	assert.ErrorIs(t, err, ErrDegenerateGroup)
}

func TestSummarize_NumericKeysSortNumerically(t *testing.T) {
	tbl := dataset.New()
	require.NoError(t, tbl.AddNumeric("time", []float64{10, 2, 1, 10, 2, 1}))
	require.NoError(t, tbl.AddNumeric("y", []float64{1, 2, 3, 4, 5, 6}))

	groups, err := Summarize(tbl, "y", []string{"time"})
	require.NoError(t, err)
	keys := []string{}
	for _, g := range groups {
		keys = append(keys, g.Keys[0])
	}
	assert.Equal(t, []string{"1", "2", "10"}, keys)

	out, err := ToTable(tbl, []string{"time"}, groups)
	require.NoError(t, err)
	tm, err := out.Numeric("time")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 10}, tm)
}

func TestSummarize_Errors(t *testing.T) {
	tbl := randomTable(t, 10, 1)
	_, err := Summarize(tbl, "f0", nil)
	assert.ErrorIs(t, err, ErrNoGroups)

	_, err = Summarize(tbl, "f0", []string{"nope"})
	assert.ErrorIs(t, err, dataset.ErrUnknownColumn)

	_, err = Summarize(tbl, "f0", []string{"sex"}, Alpha(1.5))
	assert.Error(t, err)
}
