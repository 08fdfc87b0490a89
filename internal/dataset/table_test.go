package dataset

import (
	"bytes"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `speaker,sex,time,f0,word
1,f,1,210.5,ba
1,f,2,215,ba
2,m,1,110,da
2,m,2,NA,da
`

func TestReadCSV_InfersKinds(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader(sample), ReadOptions{Categorical: []string{"speaker"}})
	require.NoError(t, err)

	assert.Equal(t, 4, tbl.Rows())
	assert.Equal(t, []string{"speaker", "sex", "time", "f0", "word"}, tbl.Names())

	speaker, err := tbl.Categorical("speaker")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "1", "2", "2"}, speaker)

	f0, err := tbl.Numeric("f0")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(f0[3]))

	_, err = tbl.Numeric("sex")
	assert.ErrorIs(t, err, ErrKindMismatch)

	_, err = tbl.Column("missing")
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestReadCSV_Empty(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""), ReadOptions{})
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestCSVRoundTrip(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader(sample), ReadOptions{})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, tbl.SaveCSV(path))

	back, err := LoadCSV(path, ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, tbl.Names(), back.Names())
	assert.Equal(t, tbl.Rows(), back.Rows())

	var a, b bytes.Buffer
	require.NoError(t, tbl.WriteCSV(&a))
	require.NoError(t, back.WriteCSV(&b))
	if diff := cmp.Diff(a.String(), b.String()); diff != "" {
		t.Errorf("csv mismatch (-want +got):\n%s", diff)
	}
}

func TestFilterAndDropNA(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader(sample), ReadOptions{})
	require.NoError(t, err)

	males, err := tbl.FilterLevels("sex", []string{"m"})
	require.NoError(t, err)
	assert.Equal(t, 2, males.Rows())

	clean, err := tbl.DropNA("f0")
	require.NoError(t, err)
	assert.Equal(t, 3, clean.Rows())
}

func TestMissingCategorical(t *testing.T) {
	const withGaps = `time,sex,f0
1,f,210
2,m,120
3,,210
4,NA,131
5,f,205
`
	tbl, err := ReadCSV(strings.NewReader(withGaps), ReadOptions{})
	require.NoError(t, err)

	sex, err := tbl.Categorical("sex")
	require.NoError(t, err)
	assert.Equal(t, []string{"f", "m", Missing, Missing, "f"}, sex)

	levels, err := tbl.Levels("sex")
	require.NoError(t, err)
	assert.Equal(t, []string{"f", "m"}, levels)

	clean, err := tbl.DropNA("f0", "sex")
	require.NoError(t, err)
	assert.Equal(t, 3, clean.Rows())
	times, err := clean.Numeric("time")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 5}, times)

	require.NoError(t, tbl.WithCluster("sextime", "_", "sex", "time"))
	keys, err := tbl.Categorical("sextime")
	require.NoError(t, err)
	assert.Equal(t, []string{"f_1", "m_2", Missing, Missing, "f_5"}, keys)
}

func TestWithCluster(t *testing.T) {
	tbl := New()
	require.NoError(t, tbl.AddCategorical("sex", []string{"f", "m", "f"}))
	require.NoError(t, tbl.AddCategorical("loc", []string{"north", "north", "south"}))
	require.NoError(t, tbl.WithCluster("sexloc", "_", "sex", "loc"))

	keys, err := tbl.Categorical("sexloc")
	require.NoError(t, err)
	assert.Equal(t, []string{"f_north", "m_north", "f_south"}, keys)

	levels, err := tbl.Levels("sexloc")
	require.NoError(t, err)
	assert.Equal(t, []string{"f_north", "f_south", "m_north"}, levels)
}

func TestAddLengthMismatch(t *testing.T) {
	tbl := New()
	require.NoError(t, tbl.AddNumeric("a", []float64{1, 2}))
	err := tbl.AddNumeric("b", []float64{1})
	assert.ErrorIs(t, err, ErrLength)
}

func TestExpandGrid(t *testing.T) {
	g, err := ExpandGrid(
		Axis{Name: "context", Levels: []string{"falling", "rising"}},
		Axis{Name: "time", Values: Seq(1, 3, 3)},
	)
	require.NoError(t, err)
	assert.Equal(t, 6, g.Rows())

	ctx, _ := g.Categorical("context")
	tm, _ := g.Numeric("time")
	assert.Equal(t, []string{"falling", "falling", "falling", "rising", "rising", "rising"}, ctx)
	assert.Equal(t, []float64{1, 2, 3, 1, 2, 3}, tm)
}

func TestSeq(t *testing.T) {
	assert.Equal(t, []float64{0, 0.25, 0.5, 0.75, 1}, Seq(0, 1, 5))
	assert.Equal(t, []float64{4}, Seq(4, 9, 1))
}
