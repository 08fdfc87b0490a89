// Package posterior summarises posterior predictive draws: per-row mean
// and highest-density interval, back-transformation to the measurement
// scale and re-joining with the prediction covariates.
package posterior

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/phongp/internal/dataset"
	"github.com/san-kum/phongp/internal/scale"
	"gonum.org/v1/gonum/stat"
)

// DefaultProb is the probability mass of the credible interval.
const DefaultProb = 0.95

var (
	ErrNoDraws  = errors.New("posterior: no draws")
	ErrBadProb  = errors.New("posterior: interval probability must be in (0, 1)")
	ErrRowCount = errors.New("posterior: row count does not match prediction data")
)

// Row summarises the predictive distribution of one prediction row.
type Row struct {
	Mean float64 `json:"mean"`
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Summarize computes the mean and highest-density interval of every column
// of draws, where draws[s][i] is draw s for row i.
func Summarize(draws [][]float64, prob float64) ([]Row, error) {
	if len(draws) == 0 {
		return nil, ErrNoDraws
	}
	if !(prob > 0 && prob < 1) {
		return nil, fmt.Errorf("%w: %v", ErrBadProb, prob)
	}
	rows := make([]Row, len(draws[0]))
	col := make([]float64, len(draws))
	for i := range rows {
		for s := range draws {
			col[s] = draws[s][i]
		}
		rows[i].Mean = stat.Mean(col, nil)
		rows[i].Low, rows[i].High = HDI(col, prob)
	}
	return rows, nil
}

// HDI returns the narrowest interval containing a prob share of samples.
// samples is not modified.
func HDI(samples []float64, prob float64) (lo, hi float64) {
	n := len(samples)
	if n == 0 {
		return math.NaN(), math.NaN()
	}
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	k := int(math.Ceil(prob * float64(n)))
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}
	// Equal-width windows resolve to the one nearest the middle of the
	// sample.
	mid := float64(n-k) / 2
	best := 0
	width := sorted[k-1] - sorted[0]
	for i := 1; i+k-1 < n; i++ {
		w := sorted[i+k-1] - sorted[i]
		tol := 1e-12 * math.Max(width, w)
		switch {
		case w < width-tol:
			width, best = w, i
		case w <= width+tol && math.Abs(float64(i)-mid) < math.Abs(float64(best)-mid):
			width, best = w, i
		}
	}
	return sorted[best], sorted[best+k-1]
}

// BackTransform maps rows from the standardized scale to the measurement
// scale with p.
func BackTransform(rows []Row, p scale.Params) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = Row{
			Mean: p.Destandardize(r.Mean),
			Low:  p.Destandardize(r.Low),
			High: p.Destandardize(r.High),
		}
	}
	return out
}

// Join copies cols from newdata and appends mean, low and high columns.
func Join(rows []Row, newdata *dataset.Table, cols []string) (*dataset.Table, error) {
	if len(rows) != newdata.Rows() {
		return nil, fmt.Errorf("%w: %d summaries for %d rows", ErrRowCount, len(rows), newdata.Rows())
	}
	out := dataset.New()
	for _, name := range cols {
		c, err := newdata.Column(name)
		if err != nil {
			return nil, err
		}
		if c.Kind == dataset.Numeric {
			err = out.AddNumeric(name, append([]float64(nil), c.Num...))
		} else {
			err = out.AddCategorical(name, append([]string(nil), c.Str...))
		}
		if err != nil {
			return nil, err
		}
	}
	mean := make([]float64, len(rows))
	low := make([]float64, len(rows))
	high := make([]float64, len(rows))
	for i, r := range rows {
		mean[i], low[i], high[i] = r.Mean, r.Low, r.High
	}
	for _, c := range []struct {
		name string
		vals []float64
	}{{"mean", mean}, {"low", low}, {"high", high}} {
		if err := out.AddNumeric(c.name, c.vals); err != nil {
			return nil, err
		}
	}
	return out, nil
}
