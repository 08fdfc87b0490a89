// Package aggregate computes grouped summary statistics of a response.
package aggregate

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/san-kum/phongp/internal/dataset"
	"gonum.org/v1/gonum/stat/distuv"
)

const DefaultAlpha = 0.05

// Summary is one aggregated group.
type Summary struct {
	Keys       []string
	Mean       float64
	SD         float64
	N          int
	SE         float64
	Low        float64
	High       float64
	Degenerate bool
}

// Key joins the group key values.
func (s Summary) Key() string { return strings.Join(s.Keys, "/") }

type options struct {
	alpha  float64
	strict bool
}

type Option func(*options)

// Alpha sets the two-sided significance level of the confidence interval.
func Alpha(a float64) Option {
	return func(o *options) { o.alpha = a }
}

// Strict makes single-observation groups an error instead of NaN bounds.
func Strict() Option {
	return func(o *options) { o.strict = true }
}

type accumulator struct {
	keys   []string
	values []float64
	// weight sum; each observation contributes 1
	ss float64
}

// Summarize groups t by the named columns and summarises response within
// each group. Rows with a missing response or grouping value are excluded,
// so the counts sum to Complete(t, response, by). The result is sorted by
// key, with numeric key columns ordered numerically.
func Summarize(t *dataset.Table, response string, by []string, opts ...Option) ([]Summary, error) {
	o := options{alpha: DefaultAlpha}
	for _, opt := range opts {
		opt(&o)
	}
	if len(by) == 0 {
		return nil, ErrNoGroups
	}
	if o.alpha <= 0 || o.alpha >= 1 {
		return nil, fmt.Errorf("aggregate: alpha must be in (0, 1), got %v", o.alpha)
	}

	t, err := t.DropNA(append([]string{response}, by...)...)
	if err != nil {
		return nil, err
	}
	y, err := t.Numeric(response)
	if err != nil {
		return nil, err
	}
	cols := make([]*dataset.Column, len(by))
	for j, name := range by {
		c, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		cols[j] = c
	}

	groups := make(map[string]*accumulator)
	order := make([]string, 0)
	for i := 0; i < t.Rows(); i++ {
		keys := make([]string, len(cols))
		for j, c := range cols {
			keys[j] = c.Format(i)
		}
		id := strings.Join(keys, "\x00")
		acc, ok := groups[id]
		if !ok {
			acc = &accumulator{keys: keys}
			groups[id] = acc
			order = append(order, id)
		}
		acc.values = append(acc.values, y[i])
		acc.ss += 1
	}

	out := make([]Summary, 0, len(order))
	for _, id := range order {
		acc := groups[id]
		s := summarise(acc, o.alpha)
		if s.Degenerate && o.strict {
			return nil, fmt.Errorf("%w: %s", ErrDegenerateGroup, s.Key())
		}
		out = append(out, s)
	}

	sort.SliceStable(out, func(a, b int) bool {
		return lessKeys(cols, out[a].Keys, out[b].Keys)
	})
	return out, nil
}

// Complete counts the rows of t that Summarize would use.
func Complete(t *dataset.Table, response string, by []string) (int, error) {
	clean, err := t.DropNA(append([]string{response}, by...)...)
	if err != nil {
		return 0, err
	}
	return clean.Rows(), nil
}

func summarise(acc *accumulator, alpha float64) Summary {
	n := int(acc.ss)
	s := Summary{Keys: acc.keys, N: n}

	sum := 0.0
	for _, v := range acc.values {
		sum += v
	}
	s.Mean = sum / acc.ss

	if n < 2 {
		s.SD, s.SE, s.Low, s.High = math.NaN(), math.NaN(), math.NaN(), math.NaN()
		s.Degenerate = true
		return s
	}

	ss := 0.0
	for _, v := range acc.values {
		d := v - s.Mean
		ss += d * d
	}
	s.SD = math.Sqrt(ss / (acc.ss - 1))
	s.SE = s.SD / math.Sqrt(acc.ss)

	half := TQuantile(1-alpha/2, float64(n-1)) * s.SE
	s.Low = s.Mean - half
	s.High = s.Mean + half
	return s
}

// TQuantile returns the p quantile of a standard Student-t with df degrees of
// freedom.
func TQuantile(p, df float64) float64 {
	return distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.Quantile(p)
}

func lessKeys(cols []*dataset.Column, a, b []string) bool {
	for j, c := range cols {
		if a[j] == b[j] {
			continue
		}
		if c.Kind == dataset.Numeric {
			return parseOrNaN(a[j]) < parseOrNaN(b[j])
		}
		return a[j] < b[j]
	}
	return false
}
