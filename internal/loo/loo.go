// Package loo scores fitted models by approximate leave-one-out expected
// log predictive density (elpd_loo) and ranks them. Rankings are
// informational; nothing is rejected.
package loo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/phongp/internal/gp"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrIncomparable indicates models scored on different observations.
	ErrIncomparable = errors.New("loo: models were fitted on different observations")
	ErrNoModels     = errors.New("loo: nothing to compare")
)

// Score is the LOO estimate of one model.
type Score struct {
	Model   string  `json:"model"`
	ElpdLOO float64 `json:"elpd_loo"`
	SE      float64 `json:"se_elpd_loo"`
	PLOO    float64 `json:"p_loo"`
	LOOIC   float64 `json:"looic"`
	LPPD    float64 `json:"lppd"`
	// Pointwise holds elpd_loo per observation.
	Pointwise []float64 `json:"-"`
}

// FromLogLik reduces per-draw log densities to a score: each observation's
// contribution is the log mean over draws.
func FromLogLik(model string, ll *gp.PointwiseLogLik) (*Score, error) {
	if ll == nil || len(ll.LOO) == 0 {
		return nil, fmt.Errorf("%w: no draws for %s", gp.ErrInsufficientDraws, model)
	}
	n := len(ll.LOO[0])
	s := &Score{Model: model, Pointwise: make([]float64, n)}
	col := make([]float64, len(ll.LOO))
	logS := math.Log(float64(len(ll.LOO)))
	for i := 0; i < n; i++ {
		for d := range ll.LOO {
			col[d] = ll.LOO[d][i]
		}
		s.Pointwise[i] = floats.LogSumExp(col) - logS
		for d := range ll.InSample {
			col[d] = ll.InSample[d][i]
		}
		s.LPPD += floats.LogSumExp(col) - logS
	}
	s.ElpdLOO = floats.Sum(s.Pointwise)
	s.SE = math.Sqrt(float64(n) * stat.Variance(s.Pointwise, nil))
	s.PLOO = s.LPPD - s.ElpdLOO
	s.LOOIC = -2 * s.ElpdLOO
	return s, nil
}

// Compute scores a fitted model using ndraws posterior draws (0 for all).
func Compute(ctx context.Context, m *gp.Model, ndraws int) (*Score, error) {
	ll, err := m.PointwiseLOO(ctx, ndraws)
	if err != nil {
		return nil, fmt.Errorf("loo %s: %w", m.Name(), err)
	}
	return FromLogLik(m.Name(), ll)
}

// Comparison is one row of a model ranking. Differences are relative to
// the best model, so the first row always has ElpdDiff = 0.
type Comparison struct {
	Score
	Rank     int     `json:"rank"`
	ElpdDiff float64 `json:"elpd_diff"`
	SEDiff   float64 `json:"se_diff"`
}

// Compare ranks scores from highest to lowest elpd_loo.
func Compare(scores ...*Score) ([]Comparison, error) {
	if len(scores) == 0 {
		return nil, ErrNoModels
	}
	n := len(scores[0].Pointwise)
	for _, s := range scores[1:] {
		if len(s.Pointwise) != n {
			return nil, fmt.Errorf("%w: %s has %d, %s has %d", ErrIncomparable,
				scores[0].Model, n, s.Model, len(s.Pointwise))
		}
	}
	sorted := append([]*Score(nil), scores...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ElpdLOO > sorted[j].ElpdLOO })

	best := sorted[0]
	out := make([]Comparison, len(sorted))
	diff := make([]float64, n)
	for k, s := range sorted {
		c := Comparison{Score: *s, Rank: k + 1}
		if k > 0 {
			floats.SubTo(diff, s.Pointwise, best.Pointwise)
			c.ElpdDiff = s.ElpdLOO - best.ElpdLOO
			c.SEDiff = math.Sqrt(float64(n) * stat.Variance(diff, nil))
		}
		out[k] = c
	}
	return out, nil
}
