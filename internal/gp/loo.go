package gp

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"
)

// PointwiseLogLik holds per-draw, per-observation log densities.
// Rows are draws, columns observations.
type PointwiseLogLik struct {
	// LOO[s][i] is log p(y_i | y_-i, θ_s), exact for the marginalised
	// Gaussian model.
	LOO [][]float64
	// InSample[s][i] is log p(y_i | y, θ_s) under the posterior predictive
	// of observation i.
	InSample [][]float64
}

// PointwiseLOO computes leave-one-out and in-sample log predictive densities
// for ndraws evenly spaced posterior draws (0 uses all).
func (m *Model) PointwiseLOO(ctx context.Context, ndraws int) (*PointwiseLogLik, error) {
	idx := thin(m.draws.Total(), ndraws)
	if len(idx) == 0 {
		return nil, ErrInsufficientDraws
	}
	n := m.design.n
	out := &PointwiseLogLik{
		LOO:      make([][]float64, len(idx)),
		InSample: make([][]float64, len(idx)),
	}
	err := m.forEachDraw(ctx, idx, func(s int, f *factor, _ []float64) error {
		inv := mat.NewSymDense(n, nil)
		if err := f.chol.InverseTo(inv); err != nil {
			return err
		}
		alpha := f.alpha.RawVector().Data
		loo := make([]float64, n)
		ins := make([]float64, n)
		tau2 := f.tau2
		for i := 0; i < n; i++ {
			cii := inv.At(i, i)
			v := 1 / cii
			e := alpha[i] / cii
			loo[i] = -0.5*(log2Pi+math.Log(v)) - e*e/(2*v)

			pv := 2*tau2 - tau2*tau2*cii
			pe := tau2 * alpha[i]
			ins[i] = -0.5*(log2Pi+math.Log(pv)) - pe*pe/(2*pv)
		}
		out.LOO[s] = loo
		out.InSample[s] = ins
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
