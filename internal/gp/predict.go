package gp

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"

	"github.com/san-kum/phongp/internal/dataset"
	"github.com/san-kum/phongp/internal/kernel"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// PredictOptions controls posterior prediction.
type PredictOptions struct {
	// NDraws subsamples the posterior evenly; 0 uses every draw.
	NDraws int
	// Epred returns draws of the expected response, without observation
	// noise.
	Epred bool
	Seed  uint64
}

// PosteriorPredict returns predictive draws for every row of newdata:
// out[s][i] is draw s for row i, on the scale the model was fitted on.
func (m *Model) PosteriorPredict(ctx context.Context, newdata *dataset.Table, opts PredictOptions) ([][]float64, error) {
	rows, err := m.design.encode(newdata)
	if err != nil {
		return nil, err
	}
	flat := m.draws.Flat()
	idx := thin(len(flat), opts.NDraws)
	if len(idx) == 0 {
		return nil, ErrInsufficientDraws
	}
	out := make([][]float64, len(idx))
	err = m.forEachDraw(ctx, idx, func(s int, f *factor, theta []float64) error {
		rng := rand.New(rand.NewPCG(opts.Seed, uint64(s)))
		mean, variance, err := m.latent(f, theta, rows)
		if err != nil {
			return err
		}
		y := make([]float64, rows.n)
		for i := range y {
			v := math.Max(variance[i], 0)
			if !opts.Epred {
				v += f.tau2
			}
			y[i] = mean[i] + math.Sqrt(v)*rng.NormFloat64()
		}
		out[s] = y
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// forEachDraw factorises the covariance for each selected draw in parallel.
// fn receives the position of the draw in idx.
func (m *Model) forEachDraw(ctx context.Context, idx []int, fn func(s int, f *factor, theta []float64) error) error {
	flat := m.draws.Flat()
	workers := runtime.NumCPU()
	if workers > len(idx) {
		workers = len(idx)
	}
	chunk := (len(idx) + workers - 1) / workers
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		start, end := w*chunk, (w+1)*chunk
		if end > len(idx) {
			end = len(idx)
		}
		if start >= end {
			break
		}
		g.Go(func() error {
			f := newFactor(m.design)
			for s := start; s < end; s++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				theta := flat[idx[s]]
				if !f.compute(m.design, theta, m.target.jitter) {
					return fmt.Errorf("draw %d: %w", idx[s], ErrNotPositiveDefinite)
				}
				if err := fn(s, f, theta); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// latent returns the conditional mean and variance of the noise-free
// response at rows given one draw.
func (m *Model) latent(f *factor, theta []float64, rows *predictRows) (mean, variance []float64, err error) {
	d := m.design
	n, np := d.n, rows.n
	p := len(d.coefNames)

	mean = make([]float64, np)
	base := make([]float64, np)
	for i := 0; i < np; i++ {
		for k := 0; k < p; k++ {
			mean[i] += rows.x.At(i, k) * theta[k]
		}
	}

	// cross[i][j] = cov(new i, train j), stored column-major in a Dense
	// of size n × np so each column solves against the factorisation.
	cross := mat.NewDense(n, np, nil)
	for ti := range d.terms {
		byBlock := make(map[int][]int)
		for i := 0; i < np; i++ {
			b := rows.blockOf[ti][i]
			byBlock[b] = append(byBlock[b], i)
		}
		for b, idx := range byBlock {
			bl := d.blocks[b]
			k := kernel.NewSquaredExp(theta[d.sdIndex(b)], theta[d.lscaleIndex(b)])
			pts := make([][]float64, len(idx))
			for a, i := range idx {
				pts[a] = rows.coords[ti][i]
				base[i] += k.Cov(0)
			}
			kc := kernel.Cross(pts, bl.points, k)
			for a, i := range idx {
				for jj, r := range bl.rows {
					cross.Set(r, i, cross.At(r, i)+kc.At(a, jj))
				}
			}
		}
	}

	alpha := f.alpha.RawVector().Data
	for i := 0; i < np; i++ {
		s := 0.0
		for j := 0; j < n; j++ {
			s += cross.At(j, i) * alpha[j]
		}
		mean[i] += s
	}

	var sol mat.Dense
	if err := f.chol.SolveTo(&sol, cross); err != nil {
		return nil, nil, err
	}
	variance = make([]float64, np)
	for i := 0; i < np; i++ {
		q := 0.0
		for j := 0; j < n; j++ {
			q += cross.At(j, i) * sol.At(j, i)
		}
		variance[i] = base[i] - q
	}
	return mean, variance, nil
}
