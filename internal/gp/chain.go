package gp

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"go.uber.org/zap"
)

// chainResult holds the constrained post-warmup draws of one chain.
type chainResult struct {
	draws [][]float64
	stats ChainStats
}

// runChain samples one chain. Chain c uses seed Seed+c.
func runChain(ctx context.Context, t *target, cfg SamplerConfig, chain int, log *zap.Logger) (*chainResult, error) {
	seed := uint64(cfg.Seed + int64(chain))
	rng := rand.New(rand.NewPCG(seed, 0x9e3779b97f4a7c15))
	s := newNUTS(t, rng, cfg.MaxTreedepth)
	dim := t.d.dim()

	cur, err := s.initialPoint(cfg.InitRadius)
	if err != nil {
		return nil, err
	}

	eps := s.initialStepSize(cur, 1)
	da := newDualAveraging(cfg.AdaptDelta)
	da.restart(eps)
	win := newWindows(cfg.Warmup)
	est := newWelford(dim)
	monitors := defaultMonitors()

	res := &chainResult{draws: make([][]float64, 0, cfg.Draws())}
	logEvery := cfg.Iter / 10
	if logEvery < 1 {
		logEvery = 1
	}

	for it := 0; it < cfg.Iter; it++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		warm := it < cfg.Warmup
		next, info := s.transition(cur, eps)
		cur = next
		info.Warmup = warm
		for _, m := range monitors {
			m.Observe(info)
		}

		if warm {
			eps = da.update(info.AcceptStat)
			if win.inWindow(it) {
				est.add(cur.q)
			}
			if win.endOfWindow(it) {
				s.invMetric = est.regularized()
				win.advance(it)
				est.reset()
				// The metric changed, so the trajectory energy changed too.
				cur = s.eval(cur.q)
				eps = s.initialStepSize(cur, eps)
				da.restart(eps)
			}
			if it == cfg.Warmup-1 {
				eps = da.final()
			}
		} else {
			res.draws = append(res.draws, t.d.constrain(cur.q))
		}

		if (it+1)%logEvery == 0 {
			log.Debug("sampling",
				zap.Int("chain", chain),
				zap.Int("iteration", it+1),
				zap.Int("of", cfg.Iter),
				zap.Bool("warmup", warm),
				zap.Float64("step_size", eps),
			)
		}
	}

	res.stats = statsFrom(chain, monitors)
	res.stats.StepSize = eps
	res.stats.InvMetric = append([]float64(nil), s.invMetric...)
	res.stats.Gradients = s.grads
	return res, nil
}

// initialPoint draws uniform initial values in (-radius, radius) until the
// log density is finite.
func (s *nuts) initialPoint(radius float64) (point, error) {
	dim := len(s.invMetric)
	for attempt := 0; attempt < 100; attempt++ {
		q := make([]float64, dim)
		for i := range q {
			q[i] = radius * (2*s.rng.Float64() - 1)
		}
		z := s.eval(q)
		if !math.IsInf(z.lp, -1) && !math.IsNaN(z.lp) {
			return z, nil
		}
	}
	return point{}, fmt.Errorf("%w after 100 attempts", ErrNoValidInit)
}
