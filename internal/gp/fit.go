package gp

import (
	"context"
	"time"

	"github.com/san-kum/phongp/internal/dataset"
	"github.com/san-kum/phongp/internal/formula"
	"github.com/san-kum/phongp/internal/prior"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ModelDef fully describes one model to fit.
type ModelDef struct {
	Name    string
	Formula *formula.Formula
	Priors  prior.Set
	Sampler SamplerConfig
}

// Model is a fitted model: its design, draws and sampler statistics.
type Model struct {
	def     ModelDef
	design  *design
	target  *target
	draws   *Draws
	stats   []ChainStats
	elapsed time.Duration
}

type fitOptions struct {
	log *zap.Logger
}

type FitOption func(*fitOptions)

func WithLogger(l *zap.Logger) FitOption {
	return func(o *fitOptions) { o.log = l }
}

// Fit samples the posterior of def given data.
func Fit(ctx context.Context, def ModelDef, data *dataset.Table, opts ...FitOption) (*Model, error) {
	o := fitOptions{log: zap.NewNop()}
	for _, fn := range opts {
		fn(&o)
	}
	wrap := func(chain int, err error) error {
		return &FitError{Model: def.Name, Chain: chain, Wrapped: err}
	}

	cfg := def.Sampler.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, wrap(-1, err)
	}
	if def.Formula == nil {
		return nil, wrap(-1, formula.ErrSyntax)
	}
	if err := def.Priors.Check(def.Formula.Classes()); err != nil {
		return nil, wrap(-1, err)
	}
	d, err := newDesign(def.Formula, data)
	if err != nil {
		return nil, wrap(-1, err)
	}
	t, err := newTarget(d, def.Priors, cfg.Jitter)
	if err != nil {
		return nil, wrap(-1, err)
	}

	log := o.log.With(zap.String("model", def.Name))
	log.Info("fitting",
		zap.String("formula", def.Formula.String()),
		zap.Int("observations", d.n),
		zap.Int("parameters", d.dim()),
		zap.Int("chains", cfg.Chains),
		zap.Int("iter", cfg.Iter),
		zap.Int("warmup", cfg.Warmup),
	)

	start := time.Now()
	results := make([]*chainResult, cfg.Chains)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Cores)
	for c := 0; c < cfg.Chains; c++ {
		g.Go(func() error {
			res, err := runChain(gctx, t, cfg, c, log)
			if err != nil {
				return wrap(c, err)
			}
			results[c] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	m := &Model{
		def:     def,
		design:  d,
		target:  t,
		draws:   &Draws{Names: d.paramNames(), Chains: make([][][]float64, cfg.Chains)},
		stats:   make([]ChainStats, cfg.Chains),
		elapsed: time.Since(start),
	}
	m.def.Sampler = cfg
	for c, r := range results {
		m.draws.Chains[c] = r.draws
		m.stats[c] = r.stats
	}
	log.Info("fitted", zap.Duration("elapsed", m.elapsed))
	return m, nil
}

func (m *Model) Name() string             { return m.def.Name }
func (m *Model) Def() ModelDef            { return m.def }
func (m *Model) Draws() *Draws            { return m.draws }
func (m *Model) ChainStats() []ChainStats { return m.stats }
func (m *Model) Elapsed() time.Duration   { return m.elapsed }

// NumObservations is the number of rows the model was fitted on.
func (m *Model) NumObservations() int { return m.design.n }

// GPLengthDivisors reports, per gp() term label, the factor the inputs
// were divided by before fitting.
func (m *Model) GPLengthDivisors() map[string]float64 {
	out := make(map[string]float64, len(m.design.terms))
	for _, t := range m.design.terms {
		out[t.src.Label()] = t.divisor
	}
	return out
}
