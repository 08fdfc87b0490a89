// Package workflow runs the analysis pipeline for one configuration:
// prepare → fit → diagnose → compare → summarise.
//
// A Session computes the response scale exactly once, from the full raw
// dataset before any filtering, and uses that value for every fit and
// every back-transform.
package workflow

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/phongp/internal/aggregate"
	"github.com/san-kum/phongp/internal/config"
	"github.com/san-kum/phongp/internal/dataset"
	"github.com/san-kum/phongp/internal/diagnostics"
	"github.com/san-kum/phongp/internal/formula"
	"github.com/san-kum/phongp/internal/gp"
	"github.com/san-kum/phongp/internal/logging"
	"github.com/san-kum/phongp/internal/loo"
	"github.com/san-kum/phongp/internal/posterior"
	"github.com/san-kum/phongp/internal/scale"
	"github.com/san-kum/phongp/internal/simulate"
	"go.uber.org/zap"
)

// clusterSep joins composite cluster keys; it matches the engine's
// by = a:b keys so cluster columns and partitions agree.
const clusterSep = "_"

type Session struct {
	cfg *config.Config
	log *zap.Logger

	raw   *dataset.Table
	data  *dataset.Table
	scale scale.Params
}

// NewSession loads the configured data, adds cluster columns, fits the
// response scale on the full data and then applies the row filter.
func NewSession(cfg *config.Config, log *zap.Logger) (*Session, error) {
	raw, err := loadData(cfg.Data)
	if err != nil {
		return nil, err
	}
	return NewSessionFromTable(cfg, raw, log)
}

// NewSessionFromTable is NewSession over an already loaded table.
func NewSessionFromTable(cfg *config.Config, raw *dataset.Table, log *zap.Logger) (*Session, error) {
	s := &Session{cfg: cfg, log: logging.OrNop(log).With(zap.String("analysis", cfg.Name))}

	raw = raw.Clone()
	for _, c := range cfg.Data.Clusters {
		if err := raw.WithCluster(c.Name, clusterSep, c.Columns...); err != nil {
			return nil, fmt.Errorf("cluster %s: %w", c.Name, err)
		}
	}
	s.raw = raw

	resp, err := raw.Numeric(cfg.Data.Response)
	if err != nil {
		return nil, fmt.Errorf("response: %w", err)
	}
	if s.scale, err = scale.Fit(resp); err != nil {
		return nil, fmt.Errorf("response %s: %w", cfg.Data.Response, err)
	}

	s.data = raw
	names := make([]string, 0, len(cfg.Data.Filter))
	for name := range cfg.Data.Filter {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if s.data, err = s.data.FilterLevels(name, cfg.Data.Filter[name]); err != nil {
			return nil, fmt.Errorf("filter %s: %w", name, err)
		}
	}

	s.log.Info("data prepared",
		zap.Int("rows", raw.Rows()),
		zap.Int("kept", s.data.Rows()),
		zap.String("response", cfg.Data.Response),
		zap.Float64("mu", s.scale.Mu),
		zap.Float64("sigma", s.scale.Sigma),
	)
	return s, nil
}

func loadData(dc config.DataConfig) (*dataset.Table, error) {
	switch {
	case dc.Path != "":
		return dataset.LoadCSV(dc.Path, dataset.ReadOptions{Categorical: dc.Categorical, NA: dc.NA})
	case dc.Simulate == "f0":
		return simulate.F0(simulate.DefaultF0Options()), nil
	case dc.Simulate == "sibilant":
		return simulate.Sibilant(simulate.DefaultSibilantOptions()), nil
	}
	return nil, ErrNoData
}

func (s *Session) Config() *config.Config { return s.cfg }

// Scale is the response scale shared by every fit of the session.
func (s *Session) Scale() scale.Params { return s.scale }

// Data is the filtered table in measurement units.
func (s *Session) Data() *dataset.Table { return s.data }

// Raw is the unfiltered table, including cluster columns.
func (s *Session) Raw() *dataset.Table { return s.raw }

// Aggregate summarises the filtered data by the configured grouping.
// Degenerate groups are logged, or fail the call in strict mode.
func (s *Session) Aggregate() ([]aggregate.Summary, error) {
	opts := []aggregate.Option{aggregate.Alpha(s.cfg.Aggregate.Alpha)}
	if s.cfg.Aggregate.Strict {
		opts = append(opts, aggregate.Strict())
	}
	rows, err := aggregate.Summarize(s.data, s.cfg.Data.Response, s.cfg.Aggregate.By, opts...)
	if err != nil {
		return nil, err
	}
	used := 0
	for _, r := range rows {
		used += r.N
		if r.Degenerate {
			s.log.Warn("degenerate group: confidence bounds undefined",
				zap.String("group", r.Key()), zap.Int("n", r.N))
		}
	}
	if dropped := s.data.Rows() - used; dropped > 0 {
		s.log.Warn("rows with missing values left out of aggregation", zap.Int("rows", dropped))
	}
	return rows, nil
}

// fitTable is the filtered data with the response standardized.
func (s *Session) fitTable() (*dataset.Table, error) {
	t := s.data.Clone()
	y, err := t.Numeric(s.cfg.Data.Response)
	if err != nil {
		return nil, err
	}
	if err := t.AddNumeric(s.cfg.Data.Response, s.scale.StandardizeAll(y)); err != nil {
		return nil, err
	}
	return t, nil
}

// Fit fits the named model on the standardized response.
func (s *Session) Fit(ctx context.Context, name string) (*gp.Model, error) {
	mc, ok := s.cfg.Model(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	f, err := formula.Parse(mc.Formula)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", name, err)
	}
	priors, err := s.cfg.PriorSet(mc)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", name, err)
	}
	t, err := s.fitTable()
	if err != nil {
		return nil, err
	}
	def := gp.ModelDef{Name: name, Formula: f, Priors: priors, Sampler: s.cfg.Sampler}
	return gp.Fit(ctx, def, t, gp.WithLogger(s.log))
}

// Diagnose reports convergence diagnostics and logs every warning. It
// never fails a model.
func (s *Session) Diagnose(m *gp.Model) *diagnostics.Report {
	th := s.cfg.Thresholds()
	r := diagnostics.Diagnose(m, diagnostics.WithMaxRhat(th.MaxRhat), diagnostics.WithMinESSPerChain(th.MinESSPerChain))
	for _, w := range r.Warnings() {
		s.log.Warn("diagnostic", zap.String("model", m.Name()), zap.String("warning", w))
	}
	return r
}

// Compare scores every model by elpd_loo and ranks them.
func (s *Session) Compare(ctx context.Context, models ...*gp.Model) ([]loo.Comparison, error) {
	scores := make([]*loo.Score, 0, len(models))
	for _, m := range models {
		sc, err := loo.Compute(ctx, m, s.cfg.LOO.NDraws)
		if err != nil {
			return nil, err
		}
		s.log.Info("loo", zap.String("model", m.Name()),
			zap.Float64("elpd_loo", sc.ElpdLOO), zap.Float64("se", sc.SE), zap.Float64("p_loo", sc.PLOO))
		scores = append(scores, sc)
	}
	return loo.Compare(scores...)
}

// Grid builds the prediction rows from the configured axes. Axes without
// values or levels take the levels observed in the data; axes for columns
// the data lacks are skipped. Cluster columns are added afterwards.
func (s *Session) Grid() (*dataset.Table, error) {
	var axes []dataset.Axis
	for _, a := range s.cfg.Predict.Grid {
		if !s.data.Has(a.Name) {
			continue
		}
		switch {
		case a.Numeric():
			axes = append(axes, dataset.Axis{Name: a.Name, Values: dataset.Seq(a.From, a.To, a.N)})
		case len(a.Levels) > 0:
			axes = append(axes, dataset.Axis{Name: a.Name, Levels: a.Levels})
		default:
			col, err := s.data.Column(a.Name)
			if err != nil {
				return nil, err
			}
			if col.Kind == dataset.Numeric {
				axes = append(axes, dataset.Axis{Name: a.Name, Values: uniqueSorted(col.Num)})
				continue
			}
			axes = append(axes, dataset.Axis{Name: a.Name, Levels: dataset.Levels(col.Str)})
		}
	}
	if len(axes) == 0 {
		return nil, fmt.Errorf("%w: no axis matches a data column", ErrGridAxis)
	}
	grid, err := dataset.ExpandGrid(axes...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGridAxis, err)
	}
	for _, c := range s.cfg.Data.Clusters {
		ok := true
		for _, col := range c.Columns {
			ok = ok && grid.Has(col)
		}
		if ok {
			if err := grid.WithCluster(c.Name, clusterSep, c.Columns...); err != nil {
				return nil, err
			}
		}
	}
	return grid, nil
}

// Summarize draws the posterior predictive over grid, summarises each row
// on the measurement scale and joins the grid columns back on.
func (s *Session) Summarize(ctx context.Context, m *gp.Model, grid *dataset.Table) (*dataset.Table, error) {
	opts := gp.PredictOptions{
		NDraws: s.cfg.Predict.NDraws,
		Epred:  s.cfg.Predict.Type == "epred",
		Seed:   s.cfg.Predict.Seed,
	}
	draws, err := m.PosteriorPredict(ctx, grid, opts)
	if err != nil {
		return nil, fmt.Errorf("predict %s: %w", m.Name(), err)
	}
	rows, err := posterior.Summarize(draws, s.cfg.Predict.Prob)
	if err != nil {
		return nil, err
	}
	rows = posterior.BackTransform(rows, s.scale)
	return posterior.Join(rows, grid, grid.Names())
}

func uniqueSorted(xs []float64) []float64 {
	seen := make(map[float64]bool, len(xs))
	var out []float64
	for _, x := range xs {
		if !seen[x] && !math.IsNaN(x) {
			seen[x] = true
			out = append(out, x)
		}
	}
	sort.Float64s(out)
	return out
}
