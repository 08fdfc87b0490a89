package workflow

import (
	"fmt"

	"github.com/san-kum/phongp/internal/aggregate"
	"github.com/san-kum/phongp/internal/dataset"
	"github.com/san-kum/phongp/internal/gp"
	"github.com/san-kum/phongp/internal/storage"
	"go.uber.org/zap"
)

// Record stores a pipeline result and returns the run ID.
func (s *Session) Record(store *storage.Store, res *Result) (string, error) {
	meta := storage.RunMetadata{
		Analysis:    s.cfg.Name,
		Response:    s.cfg.Data.Response,
		Scale:       s.scale,
		Sampler:     s.cfg.Sampler,
		AggregateBy: s.cfg.Aggregate.By,
		Boundary:    s.cfg.Data.Boundary,
		Comparison:  res.Comparison,
	}
	if res.Grid != nil {
		meta.GridAxes = res.Grid.Names()
	}
	art := storage.Artifacts{
		Draws:       make(map[string]*gp.Draws, len(res.Models)),
		Predictions: make(map[string]*dataset.Table, len(res.Models)),
	}

	if len(res.Aggregate) > 0 {
		t, err := aggregate.ToTable(s.data, s.cfg.Aggregate.By, res.Aggregate)
		if err != nil {
			return "", fmt.Errorf("aggregate table: %w", err)
		}
		art.Aggregate = t
	}

	for _, mr := range res.Models {
		m := mr.Model
		mc, _ := s.cfg.Model(m.Name())
		rec := storage.ModelRecord{
			Name:        m.Name(),
			Formula:     mc.Formula,
			Priors:      effectivePriors(s.cfg.Priors, mc.Priors),
			Elapsed:     m.Elapsed(),
			Divisors:    m.GPLengthDivisors(),
			Chains:      m.ChainStats(),
			Diagnostics: mr.Report,
		}
		if mr.Report != nil {
			rec.Warnings = mr.Report.Warnings()
		}
		meta.Models = append(meta.Models, rec)
		art.Draws[m.Name()] = m.Draws()
		if mr.Predictions != nil {
			art.Predictions[m.Name()] = mr.Predictions
		}
	}

	id, err := store.Save(meta, art)
	if err != nil {
		return "", err
	}
	s.log.Info("run saved", zap.String("id", id))
	return id, nil
}

func effectivePriors(base, override map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}
