package workflow

import (
	"context"
	"time"

	"github.com/san-kum/phongp/internal/aggregate"
	"github.com/san-kum/phongp/internal/dataset"
	"github.com/san-kum/phongp/internal/diagnostics"
	"github.com/san-kum/phongp/internal/gp"
	"github.com/san-kum/phongp/internal/loo"
	"go.uber.org/zap"
)

// ModelResult is everything the pipeline produces for one model.
type ModelResult struct {
	Model       *gp.Model
	Report      *diagnostics.Report
	Predictions *dataset.Table
}

// Result is the outcome of a full pipeline run.
type Result struct {
	Aggregate  []aggregate.Summary
	Grid       *dataset.Table
	Models     []ModelResult
	Comparison []loo.Comparison
	Elapsed    time.Duration
}

// Run executes the pipeline for every configured model, in order. Any fit
// failure stops the run; diagnostic warnings do not.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	res := &Result{}

	var err error
	if len(s.cfg.Aggregate.By) > 0 {
		if res.Aggregate, err = s.Aggregate(); err != nil {
			return nil, err
		}
	}
	if len(s.cfg.Predict.Grid) > 0 {
		if res.Grid, err = s.Grid(); err != nil {
			return nil, err
		}
	}

	models := make([]*gp.Model, 0, len(s.cfg.Models))
	for _, mc := range s.cfg.Models {
		m, err := s.Fit(ctx, mc.Name)
		if err != nil {
			return nil, err
		}
		mr := ModelResult{Model: m, Report: s.Diagnose(m)}
		if res.Grid != nil {
			if mr.Predictions, err = s.Summarize(ctx, m, res.Grid); err != nil {
				return nil, err
			}
		}
		res.Models = append(res.Models, mr)
		models = append(models, m)
	}

	if s.cfg.LOO.Enabled && len(models) > 1 {
		if res.Comparison, err = s.Compare(ctx, models...); err != nil {
			return nil, err
		}
		s.log.Info("preferred model", zap.String("model", res.Comparison[0].Model))
	}
	res.Elapsed = time.Since(start)
	return res, nil
}
