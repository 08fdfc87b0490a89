package workflow_test

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/phongp/internal/aggregate"
	"github.com/san-kum/phongp/internal/config"
	"github.com/san-kum/phongp/internal/dataset"
	"github.com/san-kum/phongp/internal/scale"
	"github.com/san-kum/phongp/internal/simulate"
	"github.com/san-kum/phongp/internal/workflow"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func priors() map[string]string {
	return map[string]string{
		"Intercept": "normal(0, 1)",
		"b":         "normal(0, 1)",
		"sdgp":      "student_t(3, 0, 1)",
		"lscale":    "inv_gamma(2, 0.5)",
		"sigma":     "student_t(3, 0, 1)",
	}
}

func f0Config(models ...config.ModelConfig) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Name = "test"
	cfg.Data = config.DataConfig{
		Simulate: "f0",
		Response: "f0",
		Clusters: []config.ClusterConfig{{Name: "sex_location", Columns: []string{"sex", "location"}}},
	}
	cfg.Priors = priors()
	cfg.Models = models
	cfg.Sampler.Iter, cfg.Sampler.Warmup = 400, 200
	cfg.Sampler.Chains, cfg.Sampler.Cores = 2, 2
	cfg.Sampler.AdaptDelta = 0.9
	cfg.Sampler.MaxTreedepth = 8
	cfg.Sampler.Jitter = 1e-4
	cfg.LOO.NDraws = 200
	cfg.Predict.NDraws = 200
	return cfg
}

var _ = Describe("Session", func() {
	var raw *dataset.Table

	BeforeEach(func() {
		raw = simulate.F0(simulate.DefaultF0Options())
	})

	It("computes the response scale once from the unfiltered data", func() {
		cfg := f0Config(config.ModelConfig{Name: "m", Formula: "f0 ~ 1 + gp(time)"})
		cfg.Data.Filter = map[string][]string{"context": {"falling"}}

		s, err := workflow.NewSessionFromTable(cfg, raw, nil)
		Expect(err).NotTo(HaveOccurred())

		all, _ := raw.Numeric("f0")
		want, err := scale.Fit(all)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Scale()).To(Equal(want))
		Expect(s.Data().Rows()).To(Equal(40))
		Expect(s.Raw().Rows()).To(Equal(80))

		kept, _ := s.Data().Numeric("f0")
		filtered, err := scale.Fit(kept)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Scale()).NotTo(Equal(filtered))
	})

	It("adds cluster columns before anything else", func() {
		s, err := workflow.NewSessionFromTable(f0Config(), raw, nil)
		Expect(err).NotTo(HaveOccurred())
		levels, err := s.Raw().Levels("sex_location")
		Expect(err).NotTo(HaveOccurred())
		Expect(levels).To(Equal([]string{"f_north", "f_south", "m_north", "m_south"}))
		Expect(raw.Has("sex_location")).To(BeFalse(), "the input table is not modified")
	})

	It("aggregates with group counts summing to the row count", func() {
		cfg := f0Config()
		cfg.Aggregate.By = []string{"time", "context"}
		s, err := workflow.NewSessionFromTable(cfg, raw, nil)
		Expect(err).NotTo(HaveOccurred())

		rows, err := s.Aggregate()
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(20))
		total := 0
		for _, r := range rows {
			total += r.N
			Expect(r.Low).To(BeNumerically("<=", r.Mean))
			Expect(r.High).To(BeNumerically(">=", r.Mean))
		}
		Expect(total).To(Equal(raw.Rows()))
	})

	It("keeps degenerate groups unless strict", func() {
		tbl := dataset.New()
		Expect(tbl.AddNumeric("f0", []float64{100, 110, 120})).To(Succeed())
		Expect(tbl.AddCategorical("sex", []string{"f", "f", "m"})).To(Succeed())
		cfg := f0Config()
		cfg.Data.Clusters = nil
		cfg.Aggregate.By = []string{"sex"}

		s, err := workflow.NewSessionFromTable(cfg, tbl, nil)
		Expect(err).NotTo(HaveOccurred())
		rows, err := s.Aggregate()
		Expect(err).NotTo(HaveOccurred())
		Expect(rows[1].Degenerate).To(BeTrue())
		Expect(math.IsNaN(rows[1].Low)).To(BeTrue())

		cfg.Aggregate.Strict = true
		_, err = s.Aggregate()
		Expect(err).To(MatchError(aggregate.ErrDegenerateGroup))
	})

	It("leaves rows with missing values out of the aggregate and logs them", func() {
		tbl := dataset.New()
		Expect(tbl.AddNumeric("f0", []float64{100, 110, math.NaN(), 120, 125, 130})).To(Succeed())
		Expect(tbl.AddCategorical("sex", []string{"f", "f", "f", dataset.Missing, "m", "m"})).To(Succeed())
		cfg := f0Config()
		cfg.Data.Clusters = nil
		cfg.Aggregate.By = []string{"sex"}

		core, logs := observer.New(zap.WarnLevel)
		s, err := workflow.NewSessionFromTable(cfg, tbl, zap.New(core))
		Expect(err).NotTo(HaveOccurred())
		rows, err := s.Aggregate()
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(2))
		Expect(rows[0].N + rows[1].N).To(Equal(4))

		dropped := logs.FilterMessage("rows with missing values left out of aggregation").All()
		Expect(dropped).To(HaveLen(1))
		Expect(dropped[0].ContextMap()).To(HaveKeyWithValue("rows", int64(2)))
	})

	It("builds the prediction grid from observed levels", func() {
		cfg := f0Config()
		cfg.Predict.Grid = []config.AxisConfig{
			{Name: "time", From: 1, To: 10, N: 4},
			{Name: "context"},
			{Name: "sex"},
			{Name: "location", Levels: []string{"north"}},
			{Name: "speaker"},
		}
		s, err := workflow.NewSessionFromTable(cfg, raw, nil)
		Expect(err).NotTo(HaveOccurred())

		grid, err := s.Grid()
		Expect(err).NotTo(HaveOccurred())
		Expect(grid.Rows()).To(Equal(4 * 2 * 2))
		Expect(grid.Names()).To(Equal([]string{"time", "context", "sex", "location", "sex_location"}))
		keys, _ := grid.Categorical("sex_location")
		Expect(keys).To(ContainElements("f_north", "m_north"))
		Expect(keys).NotTo(ContainElement("f_south"))
	})

	It("rejects unknown models", func() {
		s, err := workflow.NewSessionFromTable(f0Config(), raw, nil)
		Expect(err).NotTo(HaveOccurred())
		_, err = s.Fit(context.Background(), "nope")
		Expect(err).To(MatchError(workflow.ErrUnknownModel))
	})
})

var _ = Describe("Pipeline", Label("slow"), func() {
	It("recovers zero-noise generating means within 2 Hz", func() {
		cfg := f0Config(config.ModelConfig{
			Name:    "cells",
			Formula: "f0 ~ context + sex_location + gp(time, by = context:sex_location)",
		})
		cfg.Predict.Type = "epred"
		cfg.Predict.Grid = []config.AxisConfig{
			{Name: "time", From: 1, To: 10, N: 10},
			{Name: "context"},
			{Name: "sex"},
			{Name: "location"},
		}
		cfg.LOO.Enabled = false

		s, err := workflow.NewSession(cfg, nil)
		Expect(err).NotTo(HaveOccurred())
		res, err := s.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Models).To(HaveLen(1))
		Expect(res.Comparison).To(BeEmpty())

		pred := res.Models[0].Predictions
		Expect(pred.Rows()).To(Equal(80))
		times, _ := pred.Numeric("time")
		ctx, _ := pred.Categorical("context")
		sex, _ := pred.Categorical("sex")
		loc, _ := pred.Categorical("location")
		mean, _ := pred.Numeric("mean")
		low, _ := pred.Numeric("low")
		high, _ := pred.Numeric("high")
		for i := range mean {
			want := simulate.F0Mean(times[i], ctx[i], sex[i], loc[i])
			Expect(mean[i]).To(BeNumerically("~", want, 2), "time %v %s %s %s", times[i], ctx[i], sex[i], loc[i])
			Expect(low[i]).To(BeNumerically("<=", mean[i]))
			Expect(high[i]).To(BeNumerically(">=", mean[i]))
		}
	})

	It("ranks a by-context smooth above a shared smooth when contours differ by context", func() {
		cfg := f0Config(
			config.ModelConfig{Name: "shared", Formula: "f0 ~ context + sex + location + gp(time)"},
			config.ModelConfig{Name: "by_context", Formula: "f0 ~ context + sex + location + gp(time, by = context)"},
		)
		tbl := simulate.F0(simulate.F0Options{Times: 10, Reps: 1, Noise: 1, Seed: 3})
		s, err := workflow.NewSessionFromTable(cfg, tbl, nil)
		Expect(err).NotTo(HaveOccurred())

		res, err := s.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Comparison).To(HaveLen(2))
		Expect(res.Comparison[0].Model).To(Equal("by_context"))
		Expect(res.Comparison[1].ElpdDiff).To(BeNumerically("<=", 0))
		for _, m := range res.Models {
			Expect(m.Report.Params).NotTo(BeEmpty())
		}
	})
})
