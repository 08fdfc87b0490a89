package workflow_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/phongp/internal/config"
	"github.com/san-kum/phongp/internal/storage"
	"github.com/san-kum/phongp/internal/workflow"
)

var _ = Describe("Record", func() {
	It("stores metadata, aggregates, draws and predictions of a run", func() {
		cfg := f0Config(config.ModelConfig{
			Name:    "intercept",
			Formula: "f0 ~ context",
			Priors:  map[string]string{"b": "normal(0, 2)"},
		})
		cfg.Sampler.Iter, cfg.Sampler.Warmup = 120, 60
		cfg.Aggregate.By = []string{"context"}
		cfg.Predict.NDraws = 50
		cfg.Predict.Grid = []config.AxisConfig{{Name: "context"}}

		s, err := workflow.NewSession(cfg, nil)
		Expect(err).NotTo(HaveOccurred())
		res, err := s.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())

		store := storage.New(GinkgoT().TempDir())
		id, err := s.Record(store, res)
		Expect(err).NotTo(HaveOccurred())

		meta, err := store.Load(id)
		Expect(err).NotTo(HaveOccurred())
		Expect(meta.Analysis).To(Equal("test"))
		Expect(meta.Scale).To(Equal(s.Scale()))
		Expect(meta.Models).To(HaveLen(1))
		Expect(meta.Models[0].Priors).To(HaveKeyWithValue("b", "normal(0, 2)"))
		Expect(meta.Models[0].Priors).To(HaveKeyWithValue("sigma", "student_t(3, 0, 1)"))
		Expect(meta.Models[0].Chains).To(HaveLen(2))

		agg, err := store.LoadAggregate(id)
		Expect(err).NotTo(HaveOccurred())
		Expect(agg.Rows()).To(Equal(2))

		draws, err := store.LoadDraws(id, "intercept")
		Expect(err).NotTo(HaveOccurred())
		Expect(draws.Names).To(Equal(res.Models[0].Model.Draws().Names))
		Expect(draws.Total()).To(Equal(120))

		pred, err := store.LoadPredictions(id, "intercept")
		Expect(err).NotTo(HaveOccurred())
		Expect(pred.Names()).To(ContainElements("context", "mean", "low", "high"))
	})
})
