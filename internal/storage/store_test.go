package storage

import (
	"errors"
	"math"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/san-kum/phongp/internal/dataset"
	"github.com/san-kum/phongp/internal/diagnostics"
	"github.com/san-kum/phongp/internal/gp"
	"github.com/san-kum/phongp/internal/scale"
)

func sampleRun(t *testing.T) (RunMetadata, Artifacts) {
	t.Helper()
	agg := dataset.New()
	if err := agg.AddCategorical("context", []string{"falling", "rising"}); err != nil {
		t.Fatal(err)
	}
	if err := agg.AddNumeric("f0", []float64{180.5, 201.25}); err != nil {
		t.Fatal(err)
	}

	draws := &gp.Draws{
		Names: []string{"b_Intercept", "sigma"},
		Chains: [][][]float64{
			{{0.1, 1.0}, {0.2, 1.1}},
			{{-0.1, 0.9}, {0.05, 1.2}},
		},
	}
	meta := RunMetadata{
		Analysis: "f0",
		Response: "f0",
		Scale:    scale.Params{Mu: 190, Sigma: 12},
		Sampler:  gp.DefaultSamplerConfig(),
		Models: []ModelRecord{{
			Name:    "intercept",
			Formula: "f0 ~ 1",
			Diagnostics: &diagnostics.Report{
				Model:  "intercept",
				Params: []diagnostics.Param{{Name: "sigma", Rhat: math.NaN(), ESS: 12}},
			},
		}},
	}
	return meta, Artifacts{
		Aggregate: agg,
		Draws:     map[string]*gp.Draws{"intercept": draws},
	}
}

func TestSaveLoad(t *testing.T) {
	s := New(t.TempDir())
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}
	meta, art := sampleRun(t)

	id, err := s.Save(meta, art)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !strings.HasPrefix(id, "f0_") {
		t.Errorf("run id %q should start with the analysis name", id)
	}

	got, err := s.Load(id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.ID != id || got.Scale != meta.Scale || got.Sampler != meta.Sampler {
		t.Errorf("metadata mismatch: %+v", got)
	}
	if len(got.Models) != 1 || got.Models[0].Formula != "f0 ~ 1" {
		t.Fatalf("models: %+v", got.Models)
	}
	p := got.Models[0].Diagnostics.Params[0]
	if !math.IsNaN(p.Rhat) || p.ESS != 12 {
		t.Errorf("diagnostics param: %+v", p)
	}

	agg, err := s.LoadAggregate(id)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	f0, err := agg.Numeric("f0")
	if err != nil {
		t.Fatal(err)
	}
	if f0[0] != 180.5 || f0[1] != 201.25 {
		t.Errorf("aggregate f0 = %v", f0)
	}

	d, err := s.LoadDraws(id, "intercept")
	if err != nil {
		t.Fatalf("draws: %v", err)
	}
	if d.NumChains() != 2 || d.PerChain() != 2 {
		t.Fatalf("draws shape %d x %d", d.NumChains(), d.PerChain())
	}
	for c := range d.Chains {
		for i := range d.Chains[c] {
			for k, v := range d.Chains[c][i] {
				if v != art.Draws["intercept"].Chains[c][i][k] {
					t.Errorf("draw [%d][%d][%d] = %v", c, i, k, v)
				}
			}
		}
	}
}

func TestListNewestFirst(t *testing.T) {
	s := New(t.TempDir())
	meta, art := sampleRun(t)

	meta.Timestamp = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	older, err := s.Save(meta, art)
	if err != nil {
		t.Fatal(err)
	}
	meta.Timestamp = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	newer, err := s.Save(meta, art)
	if err != nil {
		t.Fatal(err)
	}

	runs, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].ID != newer || runs[1].ID != older {
		t.Errorf("unexpected order: %v", runs)
	}
	latest, err := s.Latest()
	if err != nil || latest.ID != newer {
		t.Errorf("latest = %v, %v", latest, err)
	}
}

func TestMissingRun(t *testing.T) {
	s := New(t.TempDir())

	runs, err := s.List()
	if err != nil || len(runs) != 0 {
		t.Errorf("empty store: %v %v", runs, err)
	}
	if _, err := s.Latest(); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("latest on empty store: %v", err)
	}
	if _, err := s.Load("nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("load: %v", err)
	}
	if _, err := s.LoadDraws("nope", "m"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("draws: %v", err)
	}
	if _, err := s.LoadPredictions("nope", "m"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("predictions: %v", err)
	}
}

func TestSaveFailureLeavesNoRun(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	meta, art := sampleRun(t)
	pred := dataset.New()
	if err := pred.AddNumeric("mean", []float64{1}); err != nil {
		t.Fatal(err)
	}
	// the model name points into a directory that does not exist
	art.Predictions = map[string]*dataset.Table{"missing/model": pred}

	if _, err := s.Save(meta, art); err == nil {
		t.Fatal("expected save to fail")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("partial run left behind: %v", entries)
	}
	runs, err := s.List()
	if err != nil || len(runs) != 0 {
		t.Errorf("list after failed save: %v %v", runs, err)
	}
}
