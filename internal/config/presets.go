package config

import (
	"sort"

	"gopkg.in/yaml.v3"
)

var defaultPriors = map[string]string{
	"Intercept": "normal(0, 1)",
	"b":         "normal(0, 1)",
	"sdgp":      "student_t(3, 0, 1)",
	"lscale":    "inv_gamma(2, 0.5)",
	"sigma":     "student_t(3, 0, 1)",
}

// Presets holds ready-made analyses keyed by dataset, then variant.
var Presets = map[string]map[string]*Config{
	"f0": {
		"tutorial": f0Preset(2000, 1000, 4),
		"quick":    f0Preset(400, 200, 2),
	},
	"sibilant": {
		"tutorial": sibilantPreset(2000, 1000, 4),
		"quick":    sibilantPreset(400, 200, 2),
	},
}

func f0Preset(iter, warmup, chains int) *Config {
	cfg := DefaultConfig()
	cfg.Name = "f0"
	cfg.Data = DataConfig{
		Simulate:    "f0",
		Response:    "f0",
		Categorical: []string{"context", "sex", "location"},
		Clusters:    []ClusterConfig{{Name: "sex_location", Columns: []string{"sex", "location"}}},
	}
	cfg.Aggregate.By = []string{"time", "context"}
	cfg.Priors = copyMap(defaultPriors)
	cfg.Models = []ModelConfig{
		{Name: "time", Formula: "f0 ~ 1 + gp(time)"},
		{Name: "context", Formula: "f0 ~ context + gp(time, by = context)"},
		{Name: "sex_location", Formula: "f0 ~ context + sex_location + gp(time, by = sex:location)"},
	}
	cfg.Sampler.Iter, cfg.Sampler.Warmup = iter, warmup
	cfg.Sampler.Chains, cfg.Sampler.Cores = chains, chains
	cfg.Sampler.AdaptDelta = 0.95
	cfg.Sampler.MaxTreedepth = 12
	cfg.Sampler.Jitter = 1e-4
	cfg.Predict.Grid = []AxisConfig{
		{Name: "time", From: 1, To: 10, N: 28},
		{Name: "context"},
		{Name: "sex"},
		{Name: "location"},
	}
	return cfg
}

func sibilantPreset(iter, warmup, chains int) *Config {
	cfg := DefaultConfig()
	cfg.Name = "sibilant"
	cfg.Data = DataConfig{
		Simulate:    "sibilant",
		Response:    "cog",
		Categorical: []string{"site", "sibilant"},
	}
	cfg.Aggregate.By = []string{"sibilant"}
	cfg.Priors = copyMap(defaultPriors)
	cfg.Models = []ModelConfig{
		{Name: "shared", Formula: "cog ~ sibilant + gp(lon, lat)"},
		{Name: "by_sibilant", Formula: "cog ~ sibilant + gp(lon, lat, by = sibilant)"},
	}
	cfg.Sampler.Iter, cfg.Sampler.Warmup = iter, warmup
	cfg.Sampler.Chains, cfg.Sampler.Cores = chains, chains
	cfg.Sampler.AdaptDelta = 0.9
	cfg.Predict.Grid = []AxisConfig{
		{Name: "lon", From: 5.8, To: 15.1, N: 16},
		{Name: "lat", From: 47.2, To: 55.1, N: 16},
		{Name: "sibilant"},
	}
	return cfg
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(analysis, name string) *Config {
	variants, ok := Presets[analysis]
	if !ok {
		return nil
	}
	cfg, ok := variants[name]
	if !ok {
		return nil
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil
	}
	out := DefaultConfig()
	if err := yaml.Unmarshal(data, out); err != nil {
		return nil
	}
	return out
}

// ListPresets returns the sorted variant names of an analysis, or nil.
func ListPresets(analysis string) []string {
	variants, ok := Presets[analysis]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(variants))
	for name := range variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Analyses lists the datasets presets exist for.
func Analyses() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
