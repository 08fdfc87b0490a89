package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/san-kum/phongp/internal/diagnostics"
	"github.com/san-kum/phongp/internal/formula"
	"github.com/san-kum/phongp/internal/gp"
	"github.com/san-kum/phongp/internal/prior"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAlpha  = 0.05
	DefaultProb   = 0.95
	DefaultNDraws = 1000
	DefaultOutput = ".phongp"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid configuration")

// Config describes one analysis: the data, the competing models and how
// they are fitted, compared and summarised.
type Config struct {
	Name        string            `yaml:"name" validate:"required"`
	Data        DataConfig        `yaml:"data"`
	Aggregate   AggregateConfig   `yaml:"aggregate"`
	Priors      map[string]string `yaml:"priors" validate:"dive,keys,required,endkeys,prior"`
	Models      []ModelConfig     `yaml:"models" validate:"required,min=1,dive"`
	Sampler     gp.SamplerConfig  `yaml:"sampler"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
	LOO         LOOConfig         `yaml:"loo"`
	Predict     PredictConfig     `yaml:"predict"`
	Output      string            `yaml:"output"`
}

type DataConfig struct {
	// Path is a CSV file. When empty, Simulate names a generator.
	Path        string   `yaml:"path,omitempty" validate:"required_without=Simulate"`
	Simulate    string   `yaml:"simulate,omitempty" validate:"omitempty,oneof=f0 sibilant"`
	Response    string   `yaml:"response" validate:"required"`
	Categorical []string `yaml:"categorical,omitempty"`
	NA          []string `yaml:"na,omitempty"`
	// Filter keeps rows whose column value is one of the listed levels. It
	// is applied after the response scale has been computed.
	Filter   map[string][]string `yaml:"filter,omitempty"`
	Clusters []ClusterConfig     `yaml:"clusters,omitempty" validate:"dive"`
	// Boundary is a GeoJSON file drawn under geographic plots.
	Boundary string `yaml:"boundary,omitempty"`
}

// ClusterConfig adds a categorical column joining the values of Columns.
type ClusterConfig struct {
	Name    string   `yaml:"name" validate:"required"`
	Columns []string `yaml:"columns" validate:"min=2,max=2"`
}

type AggregateConfig struct {
	By     []string `yaml:"by,omitempty"`
	Alpha  float64  `yaml:"alpha" validate:"gt=0,lt=1"`
	Strict bool     `yaml:"strict"`
}

type ModelConfig struct {
	Name    string `yaml:"name" validate:"required"`
	Formula string `yaml:"formula" validate:"required,formula"`
	// Priors override the analysis-level priors per class.
	Priors map[string]string `yaml:"priors,omitempty" validate:"dive,keys,required,endkeys,prior"`
}

type DiagnosticsConfig struct {
	MaxRhat        float64 `yaml:"max_rhat" validate:"gt=1"`
	MinESSPerChain float64 `yaml:"min_ess_per_chain" validate:"gte=0"`
}

type LOOConfig struct {
	Enabled bool `yaml:"enabled"`
	NDraws  int  `yaml:"ndraws" validate:"gte=0"`
}

type PredictConfig struct {
	Type   string       `yaml:"type" validate:"oneof=predict epred"`
	NDraws int          `yaml:"ndraws" validate:"gte=0"`
	Prob   float64      `yaml:"prob" validate:"gt=0,lt=1"`
	Seed   uint64       `yaml:"seed"`
	Grid   []AxisConfig `yaml:"grid,omitempty" validate:"dive"`
}

// AxisConfig is one prediction grid axis: numeric From..To in N steps,
// explicit Levels, or the levels observed in the data when both are empty.
type AxisConfig struct {
	Name   string   `yaml:"name" validate:"required"`
	From   float64  `yaml:"from,omitempty"`
	To     float64  `yaml:"to,omitempty"`
	N      int      `yaml:"n,omitempty" validate:"gte=0"`
	Levels []string `yaml:"levels,omitempty"`
}

// Numeric reports whether the axis is a numeric sequence.
func (a AxisConfig) Numeric() bool { return a.N > 0 }

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("prior", func(fl validator.FieldLevel) bool {
		_, err := prior.Parse(fl.Field().String())
		return err == nil
	})
	_ = validate.RegisterValidation("formula", func(fl validator.FieldLevel) bool {
		_, err := formula.Parse(fl.Field().String())
		return err == nil
	})
}

func DefaultConfig() *Config {
	return &Config{
		Name:      "analysis",
		Aggregate: AggregateConfig{Alpha: DefaultAlpha},
		Priors:    map[string]string{},
		Sampler:   gp.DefaultSamplerConfig(),
		Diagnostics: DiagnosticsConfig{
			MaxRhat:        diagnostics.DefaultThresholds().MaxRhat,
			MinESSPerChain: diagnostics.DefaultThresholds().MinESSPerChain,
		},
		LOO:     LOOConfig{Enabled: true, NDraws: DefaultNDraws},
		Predict: PredictConfig{Type: "predict", NDraws: DefaultNDraws, Prob: DefaultProb, Seed: 1},
		Output:  DefaultOutput,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML on top of DefaultConfig and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks field constraints, model name uniqueness and that every
// model has a prior for each parameter class its formula uses.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	seen := make(map[string]bool, len(c.Models))
	for _, m := range c.Models {
		if seen[m.Name] {
			return fmt.Errorf("%w: duplicate model name %q", ErrInvalid, m.Name)
		}
		seen[m.Name] = true

		f, err := formula.Parse(m.Formula)
		if err != nil {
			return fmt.Errorf("%w: model %s: %v", ErrInvalid, m.Name, err)
		}
		if f.Response != c.Data.Response {
			return fmt.Errorf("%w: model %s models %q, data response is %q", ErrInvalid, m.Name, f.Response, c.Data.Response)
		}
		set, err := c.PriorSet(m)
		if err != nil {
			return fmt.Errorf("%w: model %s: %v", ErrInvalid, m.Name, err)
		}
		if err := set.Check(f.Classes()); err != nil {
			return fmt.Errorf("model %s: %w", m.Name, err)
		}
	}
	return nil
}

// PriorSet merges the analysis priors with the model's overrides.
func (c *Config) PriorSet(m ModelConfig) (prior.Set, error) {
	merged := make(map[string]string, len(c.Priors)+len(m.Priors))
	for k, v := range c.Priors {
		merged[k] = v
	}
	for k, v := range m.Priors {
		merged[k] = v
	}
	return prior.ParseSet(merged)
}

// Thresholds converts the diagnostics section.
func (c *Config) Thresholds() diagnostics.Thresholds {
	return diagnostics.Thresholds{MaxRhat: c.Diagnostics.MaxRhat, MinESSPerChain: c.Diagnostics.MinESSPerChain}
}

// Model returns the model named name.
func (c *Config) Model(name string) (ModelConfig, bool) {
	for _, m := range c.Models {
		if m.Name == name {
			return m, true
		}
	}
	return ModelConfig{}, false
}
