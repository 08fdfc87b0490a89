package gp

import "fmt"

// SamplerConfig mirrors the usual Stan/brms controls. Iter counts warmup.
type SamplerConfig struct {
	Iter         int     `yaml:"iter" json:"iter"`
	Warmup       int     `yaml:"warmup" json:"warmup"`
	Chains       int     `yaml:"chains" json:"chains"`
	Cores        int     `yaml:"cores" json:"cores"`
	AdaptDelta   float64 `yaml:"adapt_delta" json:"adapt_delta"`
	MaxTreedepth int     `yaml:"max_treedepth" json:"max_treedepth"`
	Seed         int64   `yaml:"seed" json:"seed"`
	// Jitter is added to the covariance diagonal on top of σ².
	Jitter float64 `yaml:"jitter" json:"jitter"`
	// InitRadius bounds the uniform initial values on the unconstrained scale.
	InitRadius float64 `yaml:"init_radius" json:"init_radius"`
}

func DefaultSamplerConfig() SamplerConfig {
	return SamplerConfig{
		Iter:         2000,
		Warmup:       1000,
		Chains:       4,
		Cores:        4,
		AdaptDelta:   0.8,
		MaxTreedepth: 10,
		Seed:         1,
		Jitter:       1e-6,
		InitRadius:   2,
	}
}

// Draws is the number of post-warmup draws per chain.
func (c SamplerConfig) Draws() int { return c.Iter - c.Warmup }

func (c SamplerConfig) validate() error {
	if c.Chains < 1 {
		return fmt.Errorf("%w: chains must be >= 1, got %d", ErrInvalidConfig, c.Chains)
	}
	if c.Warmup < 0 {
		return fmt.Errorf("%w: warmup must be >= 0, got %d", ErrInvalidConfig, c.Warmup)
	}
	if c.Iter <= c.Warmup {
		return fmt.Errorf("%w: iter (%d) must exceed warmup (%d)", ErrInsufficientDraws, c.Iter, c.Warmup)
	}
	if c.AdaptDelta <= 0 || c.AdaptDelta >= 1 {
		return fmt.Errorf("%w: adapt_delta must be in (0, 1), got %v", ErrInvalidConfig, c.AdaptDelta)
	}
	if c.MaxTreedepth < 1 || c.MaxTreedepth > 20 {
		return fmt.Errorf("%w: max_treedepth must be in [1, 20], got %d", ErrInvalidConfig, c.MaxTreedepth)
	}
	if c.Jitter < 0 {
		return fmt.Errorf("%w: jitter must be >= 0, got %v", ErrInvalidConfig, c.Jitter)
	}
	return nil
}

func (c SamplerConfig) withDefaults() SamplerConfig {
	d := DefaultSamplerConfig()
	if c.Cores <= 0 {
		c.Cores = c.Chains
	}
	if c.InitRadius <= 0 {
		c.InitRadius = d.InitRadius
	}
	if c.AdaptDelta == 0 {
		c.AdaptDelta = d.AdaptDelta
	}
	if c.MaxTreedepth == 0 {
		c.MaxTreedepth = d.MaxTreedepth
	}
	return c
}
