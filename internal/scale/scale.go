// Package scale implements the z-transform used for the response variable.
//
// A [Params] value is computed once from the full raw dataset and passed
// explicitly to every transform and back-transform. Recomputing it from a
// filtered subset silently shifts every back-transformed prediction.
package scale

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Params holds the location and scale of a z-transform.
type Params struct {
	Mu    float64 `json:"mu" yaml:"mu"`
	Sigma float64 `json:"sigma" yaml:"sigma"`
}

// Fit computes the mean and sample standard deviation of values.
// NaN entries are ignored.
func Fit(values []float64) (Params, error) {
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	if len(clean) < 2 {
		return Params{}, fmt.Errorf("%w: need at least 2 values, got %d", ErrDegenerateScale, len(clean))
	}
	mu, sd := stat.MeanStdDev(clean, nil)
	p := Params{Mu: mu, Sigma: sd}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

func (p Params) Validate() error {
	if p.Sigma <= 0 || math.IsNaN(p.Sigma) || math.IsInf(p.Sigma, 0) {
		return fmt.Errorf("%w: sigma=%v", ErrDegenerateScale, p.Sigma)
	}
	if math.IsNaN(p.Mu) || math.IsInf(p.Mu, 0) {
		return fmt.Errorf("%w: mu=%v", ErrDegenerateScale, p.Mu)
	}
	return nil
}

// Standardize returns (x - mu) / sigma.
func (p Params) Standardize(x float64) float64 {
	return (x - p.Mu) / p.Sigma
}

// Destandardize returns z*sigma + mu.
func (p Params) Destandardize(z float64) float64 {
	return z*p.Sigma + p.Mu
}

// DestandardizeSD maps a standard deviation on the z scale back to the
// measurement scale. Location does not apply.
func (p Params) DestandardizeSD(sd float64) float64 {
	return sd * p.Sigma
}

func (p Params) StandardizeAll(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = p.Standardize(x)
	}
	return out
}

func (p Params) DestandardizeAll(zs []float64) []float64 {
	out := make([]float64, len(zs))
	for i, z := range zs {
		out[i] = p.Destandardize(z)
	}
	return out
}

func (p Params) String() string {
	return fmt.Sprintf("mu=%.4f sigma=%.4f", p.Mu, p.Sigma)
}
