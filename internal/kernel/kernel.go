package kernel

import (
	"fmt"
	"math"
	"strings"
)

type Kernel interface {
	Name() string
	// Cov returns the covariance of two locations at distance d >= 0.
	Cov(d float64) float64
}

type SquaredExp struct {
	Amp    float64
	Length float64
}

func NewSquaredExp(amp, length float64) SquaredExp {
	return SquaredExp{Amp: amp, Length: length}
}

func (k SquaredExp) Name() string { return "squared_exp" }

func (k SquaredExp) Cov(d float64) float64 {
	return k.Amp * k.Amp * math.Exp(-d*d/(2*k.Length*k.Length))
}

// Exponential is the absolute-distance kernel s² · exp(-d/ℓ).
type Exponential struct {
	Amp    float64
	Length float64
}

func (k Exponential) Name() string { return "exponential" }

func (k Exponential) Cov(d float64) float64 {
	return k.Amp * k.Amp * math.Exp(-math.Abs(d)/k.Length)
}

// Periodic is s² · exp(-2 sin²(πd/p) / ℓ²).
type Periodic struct {
	Amp    float64
	Length float64
	Period float64
}

func (k Periodic) Name() string { return "periodic" }

func (k Periodic) Cov(d float64) float64 {
	s := math.Sin(math.Pi * math.Abs(d) / k.Period)
	return k.Amp * k.Amp * math.Exp(-2*s*s/(k.Length*k.Length))
}

// Product multiplies its factors.
type Product struct {
	Factors []Kernel
}

func (k Product) Name() string {
	names := make([]string, len(k.Factors))
	for i, f := range k.Factors {
		names[i] = f.Name()
	}
	return strings.Join(names, "*")
}

func (k Product) Cov(d float64) float64 {
	v := 1.0
	for _, f := range k.Factors {
		v *= f.Cov(d)
	}
	return v
}

// Distance is the Euclidean distance between two points of equal dimension.
func Distance(a, b []float64) float64 {
	if len(a) == 1 {
		return math.Abs(a[0] - b[0])
	}
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// SqDistance is the squared Euclidean distance.
func SqDistance(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// MaxDistance returns the largest pairwise distance within points.
func MaxDistance(points [][]float64) float64 {
	max := 0.0
	for i := range points {
		for j := i + 1; j < len(points); j++ {
			if d := Distance(points[i], points[j]); d > max {
				max = d
			}
		}
	}
	return max
}

func checkParams(amp, length float64) error {
	if !(amp > 0) || !(length > 0) {
		return fmt.Errorf("kernel: amplitude and length-scale must be positive, got amp=%v length=%v", amp, length)
	}
	return nil
}
