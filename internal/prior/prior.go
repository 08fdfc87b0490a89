// Package prior parses and evaluates prior distributions assigned to
// parameter classes (Intercept, b, sdgp, lscale, sigma).
package prior

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"
)

var (
	// ErrMissingPrior indicates a parameter class referenced by a formula
	// without an assigned prior.
	ErrMissingPrior = errors.New("prior: missing prior for parameter class")

	// ErrUnknownFamily indicates an unsupported distribution name.
	ErrUnknownFamily = errors.New("prior: unknown distribution")

	// ErrBadArgs indicates invalid or missing distribution arguments.
	ErrBadArgs = errors.New("prior: invalid distribution arguments")
)

// Prior is a univariate distribution used as a prior density.
type Prior interface {
	LogDensity(x float64) float64
	// GradLog is the derivative of LogDensity with respect to x.
	GradLog(x float64) float64
	Rand(src rand.Source) float64
	String() string
}

type Normal struct{ Mu, Sigma float64 }

func (p Normal) LogDensity(x float64) float64 {
	return distuv.Normal{Mu: p.Mu, Sigma: p.Sigma}.LogProb(x)
}
func (p Normal) GradLog(x float64) float64 { return -(x - p.Mu) / (p.Sigma * p.Sigma) }
func (p Normal) Rand(src rand.Source) float64 {
	return distuv.Normal{Mu: p.Mu, Sigma: p.Sigma, Src: src}.Rand()
}
func (p Normal) String() string { return fmt.Sprintf("normal(%g, %g)", p.Mu, p.Sigma) }

type StudentT struct{ Nu, Mu, Sigma float64 }

func (p StudentT) LogDensity(x float64) float64 {
	return distuv.StudentsT{Mu: p.Mu, Sigma: p.Sigma, Nu: p.Nu}.LogProb(x)
}
func (p StudentT) GradLog(x float64) float64 {
	d := x - p.Mu
	return -(p.Nu + 1) * d / (p.Nu*p.Sigma*p.Sigma + d*d)
}
func (p StudentT) Rand(src rand.Source) float64 {
	return distuv.StudentsT{Mu: p.Mu, Sigma: p.Sigma, Nu: p.Nu, Src: src}.Rand()
}
func (p StudentT) String() string {
	if p.Nu == 1 {
		return fmt.Sprintf("cauchy(%g, %g)", p.Mu, p.Sigma)
	}
	return fmt.Sprintf("student_t(%g, %g, %g)", p.Nu, p.Mu, p.Sigma)
}

type Exponential struct{ Rate float64 }

func (p Exponential) LogDensity(x float64) float64 {
	return distuv.Exponential{Rate: p.Rate}.LogProb(x)
}
func (p Exponential) GradLog(x float64) float64 { return -p.Rate }
func (p Exponential) Rand(src rand.Source) float64 {
	return distuv.Exponential{Rate: p.Rate, Src: src}.Rand()
}
func (p Exponential) String() string { return fmt.Sprintf("exponential(%g)", p.Rate) }

type Gamma struct{ Shape, Rate float64 }

func (p Gamma) LogDensity(x float64) float64 {
	return distuv.Gamma{Alpha: p.Shape, Beta: p.Rate}.LogProb(x)
}
func (p Gamma) GradLog(x float64) float64 { return (p.Shape-1)/x - p.Rate }
func (p Gamma) Rand(src rand.Source) float64 {
	return distuv.Gamma{Alpha: p.Shape, Beta: p.Rate, Src: src}.Rand()
}
func (p Gamma) String() string { return fmt.Sprintf("gamma(%g, %g)", p.Shape, p.Rate) }

// InvGamma is the inverse-gamma distribution with shape alpha and scale beta,
// the usual length-scale prior.
type InvGamma struct{ Shape, Scale float64 }

func (p InvGamma) LogDensity(x float64) float64 {
	if x <= 0 {
		return math.Inf(-1)
	}
	lg, _ := math.Lgamma(p.Shape)
	return p.Shape*math.Log(p.Scale) - lg - (p.Shape+1)*math.Log(x) - p.Scale/x
}
func (p InvGamma) GradLog(x float64) float64 { return -(p.Shape+1)/x + p.Scale/(x*x) }
func (p InvGamma) Rand(src rand.Source) float64 {
	return 1 / distuv.Gamma{Alpha: p.Shape, Beta: p.Scale, Src: src}.Rand()
}
func (p InvGamma) String() string { return fmt.Sprintf("inv_gamma(%g, %g)", p.Shape, p.Scale) }

type LogNormal struct{ Mu, Sigma float64 }

func (p LogNormal) LogDensity(x float64) float64 {
	return distuv.LogNormal{Mu: p.Mu, Sigma: p.Sigma}.LogProb(x)
}
func (p LogNormal) GradLog(x float64) float64 {
	return -1/x - (math.Log(x)-p.Mu)/(p.Sigma*p.Sigma*x)
}
func (p LogNormal) Rand(src rand.Source) float64 {
	return distuv.LogNormal{Mu: p.Mu, Sigma: p.Sigma, Src: src}.Rand()
}
func (p LogNormal) String() string { return fmt.Sprintf("lognormal(%g, %g)", p.Mu, p.Sigma) }

type Uniform struct{ Lo, Hi float64 }

func (p Uniform) LogDensity(x float64) float64 {
	return distuv.Uniform{Min: p.Lo, Max: p.Hi}.LogProb(x)
}
func (p Uniform) GradLog(x float64) float64 { return 0 }
func (p Uniform) Rand(src rand.Source) float64 {
	return distuv.Uniform{Min: p.Lo, Max: p.Hi, Src: src}.Rand()
}
func (p Uniform) String() string { return fmt.Sprintf("uniform(%g, %g)", p.Lo, p.Hi) }

// Parse reads a distribution written as name(arg, ...), e.g.
// "student_t(3, 0, 2.5)" or "inv_gamma(1.5, 0.05)".
func Parse(s string) (Prior, error) {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '(')
	if open <= 0 || !strings.HasSuffix(s, ")") {
		return nil, fmt.Errorf("%w: %q", ErrBadArgs, s)
	}
	name := strings.ToLower(strings.TrimSpace(s[:open]))
	var args []float64
	if inner := strings.TrimSpace(s[open+1 : len(s)-1]); inner != "" {
		for _, raw := range strings.Split(inner, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %q: %v", ErrBadArgs, s, err)
			}
			args = append(args, v)
		}
	}

	want := map[string]int{
		"normal": 2, "student_t": 3, "cauchy": 2, "exponential": 1,
		"gamma": 2, "inv_gamma": 2, "lognormal": 2, "uniform": 2,
	}
	n, ok := want[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFamily, name)
	}
	if len(args) != n {
		return nil, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrBadArgs, name, n, len(args))
	}

	positive := func(vals ...float64) error {
		for _, v := range vals {
			if !(v > 0) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: %q needs positive scale/shape parameters", ErrBadArgs, s)
			}
		}
		return nil
	}

	switch name {
	case "normal":
		return Normal{Mu: args[0], Sigma: args[1]}, positive(args[1])
	case "student_t":
		return StudentT{Nu: args[0], Mu: args[1], Sigma: args[2]}, positive(args[0], args[2])
	case "cauchy":
		return StudentT{Nu: 1, Mu: args[0], Sigma: args[1]}, positive(args[1])
	case "exponential":
		return Exponential{Rate: args[0]}, positive(args[0])
	case "gamma":
		return Gamma{Shape: args[0], Rate: args[1]}, positive(args...)
	case "inv_gamma":
		return InvGamma{Shape: args[0], Scale: args[1]}, positive(args...)
	case "lognormal":
		return LogNormal{Mu: args[0], Sigma: args[1]}, positive(args[1])
	default:
		if !(args[1] > args[0]) {
			return nil, fmt.Errorf("%w: uniform needs lo < hi", ErrBadArgs)
		}
		return Uniform{Lo: args[0], Hi: args[1]}, nil
	}
}

// RandPositive draws from p restricted to x > 0, as used for the
// lower-bounded classes.
func RandPositive(p Prior, src rand.Source) float64 {
	for i := 0; i < 100; i++ {
		if v := p.Rand(src); v > 0 {
			return v
		}
	}
	return math.Abs(p.Rand(src))
}
