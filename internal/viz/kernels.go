package viz

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/phongp/internal/dataset"
	"github.com/san-kum/phongp/internal/kernel"
	"github.com/san-kum/phongp/internal/prior"
)

// KernelDraw is one hypothetical amplitude and length-scale pair.
type KernelDraw struct {
	Amp, Length float64
}

// DrawKernels samples n (sdgp, lscale) pairs from the priors. Both classes
// are positive, so draws are folded at zero.
func DrawKernels(priors prior.Set, n int, seed uint64) ([]KernelDraw, error) {
	if err := priors.Check([]string{"sdgp", "lscale"}); err != nil {
		return nil, err
	}
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	out := make([]KernelDraw, 0, n)
	for len(out) < n {
		d := KernelDraw{
			Amp:    math.Abs(priors["sdgp"].Rand(src)),
			Length: math.Abs(priors["lscale"].Rand(src)),
		}
		if d.Amp > 0 && d.Length > 0 && !math.IsInf(d.Amp, 0) && !math.IsInf(d.Length, 0) {
			out = append(out, d)
		}
	}
	return out, nil
}

// KernelCurves evaluates k(d) on n distances in [0, maxDist] for each draw.
func KernelCurves(reg *kernel.Registry, name string, draws []KernelDraw, params map[string]float64, maxDist float64, n int) ([][]float64, error) {
	ds := dataset.Seq(0, maxDist, n)
	out := make([][]float64, len(draws))
	for i, d := range draws {
		p := map[string]float64{"amp": d.Amp, "length": d.Length}
		for k, v := range params {
			p[k] = v
		}
		k, err := reg.Get(name, p)
		if err != nil {
			return nil, err
		}
		out[i] = make([]float64, n)
		for j, x := range ds {
			out[i][j] = k.Cov(x)
		}
	}
	return out, nil
}

// PlotKernels renders covariance curves on one chart.
func PlotKernels(curves [][]float64, maxDist float64, caption string, width, height int) string {
	return asciigraph.PlotMany(curves,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Precision(2),
		asciigraph.Caption(fmt.Sprintf("%s  (distance 0 .. %.3g)", caption, maxDist)),
	)
}
