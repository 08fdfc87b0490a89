// Package diagnostics computes MCMC convergence diagnostics: split R-hat,
// bulk effective sample size, divergences and tree depth saturation.
// Problems are reported as warnings; nothing here stops a workflow.
package diagnostics

import (
	"fmt"
	"math"
	"sort"

	"github.com/mjibson/go-dsp/fft"
	"github.com/san-kum/phongp/internal/gp"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Thresholds are the limits beyond which a diagnostic is flagged.
type Thresholds struct {
	MaxRhat float64 `yaml:"max_rhat" json:"max_rhat"`
	// MinESSPerChain is multiplied by the chain count.
	MinESSPerChain float64 `yaml:"min_ess_per_chain" json:"min_ess_per_chain"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{MaxRhat: 1.01, MinESSPerChain: 100}
}

// Param is one row of the parameter summary table.
type Param struct {
	Name string  `json:"name"`
	Mean float64 `json:"mean"`
	SD   float64 `json:"sd"`
	Q025 float64 `json:"q2.5"`
	Q975 float64 `json:"q97.5"`
	Rhat float64 `json:"rhat"`
	ESS  float64 `json:"ess_bulk"`
}

// Report collects the diagnostics of one fitted model.
type Report struct {
	Model         string     `json:"model"`
	Chains        int        `json:"chains"`
	DrawsPerChain int        `json:"draws_per_chain"`
	Params        []Param    `json:"params"`
	Divergent     int        `json:"divergent"`
	TreedepthHits int        `json:"treedepth_hits"`
	MeanAccept    float64    `json:"mean_accept_stat"`
	Thresholds    Thresholds `json:"thresholds"`
}

type Option func(*Thresholds)

func WithMaxRhat(v float64) Option {
	return func(t *Thresholds) { t.MaxRhat = v }
}

func WithMinESSPerChain(v float64) Option {
	return func(t *Thresholds) { t.MinESSPerChain = v }
}

// Diagnose checks a fitted model against the default thresholds adjusted
// by opts.
func Diagnose(m *gp.Model, opts ...Option) *Report {
	th := DefaultThresholds()
	for _, o := range opts {
		o(&th)
	}
	r := Check(m.Name(), m.Draws(), m.ChainStats(), th)
	return &r
}

// Check diagnoses the draws and sampler statistics of a model.
func Check(model string, draws *gp.Draws, stats []gp.ChainStats, th Thresholds) Report {
	r := Report{
		Model:         model,
		Chains:        draws.NumChains(),
		DrawsPerChain: draws.PerChain(),
		Thresholds:    th,
	}
	for _, name := range draws.Names {
		chains, _ := draws.Param(name)
		p := Param{Name: name, Rhat: Rhat(chains), ESS: ESS(chains)}
		var all []float64
		for _, c := range chains {
			all = append(all, c...)
		}
		if len(all) > 0 {
			p.Mean, p.SD = stat.MeanStdDev(all, nil)
			sort.Float64s(all)
			p.Q025 = stat.Quantile(0.025, stat.LinInterp, all, nil)
			p.Q975 = stat.Quantile(0.975, stat.LinInterp, all, nil)
		}
		r.Params = append(r.Params, p)
	}
	for _, s := range stats {
		r.Divergent += s.Divergent
		r.TreedepthHits += s.TreedepthHits
		r.MeanAccept += s.MeanAccept / float64(len(stats))
	}
	return r
}

// Warnings lists every flagged diagnostic. An empty list means no problem
// was detected.
func (r Report) Warnings() []string {
	var out []string
	minESS := r.Thresholds.MinESSPerChain * float64(r.Chains)
	for _, p := range r.Params {
		if math.IsNaN(p.Rhat) || p.Rhat > r.Thresholds.MaxRhat {
			out = append(out, fmt.Sprintf("%s: R-hat %.3f exceeds %.2f", p.Name, p.Rhat, r.Thresholds.MaxRhat))
		}
		if math.IsNaN(p.ESS) || p.ESS < minESS {
			out = append(out, fmt.Sprintf("%s: bulk ESS %.0f below %.0f", p.Name, p.ESS, minESS))
		}
	}
	if r.Divergent > 0 {
		out = append(out, fmt.Sprintf("%d divergent transitions after warmup; consider raising adapt_delta", r.Divergent))
	}
	if r.TreedepthHits > 0 {
		out = append(out, fmt.Sprintf("%d transitions hit the maximum tree depth; consider raising max_treedepth", r.TreedepthHits))
	}
	return out
}

// Converged reports whether no diagnostic was flagged.
func (r Report) Converged() bool { return len(r.Warnings()) == 0 }

// MaxRhat is the largest R-hat across parameters.
func (r Report) MaxRhat() float64 {
	max := math.Inf(-1)
	for _, p := range r.Params {
		if p.Rhat > max || math.IsNaN(p.Rhat) {
			max = p.Rhat
		}
	}
	return max
}

// MinESS is the smallest bulk ESS across parameters.
func (r Report) MinESS() float64 {
	min := math.Inf(1)
	for _, p := range r.Params {
		if p.ESS < min || math.IsNaN(p.ESS) {
			min = p.ESS
		}
	}
	return min
}

// split halves every chain, dropping the middle draw of odd lengths.
func split(chains [][]float64) [][]float64 {
	out := make([][]float64, 0, 2*len(chains))
	for _, c := range chains {
		half := len(c) / 2
		out = append(out, c[:half], c[len(c)-half:])
	}
	return out
}

// Rhat is the split potential scale reduction factor. Values near 1
// indicate the chains agree.
func Rhat(chains [][]float64) float64 {
	s := split(chains)
	m := len(s)
	if m < 2 || len(s[0]) < 2 {
		return math.NaN()
	}
	n := float64(len(s[0]))
	means := make([]float64, m)
	vars := make([]float64, m)
	for j, c := range s {
		means[j], vars[j] = stat.MeanVariance(c, nil)
	}
	w := stat.Mean(vars, nil)
	b := n * stat.Variance(means, nil)
	if w == 0 {
		if b == 0 {
			return 1
		}
		return math.Inf(1)
	}
	varPlus := (n-1)/n*w + b/n
	return math.Sqrt(varPlus / w)
}

// ESS is the bulk effective sample size: split chains of rank-normalized
// draws, FFT autocorrelations, Geyer's initial monotone sequence.
func ESS(chains [][]float64) float64 {
	return essRaw(rankNormalize(chains))
}

// rankNormalize replaces every draw by the normal quantile of its pooled
// fractional rank, with ties given their average rank.
func rankNormalize(chains [][]float64) [][]float64 {
	type draw struct {
		v    float64
		c, i int
	}
	var all []draw
	for c, chain := range chains {
		for i, v := range chain {
			all = append(all, draw{v, c, i})
		}
	}
	sort.Slice(all, func(a, b int) bool { return all[a].v < all[b].v })

	out := make([][]float64, len(chains))
	for c, chain := range chains {
		out[c] = make([]float64, len(chain))
	}
	total := float64(len(all))
	for lo := 0; lo < len(all); {
		hi := lo + 1
		for hi < len(all) && all[hi].v == all[lo].v {
			hi++
		}
		rank := float64(lo+hi+1) / 2
		z := distuv.UnitNormal.Quantile((rank - 3.0/8) / (total + 1.0/4))
		for _, d := range all[lo:hi] {
			out[d.c][d.i] = z
		}
		lo = hi
	}
	return out
}

func essRaw(chains [][]float64) float64 {
	s := split(chains)
	m := len(s)
	if m == 0 || len(s[0]) < 4 {
		return math.NaN()
	}
	n := len(s[0])

	acov := make([][]float64, m)
	means := make([]float64, m)
	meanVar := 0.0
	for j, c := range s {
		acov[j] = autocovariance(c)
		means[j] = stat.Mean(c, nil)
		meanVar += acov[j][0] * float64(n) / float64(n-1)
	}
	meanVar /= float64(m)
	varPlus := meanVar * float64(n-1) / float64(n)
	if m > 1 {
		varPlus += stat.Variance(means, nil)
	}
	if varPlus == 0 {
		return math.NaN()
	}

	rhoAt := func(t int) float64 {
		sum := 0.0
		for j := range acov {
			sum += acov[j][t]
		}
		return 1 - (meanVar-sum/float64(m))/varPlus
	}

	rho := make([]float64, n)
	rho[0] = 1
	rho[1] = rhoAt(1)
	even, odd := rho[0], rho[1]
	t := 1
	for t < n-4 && even+odd > 0 {
		even = rhoAt(t + 1)
		odd = rhoAt(t + 2)
		if even+odd >= 0 {
			rho[t+1] = even
			rho[t+2] = odd
		}
		t += 2
	}
	maxT := t
	if even > 0 && maxT+1 < n {
		rho[maxT+1] = even
	}

	for t := 1; t <= maxT-3; t += 2 {
		if rho[t+1]+rho[t+2] > rho[t-1]+rho[t] {
			rho[t+1] = (rho[t-1] + rho[t]) / 2
			rho[t+2] = rho[t+1]
		}
	}

	total := float64(m * n)
	sum := 0.0
	for t := 0; t < maxT; t++ {
		sum += rho[t]
	}
	tau := -1 + 2*sum
	if maxT+1 < n {
		tau += rho[maxT+1]
	}
	tau = math.Max(tau, 1/math.Log10(total))
	return total / tau
}

// autocovariance returns the biased autocovariance of x at every lag,
// computed through a zero-padded FFT.
func autocovariance(x []float64) []float64 {
	n := len(x)
	mean := stat.Mean(x, nil)
	size := 1
	for size < 2*n {
		size <<= 1
	}
	padded := make([]float64, size)
	for i, v := range x {
		padded[i] = v - mean
	}
	power := fft.FFTReal(padded)
	for i, c := range power {
		power[i] = complex(real(c)*real(c)+imag(c)*imag(c), 0)
	}
	back := fft.IFFT(power)
	out := make([]float64, n)
	for i := range out {
		out[i] = real(back[i]) / float64(n)
	}
	return out
}
