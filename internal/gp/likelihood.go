package gp

import (
	"math"

	"github.com/san-kum/phongp/internal/kernel"
	"github.com/san-kum/phongp/internal/prior"
	"gonum.org/v1/gonum/mat"
)

const log2Pi = 1.8378770664093453

// target evaluates the log posterior density and its gradient on the
// unconstrained scale.
type target struct {
	d      *design
	priors []prior.Prior
	jitter float64
}

func newTarget(d *design, set prior.Set, jitter float64) (*target, error) {
	classes := d.paramClasses()
	t := &target{d: d, priors: make([]prior.Prior, len(classes)), jitter: jitter}
	for i, c := range classes {
		p, ok := set[c]
		if !ok {
			return nil, set.Check([]string{c})
		}
		t.priors[i] = p
	}
	return t, nil
}

// factor is the covariance factorisation for one parameter value.
type factor struct {
	chol  mat.Cholesky
	cov   *mat.SymDense
	resid *mat.VecDense
	alpha *mat.VecDense
	// kb[b] is block b's m×m covariance.
	kb []*mat.SymDense
	// tau2 is the diagonal noise term σ² + jitter.
	tau2 float64
}

func newFactor(d *design) *factor {
	f := &factor{
		cov:   mat.NewSymDense(d.n, nil),
		resid: mat.NewVecDense(d.n, nil),
		alpha: mat.NewVecDense(d.n, nil),
		kb:    make([]*mat.SymDense, len(d.blocks)),
	}
	for b := range d.blocks {
		f.kb[b] = mat.NewSymDense(d.blocks[b].size(), nil)
	}
	return f
}

// compute fills the factorisation for constrained parameters theta. It
// reports false when the covariance is not positive definite.
func (f *factor) compute(d *design, theta []float64, jitter float64) bool {
	n := d.n
	p := len(d.coefNames)
	for i := 0; i < n; i++ {
		mu := 0.0
		for k := 0; k < p; k++ {
			mu += d.x.At(i, k) * theta[k]
		}
		f.resid.SetVec(i, d.y[i]-mu)
		for j := i; j < n; j++ {
			f.cov.SetSym(i, j, 0)
		}
	}
	for b, bl := range d.blocks {
		kb := f.kb[b]
		kernel.Fill(kb, bl.points, kernel.NewSquaredExp(theta[d.sdIndex(b)], theta[d.lscaleIndex(b)]))
		m := bl.size()
		for ii := 0; ii < m; ii++ {
			ri := bl.rows[ii]
			for jj := ii; jj < m; jj++ {
				rj := bl.rows[jj]
				f.cov.SetSym(ri, rj, f.cov.At(ri, rj)+kb.At(ii, jj))
			}
		}
	}
	sigma := theta[d.sigmaIndex()]
	f.tau2 = sigma*sigma + jitter
	for i := 0; i < n; i++ {
		f.cov.SetSym(i, i, f.cov.At(i, i)+f.tau2)
	}
	if ok := f.chol.Factorize(f.cov); !ok {
		return false
	}
	if err := f.chol.SolveVecTo(f.alpha, f.resid); err != nil {
		return false
	}
	return true
}

// logLik is the marginal Gaussian log likelihood of the last compute call.
func (f *factor) logLik(n int) float64 {
	return -0.5*mat.Dot(f.resid, f.alpha) - 0.5*f.chol.LogDet() - 0.5*float64(n)*log2Pi
}

// workspace holds per-chain buffers.
type workspace struct {
	f     *factor
	theta []float64
	inv   *mat.SymDense
}

func (t *target) newWorkspace() *workspace {
	return &workspace{
		f:     newFactor(t.d),
		theta: make([]float64, t.d.dim()),
		inv:   mat.NewSymDense(t.d.n, nil),
	}
}

// logDensity returns log p(q | y) up to a constant and writes its gradient
// into grad. Invalid points return -Inf.
func (t *target) logDensity(ws *workspace, q, grad []float64) float64 {
	d := t.d
	for i, v := range q {
		if d.positive(i) {
			ws.theta[i] = math.Exp(v)
		} else {
			ws.theta[i] = v
		}
	}
	for i := range grad {
		grad[i] = 0
	}
	if !ws.f.compute(d, ws.theta, t.jitter) {
		return math.Inf(-1)
	}
	lp := ws.f.logLik(d.n)

	p := len(d.coefNames)
	alpha := ws.f.alpha.RawVector().Data
	if p > 0 {
		g := mat.NewVecDense(p, grad[:p])
		g.MulVec(d.x.T(), ws.f.alpha)
	}

	if err := ws.f.chol.InverseTo(ws.inv); err != nil {
		return math.Inf(-1)
	}
	raw := ws.inv.RawSymmetric()
	cinv := func(i, j int) float64 {
		if i > j {
			i, j = j, i
		}
		return raw.Data[i*raw.Stride+j]
	}

	for b, bl := range d.blocks {
		m := bl.size()
		kb := ws.f.kb[b]
		ls := ws.theta[d.lscaleIndex(b)]
		inv2 := 1 / (ls * ls)
		gs, gl := 0.0, 0.0
		for ii := 0; ii < m; ii++ {
			ri := bl.rows[ii]
			for jj := 0; jj < m; jj++ {
				rj := bl.rows[jj]
				w := alpha[ri]*alpha[rj] - cinv(ri, rj)
				k := kb.At(ii, jj)
				gs += w * k
				gl += w * k * bl.d2[ii*m+jj] * inv2
			}
		}
		grad[d.sdIndex(b)] = gs
		grad[d.lscaleIndex(b)] = 0.5 * gl
	}

	sigma := ws.theta[d.sigmaIndex()]
	tr := 0.0
	for i := 0; i < d.n; i++ {
		tr += alpha[i]*alpha[i] - cinv(i, i)
	}
	grad[d.sigmaIndex()] = sigma * sigma * tr

	for i, pr := range t.priors {
		x := ws.theta[i]
		if d.positive(i) {
			lp += pr.LogDensity(x) + q[i]
			grad[i] += pr.GradLog(x)*x + 1
		} else {
			lp += pr.LogDensity(x)
			grad[i] += pr.GradLog(x)
		}
	}
	if math.IsNaN(lp) {
		return math.Inf(-1)
	}
	for _, g := range grad {
		if math.IsNaN(g) || math.IsInf(g, 0) {
			return math.Inf(-1)
		}
	}
	return lp
}
