package gp

import "math"

// dualAveraging tunes the leapfrog step size towards a target acceptance
// statistic (Hoffman & Gelman 2014, section 3.2).
type dualAveraging struct {
	delta float64
	gamma float64
	t0    float64
	kappa float64

	mu        float64
	hbar      float64
	logEps    float64
	logEpsBar float64
	m         int
}

func newDualAveraging(delta float64) *dualAveraging {
	return &dualAveraging{delta: delta, gamma: 0.05, t0: 10, kappa: 0.75}
}

func (da *dualAveraging) restart(eps float64) {
	da.mu = math.Log(10 * eps)
	da.hbar = 0
	da.logEps = math.Log(eps)
	da.logEpsBar = 0
	da.m = 0
}

// update folds in one acceptance statistic and returns the next step size.
func (da *dualAveraging) update(accept float64) float64 {
	if math.IsNaN(accept) {
		accept = 0
	}
	if accept > 1 {
		accept = 1
	}
	da.m++
	m := float64(da.m)
	eta := 1 / (m + da.t0)
	da.hbar = (1-eta)*da.hbar + eta*(da.delta-accept)
	da.logEps = da.mu - math.Sqrt(m)/da.gamma*da.hbar
	w := math.Pow(m, -da.kappa)
	da.logEpsBar = w*da.logEps + (1-w)*da.logEpsBar
	return math.Exp(da.logEps)
}

// final is the averaged step size used after warmup.
func (da *dualAveraging) final() float64 {
	if da.m == 0 {
		return math.Exp(da.logEps)
	}
	return math.Exp(da.logEpsBar)
}

// welford accumulates per-dimension running variance.
type welford struct {
	n    int
	mean []float64
	m2   []float64
}

func newWelford(dim int) *welford {
	return &welford{mean: make([]float64, dim), m2: make([]float64, dim)}
}

func (w *welford) add(x []float64) {
	w.n++
	for i, v := range x {
		delta := v - w.mean[i]
		w.mean[i] += delta / float64(w.n)
		w.m2[i] += delta * (v - w.mean[i])
	}
}

func (w *welford) reset() {
	w.n = 0
	for i := range w.mean {
		w.mean[i] = 0
		w.m2[i] = 0
	}
}

// regularized returns the variance shrunk towards 1e-3.
func (w *welford) regularized() []float64 {
	out := make([]float64, len(w.mean))
	n := float64(w.n)
	for i := range out {
		v := w.m2[i] / (n - 1)
		out[i] = (n/(n+5))*v + 1e-3*(5/(n+5))
	}
	return out
}

// windows schedules diagonal metric adaptation during warmup: a fast
// initial buffer, doubling slow windows, and a fast terminal buffer.
type windows struct {
	warmup     int
	initBuffer int
	termBuffer int
	size       int
	next       int
	enabled    bool
}

func newWindows(warmup int) *windows {
	w := &windows{warmup: warmup, initBuffer: 75, termBuffer: 50, size: 25}
	if warmup < 20 {
		return w
	}
	w.enabled = true
	if w.initBuffer+w.size+w.termBuffer > warmup {
		w.initBuffer = int(0.15 * float64(warmup))
		w.termBuffer = int(0.1 * float64(warmup))
		w.size = warmup - (w.initBuffer + w.termBuffer)
	}
	w.next = w.initBuffer + w.size - 1
	return w
}

func (w *windows) inWindow(it int) bool {
	return w.enabled && it >= w.initBuffer && it < w.warmup-w.termBuffer && it != w.warmup
}

func (w *windows) endOfWindow(it int) bool {
	return w.enabled && it == w.next && it != w.warmup
}

// advance schedules the window after the one ending at it.
func (w *windows) advance(it int) {
	last := w.warmup - w.termBuffer - 1
	if w.next == last {
		return
	}
	w.size *= 2
	w.next = it + w.size
	if w.next != last && w.next+2*w.size >= w.warmup-w.termBuffer {
		w.next = last
	}
}
