package gp

import (
	"math"
	"math/rand/v2"
)

// deltaMax is the energy error beyond which a trajectory is divergent.
const deltaMax = 1000

type point struct {
	q, p, g []float64
	lp      float64
}

// subtree is the result of one BuildTree call.
type subtree struct {
	minus, plus point
	prop        point
	n           int
	ok          bool
	alpha       float64
	nalpha      int
}

// nuts is the No-U-Turn sampler with a diagonal metric (Hoffman & Gelman
// 2014, algorithm 6, slice variant).
type nuts struct {
	t         *target
	ws        *workspace
	rng       *rand.Rand
	invMetric []float64
	maxDepth  int

	divergent bool
	grads     int
}

func newNUTS(t *target, rng *rand.Rand, maxDepth int) *nuts {
	inv := make([]float64, t.d.dim())
	for i := range inv {
		inv[i] = 1
	}
	return &nuts{t: t, ws: t.newWorkspace(), rng: rng, invMetric: inv, maxDepth: maxDepth}
}

func (s *nuts) eval(q []float64) point {
	g := make([]float64, len(q))
	lp := s.t.logDensity(s.ws, q, g)
	s.grads++
	return point{q: q, g: g, lp: lp}
}

func (s *nuts) kinetic(p []float64) float64 {
	k := 0.0
	for i, v := range p {
		k += v * v * s.invMetric[i]
	}
	return 0.5 * k
}

func (s *nuts) momentum() []float64 {
	p := make([]float64, len(s.invMetric))
	for i := range p {
		p[i] = s.rng.NormFloat64() / math.Sqrt(s.invMetric[i])
	}
	return p
}

func (s *nuts) leapfrog(z point, eps float64) point {
	dim := len(z.q)
	p := make([]float64, dim)
	q := make([]float64, dim)
	for i := 0; i < dim; i++ {
		p[i] = z.p[i] + 0.5*eps*z.g[i]
		q[i] = z.q[i] + eps*s.invMetric[i]*p[i]
	}
	next := s.eval(q)
	for i := 0; i < dim; i++ {
		p[i] += 0.5 * eps * next.g[i]
	}
	next.p = p
	return next
}

func (s *nuts) joint(z point) float64 {
	if math.IsInf(z.lp, -1) {
		return math.Inf(-1)
	}
	return z.lp - s.kinetic(z.p)
}

// noUTurn checks the generalised criterion between the two trajectory ends.
func (s *nuts) noUTurn(minus, plus point) bool {
	fwd, bwd := 0.0, 0.0
	for i := range minus.q {
		dq := plus.q[i] - minus.q[i]
		fwd += dq * s.invMetric[i] * plus.p[i]
		bwd += dq * s.invMetric[i] * minus.p[i]
	}
	return fwd >= 0 && bwd >= 0
}

func (s *nuts) buildTree(z point, logu float64, dir float64, depth int, eps, joint0 float64) subtree {
	if depth == 0 {
		next := s.leapfrog(z, dir*eps)
		h := s.joint(next)
		st := subtree{minus: next, plus: next, prop: next, nalpha: 1}
		if logu <= h {
			st.n = 1
		}
		st.ok = logu < deltaMax+h
		if !st.ok {
			s.divergent = true
		}
		if diff := h - joint0; !math.IsNaN(diff) {
			st.alpha = math.Min(1, math.Exp(diff))
		}
		return st
	}
	st := s.buildTree(z, logu, dir, depth-1, eps, joint0)
	if !st.ok {
		return st
	}
	var inner subtree
	if dir < 0 {
		inner = s.buildTree(st.minus, logu, dir, depth-1, eps, joint0)
		st.minus = inner.minus
	} else {
		inner = s.buildTree(st.plus, logu, dir, depth-1, eps, joint0)
		st.plus = inner.plus
	}
	if total := st.n + inner.n; total > 0 && s.rng.Float64() < float64(inner.n)/float64(total) {
		st.prop = inner.prop
	}
	st.alpha += inner.alpha
	st.nalpha += inner.nalpha
	st.ok = inner.ok && s.noUTurn(st.minus, st.plus)
	st.n += inner.n
	return st
}

// transition draws the next state from cur.
func (s *nuts) transition(cur point, eps float64) (point, Iteration) {
	s.divergent = false
	cur.p = s.momentum()
	joint0 := s.joint(cur)
	logu := joint0 + math.Log(1-s.rng.Float64())

	minus, plus, next := cur, cur, cur
	n := 1
	ok := true
	depth := 0
	sumAlpha, nAlpha := 0.0, 0
	for ok && depth < s.maxDepth {
		dir := 1.0
		if s.rng.Float64() < 0.5 {
			dir = -1
		}
		var st subtree
		if dir < 0 {
			st = s.buildTree(minus, logu, dir, depth, eps, joint0)
			minus = st.minus
		} else {
			st = s.buildTree(plus, logu, dir, depth, eps, joint0)
			plus = st.plus
		}
		if st.ok && s.rng.Float64() < float64(st.n)/float64(n) {
			next = st.prop
		}
		n += st.n
		sumAlpha += st.alpha
		nAlpha += st.nalpha
		ok = st.ok && s.noUTurn(minus, plus)
		depth++
	}
	accept := 0.0
	if nAlpha > 0 {
		accept = sumAlpha / float64(nAlpha)
	}
	return next, Iteration{
		AcceptStat: accept,
		Depth:      depth,
		Divergent:  s.divergent,
		StepSize:   eps,
		MaxDepth:   s.maxDepth,
	}
}

// initialStepSize doubles or halves eps until the acceptance probability
// of a single leapfrog step crosses 0.5.
func (s *nuts) initialStepSize(z point, eps float64) float64 {
	logRatio := func(eps float64) float64 {
		z.p = s.momentum()
		h0 := s.joint(z)
		next := s.leapfrog(z, eps)
		r := s.joint(next) - h0
		if math.IsNaN(r) {
			return math.Inf(-1)
		}
		return r
	}
	r := logRatio(eps)
	dir := 1.0
	if r < math.Log(0.5) {
		dir = -1
	}
	for i := 0; i < 100; i++ {
		if dir > 0 && r <= math.Log(0.5) {
			break
		}
		if dir < 0 && r >= math.Log(0.5) {
			break
		}
		next := eps * math.Pow(2, dir)
		if next < 1e-10 || next > 1e7 {
			break
		}
		eps = next
		r = logRatio(eps)
	}
	return eps
}
