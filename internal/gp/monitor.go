package gp

// Iteration is what a sampler transition reports to monitors.
type Iteration struct {
	Warmup     bool
	AcceptStat float64
	Depth      int
	Divergent  bool
	StepSize   float64
	MaxDepth   int
}

// Monitor accumulates one statistic over post-warmup iterations.
type Monitor interface {
	Name() string
	Observe(it Iteration)
	Value() float64
	Reset()
}

type acceptance struct {
	sum     float64
	samples int
}

func (a *acceptance) Name() string { return "accept_stat" }

func (a *acceptance) Observe(it Iteration) {
	if it.Warmup {
		return
	}
	a.sum += it.AcceptStat
	a.samples++
}

func (a *acceptance) Value() float64 {
	if a.samples == 0 {
		return 0
	}
	return a.sum / float64(a.samples)
}

func (a *acceptance) Reset() {
	a.sum = 0
	a.samples = 0
}

type divergences struct{ count int }

func (d *divergences) Name() string { return "divergent" }

func (d *divergences) Observe(it Iteration) {
	if !it.Warmup && it.Divergent {
		d.count++
	}
}

func (d *divergences) Value() float64 { return float64(d.count) }
func (d *divergences) Reset()         { d.count = 0 }

// treedepthHits counts transitions that stopped at the depth limit.
type treedepthHits struct{ count int }

func (t *treedepthHits) Name() string { return "treedepth_hits" }

func (t *treedepthHits) Observe(it Iteration) {
	if !it.Warmup && it.Depth >= it.MaxDepth {
		t.count++
	}
}

func (t *treedepthHits) Value() float64 { return float64(t.count) }
func (t *treedepthHits) Reset()         { t.count = 0 }

type meanDepth struct {
	sum     int
	samples int
}

func (m *meanDepth) Name() string { return "treedepth" }

func (m *meanDepth) Observe(it Iteration) {
	if it.Warmup {
		return
	}
	m.sum += it.Depth
	m.samples++
}

func (m *meanDepth) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return float64(m.sum) / float64(m.samples)
}

func (m *meanDepth) Reset() {
	m.sum = 0
	m.samples = 0
}

func defaultMonitors() []Monitor {
	return []Monitor{&acceptance{}, &divergences{}, &treedepthHits{}, &meanDepth{}}
}

// ChainStats summarises one chain's sampler behaviour after warmup.
type ChainStats struct {
	Chain         int       `json:"chain"`
	StepSize      float64   `json:"step_size"`
	InvMetric     []float64 `json:"inv_metric"`
	MeanAccept    float64   `json:"mean_accept_stat"`
	Divergent     int       `json:"divergent"`
	TreedepthHits int       `json:"treedepth_hits"`
	MeanTreedepth float64   `json:"mean_treedepth"`
	Gradients     int       `json:"gradient_evaluations"`
}

func statsFrom(chain int, monitors []Monitor) ChainStats {
	s := ChainStats{Chain: chain}
	for _, m := range monitors {
		switch m.Name() {
		case "accept_stat":
			s.MeanAccept = m.Value()
		case "divergent":
			s.Divergent = int(m.Value())
		case "treedepth_hits":
			s.TreedepthHits = int(m.Value())
		case "treedepth":
			s.MeanTreedepth = m.Value()
		}
	}
	return s
}
