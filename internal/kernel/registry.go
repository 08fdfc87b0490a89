package kernel

import (
	"fmt"
	"sort"
)

// Registry maps kernel names to constructors taking a parameter map
// ("amp", "length", "period").
type Registry struct {
	kernels map[string]func(map[string]float64) (Kernel, error)
}

func NewRegistry() *Registry {
	r := &Registry{
		kernels: make(map[string]func(map[string]float64) (Kernel, error)),
	}

	r.kernels["squared_exp"] = func(p map[string]float64) (Kernel, error) {
		if err := checkParams(p["amp"], p["length"]); err != nil {
			return nil, err
		}
		return SquaredExp{Amp: p["amp"], Length: p["length"]}, nil
	}
	r.kernels["exponential"] = func(p map[string]float64) (Kernel, error) {
		if err := checkParams(p["amp"], p["length"]); err != nil {
			return nil, err
		}
		return Exponential{Amp: p["amp"], Length: p["length"]}, nil
	}
	r.kernels["periodic"] = func(p map[string]float64) (Kernel, error) {
		if err := checkParams(p["amp"], p["length"]); err != nil {
			return nil, err
		}
		period := p["period"]
		if !(period > 0) {
			return nil, fmt.Errorf("kernel: periodic kernel needs a positive period, got %v", period)
		}
		return Periodic{Amp: p["amp"], Length: p["length"], Period: period}, nil
	}
	// squared-exponential times periodic: locally periodic
	r.kernels["local_periodic"] = func(p map[string]float64) (Kernel, error) {
		se, err := r.Get("squared_exp", p)
		if err != nil {
			return nil, err
		}
		per, err := r.Get("periodic", map[string]float64{"amp": 1, "length": p["length"], "period": p["period"]})
		if err != nil {
			return nil, err
		}
		return Product{Factors: []Kernel{se, per}}, nil
	}

	return r
}

func (r *Registry) Get(name string, params map[string]float64) (Kernel, error) {
	fn, ok := r.kernels[name]
	if !ok {
		return nil, fmt.Errorf("unknown kernel: %s", name)
	}
	return fn(params)
}

func (r *Registry) List() []string {
	names := make([]string, 0, len(r.kernels))
	for name := range r.kernels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
