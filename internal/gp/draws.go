package gp

import "fmt"

// Draws are post-warmup parameter draws on the constrained scale.
type Draws struct {
	Names []string
	// Chains[c][i][k] is parameter k at iteration i of chain c.
	Chains [][][]float64
}

func (d *Draws) NumChains() int { return len(d.Chains) }

// PerChain is the number of draws in each chain.
func (d *Draws) PerChain() int {
	if len(d.Chains) == 0 {
		return 0
	}
	return len(d.Chains[0])
}

func (d *Draws) Total() int { return d.NumChains() * d.PerChain() }

// Index returns the column of name, or -1.
func (d *Draws) Index(name string) int {
	for i, n := range d.Names {
		if n == name {
			return i
		}
	}
	return -1
}

// Param returns one series per chain for name.
func (d *Draws) Param(name string) ([][]float64, error) {
	k := d.Index(name)
	if k < 0 {
		return nil, fmt.Errorf("gp: unknown parameter %q", name)
	}
	out := make([][]float64, len(d.Chains))
	for c, chain := range d.Chains {
		s := make([]float64, len(chain))
		for i, row := range chain {
			s[i] = row[k]
		}
		out[c] = s
	}
	return out, nil
}

// Flat returns every draw, chains concatenated in order.
func (d *Draws) Flat() [][]float64 {
	out := make([][]float64, 0, d.Total())
	for _, chain := range d.Chains {
		out = append(out, chain...)
	}
	return out
}

// thin picks ndraws evenly spaced indices into Flat. ndraws <= 0 or above
// the total keeps every draw.
func thin(total, ndraws int) []int {
	if ndraws <= 0 || ndraws >= total {
		ndraws = total
	}
	idx := make([]int, ndraws)
	for k := range idx {
		idx[k] = k * total / ndraws
	}
	return idx
}
