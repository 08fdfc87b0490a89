package dataset

import "fmt"

// Axis is one dimension of a prediction grid: either numeric values or
// categorical levels.
type Axis struct {
	Name   string
	Values []float64
	Levels []string
}

// Seq returns n evenly spaced values from lo to hi inclusive.
func Seq(lo, hi float64, n int) []float64 {
	if n <= 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi
	return out
}

// ExpandGrid builds the cartesian product of axes. The last axis varies
// fastest.
func ExpandGrid(axes ...Axis) (*Table, error) {
	total := 1
	for _, a := range axes {
		n := len(a.Values) + len(a.Levels)
		if n == 0 {
			return nil, fmt.Errorf("%w: axis %q is empty", ErrEmpty, a.Name)
		}
		if len(a.Values) > 0 && len(a.Levels) > 0 {
			return nil, fmt.Errorf("%w: axis %q has both values and levels", ErrKindMismatch, a.Name)
		}
		total *= n
	}

	t := New()
	repeat := total
	for _, a := range axes {
		n := len(a.Values) + len(a.Levels)
		repeat /= n
		if len(a.Levels) > 0 {
			col := make([]string, total)
			for i := range col {
				col[i] = a.Levels[(i/repeat)%n]
			}
			if err := t.AddCategorical(a.Name, col); err != nil {
				return nil, err
			}
			continue
		}
		col := make([]float64, total)
		for i := range col {
			col[i] = a.Values[(i/repeat)%n]
		}
		if err := t.AddNumeric(a.Name, col); err != nil {
			return nil, err
		}
	}
	t.rows = total
	return t, nil
}
