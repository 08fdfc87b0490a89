package aggregate

import (
	"math"
	"strconv"

	"github.com/san-kum/phongp/internal/dataset"
)

// ToTable converts summaries to a table with the group columns followed by
// mean, sd, n, se, low and high. Group columns that were numeric in the
// source stay numeric.
func ToTable(src *dataset.Table, by []string, rows []Summary) (*dataset.Table, error) {
	out := dataset.New()
	for j, name := range by {
		c, err := src.Column(name)
		if err != nil {
			return nil, err
		}
		if c.Kind == dataset.Numeric {
			vals := make([]float64, len(rows))
			for i, r := range rows {
				vals[i] = parseOrNaN(r.Keys[j])
			}
			if err := out.AddNumeric(name, vals); err != nil {
				return nil, err
			}
			continue
		}
		vals := make([]string, len(rows))
		for i, r := range rows {
			vals[i] = r.Keys[j]
		}
		if err := out.AddCategorical(name, vals); err != nil {
			return nil, err
		}
	}

	fields := []struct {
		name string
		get  func(Summary) float64
	}{
		{"mean", func(s Summary) float64 { return s.Mean }},
		{"sd", func(s Summary) float64 { return s.SD }},
		{"n", func(s Summary) float64 { return float64(s.N) }},
		{"se", func(s Summary) float64 { return s.SE }},
		{"low", func(s Summary) float64 { return s.Low }},
		{"high", func(s Summary) float64 { return s.High }},
	}
	for _, f := range fields {
		vals := make([]float64, len(rows))
		for i, r := range rows {
			vals[i] = f.get(r)
		}
		if err := out.AddNumeric(f.name, vals); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func parseOrNaN(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
