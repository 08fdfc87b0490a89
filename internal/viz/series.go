package viz

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/phongp/internal/dataset"
)

// Band is one group's posterior curve over a numeric covariate.
type Band struct {
	Label string
	X     []float64
	Mean  []float64
	Low   []float64
	High  []float64
	// Observed holds aggregate means at X, NaN where none was observed.
	Observed []float64
}

// GroupColumns lists the categorical columns of t, the usual grouping of a
// prediction grid.
func GroupColumns(t *dataset.Table) []string {
	var out []string
	for _, name := range t.Names() {
		c, _ := t.Column(name)
		if c.Kind == dataset.Categorical {
			out = append(out, name)
		}
	}
	return out
}

// Bands splits a prediction table with mean, low and high columns into one
// band per combination of the group columns, each ordered by x.
func Bands(pred *dataset.Table, x string, groups []string) ([]Band, error) {
	xs, err := pred.Numeric(x)
	if err != nil {
		return nil, err
	}
	cols := map[string][]float64{}
	for _, name := range []string{"mean", "low", "high"} {
		if cols[name], err = pred.Numeric(name); err != nil {
			return nil, err
		}
	}
	labels, err := groupLabels(pred, groups)
	if err != nil {
		return nil, err
	}

	index := map[string][]int{}
	var order []string
	for i, l := range labels {
		if _, ok := index[l]; !ok {
			order = append(order, l)
		}
		index[l] = append(index[l], i)
	}

	bands := make([]Band, 0, len(order))
	for _, l := range order {
		rows := index[l]
		sort.SliceStable(rows, func(a, b int) bool { return xs[rows[a]] < xs[rows[b]] })
		b := Band{Label: l}
		for _, i := range rows {
			b.X = append(b.X, xs[i])
			b.Mean = append(b.Mean, cols["mean"][i])
			b.Low = append(b.Low, cols["low"][i])
			b.High = append(b.High, cols["high"][i])
		}
		bands = append(bands, b)
	}
	return bands, nil
}

func groupLabels(t *dataset.Table, groups []string) ([]string, error) {
	if len(groups) == 0 {
		out := make([]string, t.Rows())
		for i := range out {
			out[i] = "all"
		}
		return out, nil
	}
	keys, err := t.ClusterKey("/", groups...)
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// Overlay attaches aggregate means to bands where x and the group labels
// match exactly.
func Overlay(bands []Band, agg *dataset.Table, x string, groups []string, mean string) error {
	xs, err := agg.Numeric(x)
	if err != nil {
		return err
	}
	ms, err := agg.Numeric(mean)
	if err != nil {
		return err
	}
	labels, err := groupLabels(agg, groups)
	if err != nil {
		return err
	}
	for bi := range bands {
		b := &bands[bi]
		b.Observed = make([]float64, len(b.X))
		for k := range b.Observed {
			b.Observed[k] = math.NaN()
		}
		for i, l := range labels {
			if l != b.Label {
				continue
			}
			for k, bx := range b.X {
				if bx == xs[i] {
					b.Observed[k] = ms[i]
				}
			}
		}
	}
	return nil
}

// PlotBand renders the lower bound, mean and upper bound of a band, plus
// observed means when present.
func PlotBand(b Band, width, height int) string {
	series := [][]float64{b.Low, b.Mean, b.High}
	colors := []asciigraph.AnsiColor{asciigraph.SlateGray, asciigraph.DodgerBlue, asciigraph.SlateGray}
	legends := []string{"low", "mean", "high"}
	if hasFinite(b.Observed) {
		series = append(series, b.Observed)
		colors = append(colors, asciigraph.Orange)
		legends = append(legends, "observed")
	}
	caption := b.Label
	if len(b.X) > 0 {
		caption = fmt.Sprintf("%s  [%.4g .. %.4g]", b.Label, b.X[0], b.X[len(b.X)-1])
	}
	return asciigraph.PlotMany(series,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Precision(1),
		asciigraph.SeriesColors(colors...),
		asciigraph.SeriesLegends(legends...),
		asciigraph.Caption(caption),
	)
}

// PlotBands renders every band one after another.
func PlotBands(bands []Band, width, height int) string {
	var b strings.Builder
	for _, band := range bands {
		b.WriteString(PlotBand(band, width, height))
		b.WriteString("\n\n")
	}
	return b.String()
}

func hasFinite(xs []float64) bool {
	for _, v := range xs {
		if !math.IsNaN(v) {
			return true
		}
	}
	return false
}
