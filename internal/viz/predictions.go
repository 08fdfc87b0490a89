package viz

import (
	"fmt"

	"github.com/san-kum/phongp/internal/dataset"
)

// IsGeographic reports whether a table carries lon and lat columns.
func IsGeographic(t *dataset.Table) bool {
	return t.Has("lon") && t.Has("lat")
}

// Covariate returns the first numeric column that is not a summary column.
func Covariate(pred *dataset.Table) (string, bool) {
	for _, name := range pred.Names() {
		switch name {
		case "mean", "low", "high":
			continue
		}
		if c, _ := pred.Column(name); c.Kind == dataset.Numeric {
			return name, true
		}
	}
	return "", false
}

// PredictionBands splits a prediction table into bands over its first
// numeric covariate. When observed is non-nil and carries that covariate,
// the group columns and a mean column, its means are overlaid.
func PredictionBands(pred, observed *dataset.Table) ([]Band, error) {
	x, ok := Covariate(pred)
	if !ok {
		return nil, fmt.Errorf("viz: no numeric covariate to plot against")
	}
	groups := GroupColumns(pred)
	bands, err := Bands(pred, x, groups)
	if err != nil {
		return nil, err
	}
	if observed == nil || !observed.Has(x) || !observed.Has("mean") {
		return bands, nil
	}
	for _, g := range groups {
		if !observed.Has(g) {
			return bands, nil
		}
	}
	if err := Overlay(bands, observed, x, groups, "mean"); err != nil {
		return nil, err
	}
	return bands, nil
}

// PlotPredictions picks a rendering for a prediction table: a geographic
// map when it has lon and lat columns, otherwise bands over the first
// numeric covariate.
func PlotPredictions(pred, observed *dataset.Table, boundary *Boundary, width, height int) (string, error) {
	if IsGeographic(pred) {
		lon, _ := pred.Numeric("lon")
		lat, _ := pred.Numeric("lat")
		mean, err := pred.Numeric("mean")
		if err != nil {
			return "", err
		}
		return GeoMap(lon, lat, mean, boundary, width, height), nil
	}
	bands, err := PredictionBands(pred, observed)
	if err != nil {
		return "", err
	}
	return PlotBands(bands, width, height), nil
}
