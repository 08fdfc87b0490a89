package viz

import (
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/phongp/internal/gp"
)

var chainColors = []asciigraph.AnsiColor{
	asciigraph.DodgerBlue, asciigraph.Orange, asciigraph.MediumSeaGreen, asciigraph.Orchid,
	asciigraph.Gold, asciigraph.Tomato, asciigraph.Turquoise, asciigraph.SlateGray,
}

// TracePlot draws every chain of one parameter.
func TracePlot(d *gp.Draws, param string, width, height int) (string, error) {
	chains, err := d.Param(param)
	if err != nil {
		return "", err
	}
	colors := make([]asciigraph.AnsiColor, len(chains))
	for i := range colors {
		colors[i] = chainColors[i%len(chainColors)]
	}
	return asciigraph.PlotMany(chains,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Precision(3),
		asciigraph.SeriesColors(colors...),
		asciigraph.Caption(param),
	), nil
}
