package export

import (
	"fmt"
	"html"
	"math"
	"os"
	"strings"

	"github.com/san-kum/phongp/internal/viz"
)

const (
	background = "#0a0a0a"
	foreground = "#cccccc"
	bandFill   = "#0077be"
	meanStroke = "#00ccff"
	obsFill    = "#ffaa00"
	panelPad   = 40.0
)

// ramp is a dark-to-bright colour scale for mapped values.
var ramp = [][3]float64{
	{68, 1, 84},
	{59, 82, 139},
	{33, 145, 140},
	{94, 201, 98},
	{253, 231, 37},
}

func header(sb *strings.Builder, width, height int) {
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" font-family="monospace" font-size="11">
<rect width="100%%" height="100%%" fill="%s"/>
`, width, height, width, height, background))
}

// BandsToSVG stacks one panel per band: the interval as a filled polygon,
// the mean as a line and observed means as dots.
func BandsToSVG(bands []viz.Band, width, panelHeight int) string {
	height := panelHeight * max(len(bands), 1)
	var sb strings.Builder
	header(&sb, width, height)

	for i, b := range bands {
		if len(b.X) == 0 {
			continue
		}
		top := float64(i * panelHeight)
		xs := append(append([]float64{}, b.X...), b.X...)
		ys := append(append([]float64{}, b.Low...), b.High...)
		ys = append(ys, b.Observed...)
		if len(b.Observed) > 0 {
			xs = append(xs, b.X...)
		}
		f := viz.FrameOf(xs, ys, 0.05)
		px := func(x float64) float64 {
			return panelPad + (x-f.MinX)/(f.MaxX-f.MinX)*(float64(width)-2*panelPad)
		}
		py := func(y float64) float64 {
			return top + float64(panelHeight) - panelPad/2 - (y-f.MinY)/(f.MaxY-f.MinY)*(float64(panelHeight)-panelPad)
		}

		sb.WriteString(fmt.Sprintf(`<text x="%.1f" y="%.1f" fill="%s">%s</text>
`, panelPad, top+14, foreground, html.EscapeString(b.Label)))
		sb.WriteString(fmt.Sprintf(`<text x="4" y="%.1f" fill="%s">%.4g</text>
<text x="4" y="%.1f" fill="%s">%.4g</text>
`, py(f.MaxY)+10, foreground, f.MaxY, py(f.MinY), foreground, f.MinY))

		var poly strings.Builder
		for k := range b.X {
			poly.WriteString(fmt.Sprintf("%.1f,%.1f ", px(b.X[k]), py(b.Low[k])))
		}
		for k := len(b.X) - 1; k >= 0; k-- {
			poly.WriteString(fmt.Sprintf("%.1f,%.1f ", px(b.X[k]), py(b.High[k])))
		}
		sb.WriteString(fmt.Sprintf(`<polygon points="%s" fill="%s" fill-opacity="0.35"/>
`, strings.TrimSpace(poly.String()), bandFill))

		sb.WriteString(`<path fill="none" stroke="` + meanStroke + `" stroke-width="1.5" d="M`)
		for k := range b.X {
			if k > 0 {
				sb.WriteString(" L")
			}
			sb.WriteString(fmt.Sprintf("%.1f,%.1f", px(b.X[k]), py(b.Mean[k])))
		}
		sb.WriteString("\"/>\n")

		for k, v := range b.Observed {
			if math.IsNaN(v) {
				continue
			}
			sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="2.5" fill="%s"/>
`, px(b.X[k]), py(v), obsFill))
		}
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// rampColor maps t in [0, 1] onto the colour ramp.
func rampColor(t float64) string {
	if math.IsNaN(t) {
		t = 0
	}
	t = math.Max(0, math.Min(1, t))
	pos := t * float64(len(ramp)-1)
	i := int(math.Floor(pos))
	if i >= len(ramp)-1 {
		i = len(ramp) - 2
	}
	frac := pos - float64(i)
	var c [3]int
	for k := range c {
		c[k] = int(math.Round(ramp[i][k] + frac*(ramp[i+1][k]-ramp[i][k])))
	}
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}

// GeoToSVG draws values at lon/lat locations coloured on a ramp, over an
// optional boundary.
func GeoToSVG(lon, lat, values []float64, boundary *viz.Boundary, width, height int) string {
	var sb strings.Builder
	header(&sb, width, height)

	f := viz.FrameOf(lon, lat, 0.05)
	if boundary != nil && len(boundary.Rings) > 0 {
		f = f.Union(boundary.Frame())
	}
	plotH := float64(height) - panelPad
	px := func(x float64) float64 { return (x - f.MinX) / (f.MaxX - f.MinX) * float64(width) }
	py := func(y float64) float64 { return (f.MaxY - y) / (f.MaxY - f.MinY) * plotH }

	if boundary != nil {
		for _, r := range boundary.Rings {
			if len(r) < 2 {
				continue
			}
			sb.WriteString(`<path fill="none" stroke="` + foreground + `" stroke-width="1" d="M`)
			for i, p := range r {
				if i > 0 {
					sb.WriteString(" L")
				}
				sb.WriteString(fmt.Sprintf("%.1f,%.1f", px(p[0]), py(p[1])))
			}
			sb.WriteString("\"/>\n")
		}
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if !math.IsNaN(v) {
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsNaN(lon[i]) || math.IsNaN(lat[i]) {
			continue
		}
		sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="4" fill="%s"/>
`, px(lon[i]), py(lat[i]), rampColor((v-lo)/span)))
	}

	// legend
	steps := 10
	w := float64(width) / 2 / float64(steps)
	for k := 0; k < steps; k++ {
		sb.WriteString(fmt.Sprintf(`<rect x="%.1f" y="%.1f" width="%.1f" height="10" fill="%s"/>
`, 10+float64(k)*w, plotH+10, w, rampColor(float64(k)/float64(steps-1))))
	}
	if !math.IsInf(lo, 1) {
		sb.WriteString(fmt.Sprintf(`<text x="10" y="%.1f" fill="%s">%.4g</text>
<text x="%.1f" y="%.1f" fill="%s" text-anchor="end">%.4g</text>
`, plotH+34, foreground, lo, 10+float64(steps)*w, plotH+34, foreground, hi))
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// WriteFile saves an SVG document.
func WriteFile(path, svg string) error {
	return os.WriteFile(path, []byte(svg), 0644)
}
