package viz

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
)

var ErrGeometry = errors.New("viz: unsupported geometry")

// Ring is a closed or open polyline of lon/lat pairs.
type Ring [][2]float64

// Boundary is the set of outlines drawn under a geographic plot.
type Boundary struct {
	Rings []Ring
}

type geoJSON struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
	Geometry    *geoJSON        `json:"geometry"`
	Geometries  []geoJSON       `json:"geometries"`
	Features    []geoJSON       `json:"features"`
}

func LoadBoundary(path string) (*Boundary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	b, err := ParseBoundary(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// ParseBoundary reads the line and polygon rings of a GeoJSON document.
// Points are skipped.
func ParseBoundary(data []byte) (*Boundary, error) {
	var g geoJSON
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, err
	}
	b := &Boundary{}
	if err := b.collect(g); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Boundary) collect(g geoJSON) error {
	switch g.Type {
	case "FeatureCollection":
		for _, f := range g.Features {
			if err := b.collect(f); err != nil {
				return err
			}
		}
	case "Feature":
		if g.Geometry != nil {
			return b.collect(*g.Geometry)
		}
	case "GeometryCollection":
		for _, sub := range g.Geometries {
			if err := b.collect(sub); err != nil {
				return err
			}
		}
	case "LineString":
		var ring Ring
		if err := json.Unmarshal(g.Coordinates, &ring); err != nil {
			return err
		}
		b.Rings = append(b.Rings, ring)
	case "Polygon", "MultiLineString":
		var rings []Ring
		if err := json.Unmarshal(g.Coordinates, &rings); err != nil {
			return err
		}
		b.Rings = append(b.Rings, rings...)
	case "MultiPolygon":
		var polys [][]Ring
		if err := json.Unmarshal(g.Coordinates, &polys); err != nil {
			return err
		}
		for _, p := range polys {
			b.Rings = append(b.Rings, p...)
		}
	case "Point", "MultiPoint":
	default:
		return fmt.Errorf("%w: %q", ErrGeometry, g.Type)
	}
	return nil
}

// Frame is the bounding box of every ring.
func (b *Boundary) Frame() Frame {
	var xs, ys []float64
	for _, r := range b.Rings {
		for _, p := range r {
			xs = append(xs, p[0])
			ys = append(ys, p[1])
		}
	}
	return FrameOf(xs, ys, 0)
}

// Quintiles returns the 20/40/60/80% breaks of the finite values.
func Quintiles(values []float64) [4]float64 {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	var q [4]float64
	if len(sorted) == 0 {
		return q
	}
	sort.Float64s(sorted)
	for i := range q {
		pos := float64(i+1) * float64(len(sorted)-1) / 5
		lo := int(math.Floor(pos))
		hi := int(math.Ceil(pos))
		q[i] = sorted[lo] + (pos-float64(lo))*(sorted[hi]-sorted[lo])
	}
	return q
}

// quintile returns the 1-based quintile of v.
func quintile(v float64, breaks [4]float64) int {
	for i, b := range breaks {
		if v <= b {
			return i + 1
		}
	}
	return 5
}

// GeoMap draws values at lon/lat locations over an optional boundary.
// Denser glyphs mark higher quintiles.
func GeoMap(lon, lat, values []float64, boundary *Boundary, width, height int) string {
	c := NewCanvas(width, height)
	frame := FrameOf(lon, lat, 0.05)
	if boundary != nil && len(boundary.Rings) > 0 {
		frame = frame.Union(boundary.Frame())
		for _, r := range boundary.Rings {
			for i := 1; i < len(r); i++ {
				x0, y0 := frame.Pixel(r[i-1][0], r[i-1][1], c.PixelWidth(), c.PixelHeight())
				x1, y1 := frame.Pixel(r[i][0], r[i][1], c.PixelWidth(), c.PixelHeight())
				c.DrawLine(x0, y0, x1, y1)
			}
		}
	}

	breaks := Quintiles(values)
	for i := range values {
		if math.IsNaN(values[i]) || math.IsNaN(lon[i]) || math.IsNaN(lat[i]) {
			continue
		}
		x, y := frame.Pixel(lon[i], lat[i], c.PixelWidth(), c.PixelHeight())
		c.Mark(x, y, 1+quintile(values[i], breaks))
	}

	var b strings.Builder
	b.WriteString(c.String())
	b.WriteString(quintileLegend(breaks))
	return b.String()
}

func quintileLegend(breaks [4]float64) string {
	parts := make([]string, 5)
	lo := "min"
	for i := 0; i < 5; i++ {
		hi := "max"
		if i < 4 {
			hi = fmt.Sprintf("%.4g", breaks[i])
		}
		probe := NewCanvas(1, 1)
		probe.Mark(0, 0, i+2)
		parts[i] = fmt.Sprintf("%c %s..%s", probe.Grid[0][0], lo, hi)
		lo = hi
	}
	return strings.Join(parts, "  ") + "\n"
}
