package viz

import (
	"math"
	"strings"
)

// Braille cells hold 2x4 dots:
// 1 4
// 2 5
// 3 6
// 7 8
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const brailleBlank = 0x2800

// densityOrder fills a cell from the centre outwards, one dot per level.
var densityOrder = [8][2]int{
	{1, 0}, {2, 1}, {1, 1}, {2, 0}, {0, 0}, {3, 1}, {0, 1}, {3, 0},
}

type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
		for j := range c.Grid[i] {
			c.Grid[i][j] = brailleBlank
		}
	}
	return c
}

// PixelWidth and PixelHeight are the canvas size in dots.
func (c *Canvas) PixelWidth() int  { return c.Width * 2 }
func (c *Canvas) PixelHeight() int { return c.Height * 4 }

// Set turns on the dot at (x, y); out-of-range dots are ignored.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = brailleBlank
		}
	}
}

// Mark fills the cell containing dot (x, y) with level dots, 1 to 8.
func (c *Canvas) Mark(x, y, level int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	if level > len(densityOrder) {
		level = len(densityOrder)
	}
	for _, d := range densityOrder[:level] {
		c.Grid[row][col] |= rune(pixelMap[d[0]][d[1]])
	}
}

// DrawLine draws a line using Bresenham's algorithm
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Frame maps data coordinates onto canvas dots, y growing upwards.
type Frame struct {
	MinX, MaxX, MinY, MaxY float64
}

// FrameOf returns the bounding box of the points padded by pad of each range.
func FrameOf(xs, ys []float64, pad float64) Frame {
	f := Frame{MinX: math.Inf(1), MaxX: math.Inf(-1), MinY: math.Inf(1), MaxY: math.Inf(-1)}
	for i := range xs {
		if math.IsNaN(xs[i]) || math.IsNaN(ys[i]) {
			continue
		}
		f.MinX, f.MaxX = math.Min(f.MinX, xs[i]), math.Max(f.MaxX, xs[i])
		f.MinY, f.MaxY = math.Min(f.MinY, ys[i]), math.Max(f.MaxY, ys[i])
	}
	if math.IsInf(f.MinX, 1) {
		return Frame{MaxX: 1, MaxY: 1}
	}
	if f.MaxX == f.MinX {
		f.MinX, f.MaxX = f.MinX-0.5, f.MaxX+0.5
	}
	if f.MaxY == f.MinY {
		f.MinY, f.MaxY = f.MinY-0.5, f.MaxY+0.5
	}
	rx, ry := f.MaxX-f.MinX, f.MaxY-f.MinY
	f.MinX -= rx * pad
	f.MaxX += rx * pad
	f.MinY -= ry * pad
	f.MaxY += ry * pad
	return f
}

// Union grows f to contain g.
func (f Frame) Union(g Frame) Frame {
	return Frame{
		MinX: math.Min(f.MinX, g.MinX), MaxX: math.Max(f.MaxX, g.MaxX),
		MinY: math.Min(f.MinY, g.MinY), MaxY: math.Max(f.MaxY, g.MaxY),
	}
}

// Pixel maps (x, y) onto a canvas of w by h dots.
func (f Frame) Pixel(x, y float64, w, h int) (int, int) {
	px := (x - f.MinX) / (f.MaxX - f.MinX) * float64(w-1)
	py := (f.MaxY - y) / (f.MaxY - f.MinY) * float64(h-1)
	return int(math.Round(px)), int(math.Round(py))
}
