// Package simulate generates synthetic phonetic datasets with known
// generating means: F0 contours over normalised time and sibilant centre
// of gravity over a geographic area.
package simulate

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/san-kum/phongp/internal/dataset"
)

var (
	Contexts  = []string{"falling", "rising"}
	Sexes     = []string{"f", "m"}
	Locations = []string{"north", "south"}
	Sibilants = []string{"s", "sh"}
)

type F0Options struct {
	// Times is the number of equally spaced time points in [1, Times].
	Times int `yaml:"times" json:"times"`
	// Reps is the number of tokens per cell.
	Reps  int     `yaml:"reps" json:"reps"`
	Noise float64 `yaml:"noise" json:"noise"`
	Seed  uint64  `yaml:"seed" json:"seed"`
}

func DefaultF0Options() F0Options {
	return F0Options{Times: 10, Reps: 1, Noise: 0, Seed: 1}
}

// F0Mean is the generating mean in Hz. Falling contours drop and rising
// contours rise over time; sex shifts the register and location adds a
// small offset and a different curvature.
func F0Mean(time float64, context, sex, location string) float64 {
	base := 120.0
	if sex == "f" {
		base = 210
	}
	if location == "north" {
		base += 10
	}
	curve := 0.0
	switch context {
	case "falling":
		curve = 30 - 6*time
	case "rising":
		curve = -15 + 5*time
	}
	bend := 4.0
	if location == "south" {
		bend = -4
	}
	return base + curve + bend*math.Sin(math.Pi*time/10)
}

// F0 builds Times × contexts × sexes × locations × Reps rows with columns
// time, context, sex, location and f0.
func F0(opts F0Options) *dataset.Table {
	if opts.Times < 1 {
		opts.Times = 10
	}
	if opts.Reps < 1 {
		opts.Reps = 1
	}
	rng := rand.New(rand.NewPCG(opts.Seed, 0xf0))
	var (
		times              []float64
		ctx, sex, location []string
		f0                 []float64
	)
	for _, c := range Contexts {
		for _, s := range Sexes {
			for _, l := range Locations {
				for ti := 1; ti <= opts.Times; ti++ {
					for r := 0; r < opts.Reps; r++ {
						tm := float64(ti)
						times = append(times, tm)
						ctx = append(ctx, c)
						sex = append(sex, s)
						location = append(location, l)
						f0 = append(f0, F0Mean(tm, c, s, l)+opts.Noise*rng.NormFloat64())
					}
				}
			}
		}
	}
	t := dataset.New()
	mustAdd(t.AddNumeric("time", times))
	mustAdd(t.AddCategorical("context", ctx))
	mustAdd(t.AddCategorical("sex", sex))
	mustAdd(t.AddCategorical("location", location))
	mustAdd(t.AddNumeric("f0", f0))
	return t
}

type SibilantOptions struct {
	Sites int     `yaml:"sites" json:"sites"`
	Reps  int     `yaml:"reps" json:"reps"`
	Noise float64 `yaml:"noise" json:"noise"`
	Seed  uint64  `yaml:"seed" json:"seed"`
	// Bounds is lon_min, lat_min, lon_max, lat_max.
	Bounds [4]float64 `yaml:"bounds" json:"bounds"`
}

func DefaultSibilantOptions() SibilantOptions {
	return SibilantOptions{Sites: 40, Reps: 2, Noise: 150, Seed: 1, Bounds: [4]float64{5.8, 47.2, 15.1, 55.1}}
}

// COGMean is the generating centre of gravity in Hz at a location. /s/
// sits about 2 kHz above /sh/; both rise towards the south-east.
func COGMean(lon, lat float64, sibilant string) float64 {
	base := 6500.0
	if sibilant == "sh" {
		base = 4500
	}
	return base + 60*(lon-10) - 80*(lat-51) + 250*math.Sin(lon/2)*math.Cos(lat/3)
}

// Sibilant places Sites random sites inside Bounds and records Reps tokens
// of every sibilant at each. Columns: site, lon, lat, sibilant, cog.
func Sibilant(opts SibilantOptions) *dataset.Table {
	d := DefaultSibilantOptions()
	if opts.Sites < 1 {
		opts.Sites = d.Sites
	}
	if opts.Reps < 1 {
		opts.Reps = d.Reps
	}
	if opts.Bounds == ([4]float64{}) {
		opts.Bounds = d.Bounds
	}
	rng := rand.New(rand.NewPCG(opts.Seed, 0x5a))
	var (
		site, sib []string
		lon, lat  []float64
		cog       []float64
	)
	b := opts.Bounds
	for i := 0; i < opts.Sites; i++ {
		x := b[0] + rng.Float64()*(b[2]-b[0])
		y := b[1] + rng.Float64()*(b[3]-b[1])
		id := siteName(i)
		for _, s := range Sibilants {
			for r := 0; r < opts.Reps; r++ {
				site = append(site, id)
				lon = append(lon, x)
				lat = append(lat, y)
				sib = append(sib, s)
				cog = append(cog, COGMean(x, y, s)+opts.Noise*rng.NormFloat64())
			}
		}
	}
	t := dataset.New()
	mustAdd(t.AddCategorical("site", site))
	mustAdd(t.AddNumeric("lon", lon))
	mustAdd(t.AddNumeric("lat", lat))
	mustAdd(t.AddCategorical("sibilant", sib))
	mustAdd(t.AddNumeric("cog", cog))
	return t
}

func siteName(i int) string { return fmt.Sprintf("site%03d", i+1) }

// mustAdd panics on column length mismatches, which only a bug in this
// package can cause.
func mustAdd(err error) {
	if err != nil {
		panic(err)
	}
}
