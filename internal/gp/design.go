package gp

import (
	"fmt"
	"math"

	"github.com/san-kum/phongp/internal/dataset"
	"github.com/san-kum/phongp/internal/formula"
	"github.com/san-kum/phongp/internal/kernel"
	"gonum.org/v1/gonum/mat"
)

// compositeSep joins the levels of a two-factor grouping key.
const compositeSep = "_"

// fixedTerm encodes one plain formula term. Categorical terms are
// treatment-coded against levels[0].
type fixedTerm struct {
	name    string
	numeric bool
	levels  []string
}

// gpTerm is a formula gp() term with its fitted input scaling.
type gpTerm struct {
	src     formula.GPTerm
	divisor float64
	// levels are the by-levels seen in training, nil when not partitioned.
	levels []string
}

// block is one independent process: a term restricted to one by-level.
type block struct {
	term   int
	level  string
	rows   []int
	points [][]float64
	// d2 holds the m×m squared distances between points, row-major.
	d2 []float64
}

func (b *block) size() int { return len(b.rows) }

// design is the fitted model structure: response, fixed-effect matrix and
// process blocks.
type design struct {
	formula   *formula.Formula
	n         int
	y         []float64
	x         *mat.Dense
	coefNames []string
	coefClass []string
	fixed     []fixedTerm
	terms     []gpTerm
	blocks    []block
}

func newDesign(f *formula.Formula, data *dataset.Table) (*design, error) {
	for _, c := range f.Columns() {
		if !data.Has(c) {
			return nil, fmt.Errorf("%w: column %q", ErrCovariateMismatch, c)
		}
	}
	clean, err := data.DropNA(f.Columns()...)
	if err != nil {
		return nil, err
	}
	if clean.Rows() == 0 {
		return nil, ErrEmptyData
	}
	y, err := clean.Numeric(f.Response)
	if err != nil {
		return nil, fmt.Errorf("response: %w", err)
	}

	d := &design{formula: f, n: clean.Rows(), y: append([]float64(nil), y...)}

	if f.Intercept {
		d.coefNames = append(d.coefNames, formula.ClassIntercept)
		d.coefClass = append(d.coefClass, formula.ClassIntercept)
	}
	fullCoded := f.Intercept
	for _, name := range f.Fixed {
		col, err := clean.Column(name)
		if err != nil {
			return nil, err
		}
		ft := fixedTerm{name: name, numeric: col.Kind == dataset.Numeric}
		if ft.numeric {
			d.coefNames = append(d.coefNames, name)
			d.coefClass = append(d.coefClass, formula.ClassB)
		} else {
			ft.levels = dataset.Levels(col.Str)
			start := 1
			if !fullCoded {
				// Without an intercept the first factor keeps all levels.
				start = 0
				fullCoded = true
			}
			for _, lv := range ft.levels[start:] {
				d.coefNames = append(d.coefNames, name+lv)
				d.coefClass = append(d.coefClass, formula.ClassB)
			}
			if start == 0 {
				ft.levels = append([]string{""}, ft.levels...)
			}
		}
		d.fixed = append(d.fixed, ft)
	}

	d.x, err = d.encodeFixed(clean)
	if err != nil {
		return nil, err
	}

	for ti, g := range f.GPs {
		coords, err := coordinates(clean, g)
		if err != nil {
			return nil, err
		}
		term := gpTerm{src: g, divisor: 1}
		if g.Scale {
			if max := kernel.MaxDistance(uniquePoints(coords)); max > 0 {
				term.divisor = max
			}
		}
		for _, p := range coords {
			for k := range p {
				p[k] /= term.divisor
			}
		}
		keys, err := byKeys(clean, g)
		if err != nil {
			return nil, err
		}
		if keys == nil {
			d.blocks = append(d.blocks, newBlock(ti, "", allRows(d.n), coords))
		} else {
			term.levels = dataset.Levels(keys)
			for _, lv := range term.levels {
				var rows []int
				for i, k := range keys {
					if k == lv {
						rows = append(rows, i)
					}
				}
				d.blocks = append(d.blocks, newBlock(ti, lv, rows, coords))
			}
		}
		d.terms = append(d.terms, term)
	}
	return d, nil
}

func newBlock(term int, level string, rows []int, coords [][]float64) block {
	b := block{term: term, level: level, rows: rows, points: make([][]float64, len(rows))}
	for i, r := range rows {
		b.points[i] = coords[r]
	}
	m := len(rows)
	b.d2 = make([]float64, m*m)
	for i := 0; i < m; i++ {
		for j := i + 1; j < m; j++ {
			v := kernel.SqDistance(b.points[i], b.points[j])
			b.d2[i*m+j] = v
			b.d2[j*m+i] = v
		}
	}
	return b
}

// encodeFixed builds the fixed-effect rows of t using the training coding.
func (d *design) encodeFixed(t *dataset.Table) (*mat.Dense, error) {
	n := t.Rows()
	p := len(d.coefNames)
	if p == 0 {
		return nil, nil
	}
	x := mat.NewDense(n, p, nil)
	col := 0
	if d.formula.Intercept {
		for i := 0; i < n; i++ {
			x.Set(i, 0, 1)
		}
		col = 1
	}
	for _, ft := range d.fixed {
		if ft.numeric {
			vals, err := t.Numeric(ft.name)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrCovariateMismatch, err)
			}
			for i, v := range vals {
				x.Set(i, col, v)
			}
			col++
			continue
		}
		vals, err := t.Categorical(ft.name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCovariateMismatch, err)
		}
		index := make(map[string]int, len(ft.levels))
		for k, lv := range ft.levels {
			index[lv] = k
		}
		for i, v := range vals {
			k, ok := index[v]
			if !ok || v == "" {
				return nil, fmt.Errorf("%w: level %q of %s", ErrCovariateMismatch, v, ft.name)
			}
			if k > 0 {
				x.Set(i, col+k-1, 1)
			}
		}
		col += len(ft.levels) - 1
	}
	return x, nil
}

// coordinates extracts the raw gp() inputs of every row.
func coordinates(t *dataset.Table, g formula.GPTerm) ([][]float64, error) {
	cols := make([][]float64, len(g.Vars))
	for k, v := range g.Vars {
		vals, err := t.Numeric(v)
		if err != nil {
			return nil, fmt.Errorf("%w: gp input %s: %v", ErrCovariateMismatch, v, err)
		}
		cols[k] = vals
	}
	out := make([][]float64, t.Rows())
	for i := range out {
		p := make([]float64, len(cols))
		for k := range cols {
			p[k] = cols[k][i]
		}
		out[i] = p
	}
	return out, nil
}

// byKeys returns the grouping key of every row, nil for unpartitioned terms.
func byKeys(t *dataset.Table, g formula.GPTerm) ([]string, error) {
	if len(g.By) == 0 {
		return nil, nil
	}
	keys, err := t.ClusterKey(compositeSep, g.By...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCovariateMismatch, err)
	}
	return keys, nil
}

func uniquePoints(points [][]float64) [][]float64 {
	seen := make(map[string]bool, len(points))
	var out [][]float64
	for _, p := range points {
		k := fmt.Sprint(p)
		if !seen[k] {
			seen[k] = true
			out = append(out, p)
		}
	}
	return out
}

func allRows(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// Parameter layout on the unconstrained scale:
// [β..., (log sdgp, log lscale) per block..., log σ].

func (d *design) dim() int { return len(d.coefNames) + 2*len(d.blocks) + 1 }

func (d *design) sdIndex(b int) int     { return len(d.coefNames) + 2*b }
func (d *design) lscaleIndex(b int) int { return len(d.coefNames) + 2*b + 1 }
func (d *design) sigmaIndex() int       { return d.dim() - 1 }

func (d *design) blockName(b int) string {
	bl := d.blocks[b]
	name := d.terms[bl.term].src.Label()
	if bl.level != "" {
		name += ":" + d.terms[bl.term].src.ByName() + "=" + bl.level
	}
	return name
}

// paramNames lists parameter names in layout order.
func (d *design) paramNames() []string {
	out := make([]string, 0, d.dim())
	for _, c := range d.coefNames {
		out = append(out, "b_"+c)
	}
	for b := range d.blocks {
		out = append(out, formula.ClassSDGP+"_"+d.blockName(b), formula.ClassLScale+"_"+d.blockName(b))
	}
	return append(out, formula.ClassSigma)
}

// paramClasses lists the prior class of every parameter in layout order.
func (d *design) paramClasses() []string {
	out := append([]string(nil), d.coefClass...)
	for range d.blocks {
		out = append(out, formula.ClassSDGP, formula.ClassLScale)
	}
	return append(out, formula.ClassSigma)
}

// positive reports whether parameter i is sampled on the log scale.
func (d *design) positive(i int) bool { return i >= len(d.coefNames) }

// constrain maps an unconstrained point to parameter values.
func (d *design) constrain(q []float64) []float64 {
	out := make([]float64, len(q))
	for i, v := range q {
		if d.positive(i) {
			out[i] = math.Exp(v)
		} else {
			out[i] = v
		}
	}
	return out
}

// predictRows is new data encoded against the fitted design.
type predictRows struct {
	n int
	x *mat.Dense
	// coords[t][i] is the scaled input of row i for term t.
	coords [][][]float64
	// blockOf[t][i] is the block row i belongs to for term t.
	blockOf [][]int
}

func (d *design) encode(t *dataset.Table) (*predictRows, error) {
	var cols []string
	for _, c := range d.formula.Columns() {
		if c != d.formula.Response {
			cols = append(cols, c)
		}
	}
	for _, c := range cols {
		if !t.Has(c) {
			return nil, fmt.Errorf("%w: column %q", ErrCovariateMismatch, c)
		}
	}
	clean, err := t.DropNA(cols...)
	if err != nil {
		return nil, err
	}
	if clean.Rows() != t.Rows() {
		return nil, fmt.Errorf("%w: %d rows with missing covariates", ErrCovariateMismatch, t.Rows()-clean.Rows())
	}
	pr := &predictRows{n: t.Rows()}
	if pr.x, err = d.encodeFixed(t); err != nil {
		return nil, err
	}
	for ti, term := range d.terms {
		coords, err := coordinates(t, term.src)
		if err != nil {
			return nil, err
		}
		for _, p := range coords {
			for k := range p {
				p[k] /= term.divisor
			}
		}
		keys, err := byKeys(t, term.src)
		if err != nil {
			return nil, err
		}
		owner := make([]int, t.Rows())
		for i := range owner {
			level := ""
			if keys != nil {
				level = keys[i]
			}
			b := d.findBlock(ti, level)
			if b < 0 {
				return nil, fmt.Errorf("%w: level %q of %s", ErrCovariateMismatch, level, term.src.ByName())
			}
			owner[i] = b
		}
		pr.coords = append(pr.coords, coords)
		pr.blockOf = append(pr.blockOf, owner)
	}
	return pr, nil
}

func (d *design) findBlock(term int, level string) int {
	for b, bl := range d.blocks {
		if bl.term == term && bl.level == level {
			return b
		}
	}
	return -1
}
