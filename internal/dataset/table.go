// Package dataset holds observation records as a column-oriented table.
//
// Columns are either numeric (response, time, longitude, latitude) or
// categorical (sex, location, context, word, sibilant class). Every row has
// exactly one value per column. A missing value is NaN in a numeric column
// and Missing in a categorical one.
package dataset

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Missing is the value of a missing categorical cell.
const Missing = ""

type Kind int

const (
	Numeric Kind = iota
	Categorical
)

func (k Kind) String() string {
	if k == Categorical {
		return "categorical"
	}
	return "numeric"
}

type Column struct {
	Name string
	Kind Kind
	Num  []float64
	Str  []string
}

func (c *Column) Len() int {
	if c.Kind == Categorical {
		return len(c.Str)
	}
	return len(c.Num)
}

// Format renders row i as text.
func (c *Column) Format(i int) string {
	if c.Kind == Categorical {
		return c.Str[i]
	}
	v := c.Num[i]
	if math.IsNaN(v) {
		return "NA"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// IsMissing reports whether row i holds no value.
func (c *Column) IsMissing(i int) bool {
	if c.Kind == Categorical {
		return c.Str[i] == Missing
	}
	return math.IsNaN(c.Num[i])
}

type Table struct {
	names []string
	cols  map[string]*Column
	rows  int
}

func New() *Table {
	return &Table{cols: make(map[string]*Column)}
}

func (t *Table) Rows() int { return t.rows }

// Names returns the column names in insertion order.
func (t *Table) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

func (t *Table) Has(name string) bool {
	_, ok := t.cols[name]
	return ok
}

func (t *Table) add(c *Column) error {
	n := c.Len()
	if len(t.names) > 0 && n != t.rows {
		return fmt.Errorf("%w: %s has %d rows, table has %d", ErrLength, c.Name, n, t.rows)
	}
	if _, exists := t.cols[c.Name]; !exists {
		t.names = append(t.names, c.Name)
	}
	t.cols[c.Name] = c
	t.rows = n
	return nil
}

// AddNumeric adds or replaces a numeric column. The slice is not copied.
func (t *Table) AddNumeric(name string, values []float64) error {
	return t.add(&Column{Name: name, Kind: Numeric, Num: values})
}

// AddCategorical adds or replaces a categorical column. The slice is not copied.
func (t *Table) AddCategorical(name string, values []string) error {
	return t.add(&Column{Name: name, Kind: Categorical, Str: values})
}

func (t *Table) Column(name string) (*Column, error) {
	c, ok := t.cols[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	return c, nil
}

func (t *Table) Numeric(name string) ([]float64, error) {
	c, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	if c.Kind != Numeric {
		return nil, fmt.Errorf("%w: %q is %s", ErrKindMismatch, name, c.Kind)
	}
	return c.Num, nil
}

func (t *Table) Categorical(name string) ([]string, error) {
	c, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	if c.Kind != Categorical {
		return nil, fmt.Errorf("%w: %q is %s", ErrKindMismatch, name, c.Kind)
	}
	return c.Str, nil
}

// Levels returns the sorted distinct non-missing values of a categorical
// column.
func (t *Table) Levels(name string) ([]string, error) {
	vals, err := t.Categorical(name)
	if err != nil {
		return nil, err
	}
	return Levels(vals), nil
}

// Levels returns the sorted distinct non-missing values of vals.
func Levels(vals []string) []string {
	seen := make(map[string]struct{}, 8)
	out := make([]string, 0, 8)
	for _, v := range vals {
		if _, ok := seen[v]; ok || v == Missing {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Subset returns a new table holding rows idx, in that order.
func (t *Table) Subset(idx []int) *Table {
	out := New()
	for _, name := range t.names {
		c := t.cols[name]
		switch c.Kind {
		case Numeric:
			vals := make([]float64, len(idx))
			for j, i := range idx {
				vals[j] = c.Num[i]
			}
			_ = out.AddNumeric(name, vals)
		default:
			vals := make([]string, len(idx))
			for j, i := range idx {
				vals[j] = c.Str[i]
			}
			_ = out.AddCategorical(name, vals)
		}
	}
	out.rows = len(idx)
	return out
}

// Filter keeps the rows for which keep returns true.
func (t *Table) Filter(keep func(i int) bool) *Table {
	idx := make([]int, 0, t.rows)
	for i := 0; i < t.rows; i++ {
		if keep(i) {
			idx = append(idx, i)
		}
	}
	return t.Subset(idx)
}

// FilterLevels keeps the rows whose categorical column takes one of levels.
func (t *Table) FilterLevels(name string, levels []string) (*Table, error) {
	vals, err := t.Categorical(name)
	if err != nil {
		return nil, err
	}
	allowed := make(map[string]struct{}, len(levels))
	for _, l := range levels {
		allowed[l] = struct{}{}
	}
	return t.Filter(func(i int) bool {
		_, ok := allowed[vals[i]]
		return ok
	}), nil
}

// DropNA removes rows where any of the named columns is missing.
func (t *Table) DropNA(names ...string) (*Table, error) {
	cols := make([]*Column, 0, len(names))
	for _, n := range names {
		c, err := t.Column(n)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return t.Filter(func(i int) bool {
		for _, c := range cols {
			if c.IsMissing(i) {
				return false
			}
		}
		return true
	}), nil
}

// ClusterKey concatenates the values of cols row by row with sep. Numeric
// columns are formatted without trailing zeros. A row with any missing part
// gets a Missing key.
func (t *Table) ClusterKey(sep string, cols ...string) ([]string, error) {
	parts := make([]*Column, len(cols))
	for j, name := range cols {
		c, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		parts[j] = c
	}
	keys := make([]string, t.rows)
	buf := make([]string, len(parts))
rows:
	for i := 0; i < t.rows; i++ {
		for j, c := range parts {
			if c.IsMissing(i) {
				keys[i] = Missing
				continue rows
			}
			buf[j] = c.Format(i)
		}
		keys[i] = strings.Join(buf, sep)
	}
	return keys, nil
}

// WithCluster adds a categorical column built by concatenating cols.
func (t *Table) WithCluster(name, sep string, cols ...string) error {
	keys, err := t.ClusterKey(sep, cols...)
	if err != nil {
		return err
	}
	return t.AddCategorical(name, keys)
}

// Clone copies every column.
func (t *Table) Clone() *Table {
	idx := make([]int, t.rows)
	for i := range idx {
		idx[i] = i
	}
	return t.Subset(idx)
}
