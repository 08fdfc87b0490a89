package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// ReadOptions controls CSV parsing.
type ReadOptions struct {
	// Categorical forces the named columns to be categorical even when every
	// value parses as a number (e.g. a numeric speaker id).
	Categorical []string
	// NA lists the cell values read as missing: NaN in numeric columns,
	// Missing in categorical ones.
	NA []string
}

var defaultNA = []string{"", "NA", "NaN", "nan", "null"}

// LoadCSV reads a table from a CSV file with a header row.
func LoadCSV(path string, opts ReadOptions) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := ReadCSV(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// ReadCSV reads a table from r. A column is numeric when every non-missing
// cell parses as a float, otherwise categorical.
func ReadCSV(r io.Reader, opts ReadOptions) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 1 || len(records[0]) == 0 {
		return nil, ErrEmpty
	}

	header := records[0]
	body := records[1:]

	na := opts.NA
	if len(na) == 0 {
		na = defaultNA
	}
	isNA := make(map[string]bool, len(na))
	for _, v := range na {
		isNA[v] = true
	}
	forced := make(map[string]bool, len(opts.Categorical))
	for _, c := range opts.Categorical {
		forced[c] = true
	}

	t := New()
	for j, raw := range header {
		name := strings.TrimSpace(raw)
		cells := make([]string, len(body))
		for i, rec := range body {
			if j < len(rec) {
				cells[i] = strings.TrimSpace(rec[j])
			}
		}

		if !forced[name] {
			if nums, ok := parseNumeric(cells, isNA); ok {
				if err := t.AddNumeric(name, nums); err != nil {
					return nil, err
				}
				continue
			}
		}
		for i, c := range cells {
			if isNA[c] {
				cells[i] = Missing
			}
		}
		if err := t.AddCategorical(name, cells); err != nil {
			return nil, err
		}
	}
	t.rows = len(body)
	return t, nil
}

func parseNumeric(cells []string, isNA map[string]bool) ([]float64, bool) {
	out := make([]float64, len(cells))
	seen := 0
	for i, c := range cells {
		if isNA[c] {
			out[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(c, 64)
		if err != nil {
			return nil, false
		}
		out[i] = v
		seen++
	}
	return out, seen > 0 || len(cells) == 0
}

// WriteCSV writes the table with a header row.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.names); err != nil {
		return err
	}
	row := make([]string, len(t.names))
	for i := 0; i < t.rows; i++ {
		for j, name := range t.names {
			row[j] = t.cols[name].Format(i)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (t *Table) SaveCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := t.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
