package viz

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/san-kum/phongp/internal/aggregate"
	"github.com/san-kum/phongp/internal/diagnostics"
	"github.com/san-kum/phongp/internal/loo"
	"github.com/san-kum/phongp/internal/scale"
	"github.com/san-kum/phongp/internal/storage"
)

func (s Styles) table(headers []string, rows [][]string, cell func(row, col int) lipgloss.Style) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(s.Border).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.Header
			}
			if cell != nil {
				return cell(row, col)
			}
			return s.Cell
		})
	return t.Render()
}

func num(v float64, prec int) string {
	if math.IsNaN(v) {
		return "NA"
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}

// DiagnosticsTable lists the parameter summary with R-hat and ESS coloured
// against the report thresholds.
func (s Styles) DiagnosticsTable(r *diagnostics.Report) string {
	minESS := r.Thresholds.MinESSPerChain * float64(r.Chains)
	rows := make([][]string, len(r.Params))
	for i, p := range r.Params {
		rows[i] = []string{p.Name, num(p.Mean, 3), num(p.SD, 3), num(p.Q025, 3), num(p.Q975, 3), num(p.Rhat, 3), num(p.ESS, 0)}
	}
	out := s.table(
		[]string{"parameter", "mean", "sd", "2.5%", "97.5%", "rhat", "ess_bulk"},
		rows,
		func(row, col int) lipgloss.Style {
			p := r.Params[row]
			switch col {
			case 5:
				if math.IsNaN(p.Rhat) || p.Rhat > r.Thresholds.MaxRhat {
					return s.Bad
				}
				return s.Good
			case 6:
				if math.IsNaN(p.ESS) || p.ESS < minESS {
					return s.Warn
				}
				return s.Good
			}
			return s.Cell
		},
	)
	footer := fmt.Sprintf("%d chains × %d draws  divergent %d  max treedepth hits %d  mean accept %.2f",
		r.Chains, r.DrawsPerChain, r.Divergent, r.TreedepthHits, r.MeanAccept)
	style := s.Muted
	if r.Divergent > 0 || r.TreedepthHits > 0 {
		style = s.Warn
	}
	return out + "\n" + style.Render(footer)
}

// ResponseScaleTable lists the standard deviation parameters (sigma and
// sdgp) of r in response units. It is empty when r has none.
func (s Styles) ResponseScaleTable(r *diagnostics.Report, p scale.Params, response string) string {
	var rows [][]string
	for _, q := range r.Params {
		if q.Name != "sigma" && !strings.HasPrefix(q.Name, "sdgp_") {
			continue
		}
		rows = append(rows, []string{q.Name,
			num(p.DestandardizeSD(q.Mean), 2), num(p.DestandardizeSD(q.Q025), 2), num(p.DestandardizeSD(q.Q975), 2)})
	}
	if len(rows) == 0 {
		return ""
	}
	return s.table([]string{"parameter (" + response + ")", "mean", "2.5%", "97.5%"}, rows, nil)
}

// ComparisonTable ranks models by elpd_loo.
func (s Styles) ComparisonTable(cmp []loo.Comparison) string {
	rows := make([][]string, len(cmp))
	for i, c := range cmp {
		rows[i] = []string{strconv.Itoa(c.Rank), c.Model, num(c.ElpdLOO, 1), num(c.SE, 1), num(c.ElpdDiff, 1), num(c.SEDiff, 1), num(c.PLOO, 1), num(c.LOOIC, 1)}
	}
	return s.table(
		[]string{"rank", "model", "elpd_loo", "se", "elpd_diff", "se_diff", "p_loo", "looic"},
		rows,
		func(row, col int) lipgloss.Style {
			if row == 0 {
				return s.Good
			}
			return s.Cell
		},
	)
}

// AggregateTable lists grouped summaries; degenerate groups are highlighted.
func (s Styles) AggregateTable(by []string, sums []aggregate.Summary) string {
	headers := append(append([]string{}, by...), "mean", "sd", "n", "se", "low", "high")
	rows := make([][]string, len(sums))
	for i, g := range sums {
		row := append([]string{}, g.Keys...)
		rows[i] = append(row, num(g.Mean, 2), num(g.SD, 2), strconv.Itoa(g.N), num(g.SE, 2), num(g.Low, 2), num(g.High, 2))
	}
	return s.table(headers, rows, func(row, col int) lipgloss.Style {
		if sums[row].Degenerate {
			return s.Warn
		}
		return s.Cell
	})
}

// RunsTable lists stored runs, newest first.
func (s Styles) RunsTable(runs []storage.RunMetadata) string {
	rows := make([][]string, len(runs))
	for i, r := range runs {
		warnings := 0
		for _, m := range r.Models {
			warnings += len(m.Warnings)
		}
		best := "-"
		if len(r.Comparison) > 0 {
			best = r.Comparison[0].Model
		}
		rows[i] = []string{r.ID, r.Timestamp.Format("2006-01-02 15:04"), r.Response, strconv.Itoa(len(r.Models)), best, strconv.Itoa(warnings)}
	}
	return s.table([]string{"id", "time", "response", "models", "preferred", "warnings"}, rows,
		func(row, col int) lipgloss.Style {
			if col == 5 && rows[row][5] != "0" {
				return s.Warn
			}
			return s.Cell
		})
}
