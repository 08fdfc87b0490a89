package viz

import (
	"errors"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/san-kum/phongp/internal/dataset"
	"github.com/san-kum/phongp/internal/gp"
	"github.com/san-kum/phongp/internal/storage"
)

const (
	viewSummary = iota
	viewPredictions
	viewTrace
	numViews
)

var viewNames = [numViews]string{"diagnostics", "predictions", "trace"}

// Explorer is a bubbletea model browsing the models of a stored run.
type Explorer struct {
	run         *storage.RunMetadata
	draws       map[string]*gp.Draws
	predictions map[string]*dataset.Table
	observed    *dataset.Table
	boundary    *Boundary

	cursor, view, param, theme int
	styles                     Styles
	width, height              int
}

// OpenExplorer loads a run and the draws and predictions of its models.
func OpenExplorer(store *storage.Store, runID string) (*Explorer, error) {
	run, err := store.Load(runID)
	if err != nil {
		return nil, err
	}
	e := NewExplorer(run)
	for _, m := range run.Models {
		d, err := store.LoadDraws(run.ID, m.Name)
		if err != nil {
			return nil, err
		}
		e.draws[m.Name] = d
		p, err := store.LoadPredictions(run.ID, m.Name)
		switch {
		case err == nil:
			e.predictions[m.Name] = p
		case !errors.Is(err, storage.ErrRunNotFound):
			return nil, err
		}
	}
	if e.observed, err = store.LoadAggregate(run.ID); err != nil && !errors.Is(err, storage.ErrRunNotFound) {
		return nil, err
	}
	if run.Boundary != "" {
		if _, err := os.Stat(run.Boundary); err == nil {
			if e.boundary, err = LoadBoundary(run.Boundary); err != nil {
				return nil, err
			}
		}
	}
	return e, nil
}

func NewExplorer(run *storage.RunMetadata) *Explorer {
	return &Explorer{
		run:         run,
		draws:       make(map[string]*gp.Draws),
		predictions: make(map[string]*dataset.Table),
		styles:      NewStyles(Themes[0]),
		width:       100,
		height:      30,
	}
}

func (e *Explorer) Init() tea.Cmd { return nil }

func (e *Explorer) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		e.width, e.height = msg.Width, msg.Height
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return e, tea.Quit
		case "up", "k":
			if e.cursor > 0 {
				e.cursor--
				e.param = 0
			}
		case "down", "j":
			if e.cursor < len(e.run.Models)-1 {
				e.cursor++
				e.param = 0
			}
		case "tab":
			e.view = (e.view + 1) % numViews
		case "shift+tab":
			e.view = (e.view + numViews - 1) % numViews
		case "left", "h":
			if e.param > 0 {
				e.param--
			}
		case "right", "l":
			if d := e.currentDraws(); d != nil && e.param < len(d.Names)-1 {
				e.param++
			}
		case "t":
			e.theme = (e.theme + 1) % len(Themes)
			e.styles = NewStyles(Themes[e.theme])
		}
	}
	return e, nil
}

func (e *Explorer) currentModel() *storage.ModelRecord {
	if len(e.run.Models) == 0 {
		return nil
	}
	return &e.run.Models[e.cursor]
}

func (e *Explorer) currentDraws() *gp.Draws {
	m := e.currentModel()
	if m == nil {
		return nil
	}
	return e.draws[m.Name]
}

func (e *Explorer) View() string {
	s := e.styles
	var b strings.Builder
	b.WriteString("\n  " + s.Title.Render(strings.ToUpper(e.run.Analysis)) + "  " + s.Muted.Render(e.run.ID) + "\n")
	b.WriteString("  " + s.Separator(e.width-4) + "\n\n")

	for i, m := range e.run.Models {
		marker, name := "  ", s.Muted.Render(m.Name)
		if i == e.cursor {
			marker, name = s.Key.Render("▸ "), s.Title.Render(m.Name)
		}
		b.WriteString(fmt.Sprintf("  %s%s  %s\n", marker, name, s.Muted.Render(m.Formula)))
	}
	b.WriteString("\n")

	tabs := make([]string, numViews)
	for i, n := range viewNames {
		if i == e.view {
			tabs[i] = s.Key.Render("[" + n + "]")
		} else {
			tabs[i] = s.Muted.Render(" " + n + " ")
		}
	}
	b.WriteString("  " + strings.Join(tabs, " ") + "\n\n")
	b.WriteString(e.body())
	b.WriteString("\n  " + s.Key.Render("j/k") + s.Muted.Render(" model  ") +
		s.Key.Render("tab") + s.Muted.Render(" view  ") +
		s.Key.Render("h/l") + s.Muted.Render(" parameter  ") +
		s.Key.Render("t") + s.Muted.Render(" theme  ") +
		s.Key.Render("q") + s.Muted.Render(" quit") + "\n")
	return b.String()
}

func (e *Explorer) body() string {
	s := e.styles
	m := e.currentModel()
	if m == nil {
		return s.Muted.Render("  no models in this run") + "\n"
	}
	plotW, plotH := max(e.width-16, 20), max(e.height/3, 6)

	switch e.view {
	case viewSummary:
		var b strings.Builder
		if m.Diagnostics != nil {
			b.WriteString(s.DiagnosticsTable(m.Diagnostics) + "\n")
			if tbl := s.ResponseScaleTable(m.Diagnostics, e.run.Scale, e.run.Response); tbl != "" {
				b.WriteString(tbl + "\n")
			}
		}
		for _, w := range m.Warnings {
			b.WriteString(s.Warn.Render("! "+w) + "\n")
		}
		if len(e.run.Comparison) > 0 {
			b.WriteString("\n" + s.ComparisonTable(e.run.Comparison) + "\n")
		}
		return b.String()
	case viewPredictions:
		pred, ok := e.predictions[m.Name]
		if !ok {
			return s.Muted.Render("  no predictions stored for "+m.Name) + "\n"
		}
		out, err := PlotPredictions(pred, e.observed, e.boundary, plotW, plotH)
		if err != nil {
			return s.Bad.Render(err.Error()) + "\n"
		}
		return out
	case viewTrace:
		d := e.draws[m.Name]
		if d == nil || len(d.Names) == 0 {
			return s.Muted.Render("  no draws stored for "+m.Name) + "\n"
		}
		name := d.Names[e.param]
		out, err := TracePlot(d, name, plotW, plotH)
		if err != nil {
			return s.Bad.Render(err.Error()) + "\n"
		}
		chains, _ := d.Param(name)
		var spark strings.Builder
		for c, chain := range chains {
			spark.WriteString(fmt.Sprintf("  chain %d %s\n", c, Sparkline(chain, plotW)))
		}
		return out + "\n\n" + s.Muted.Render(spark.String())
	}
	return ""
}

func RunExplorer(e *Explorer) error {
	_, err := tea.NewProgram(e, tea.WithAltScreen()).Run()
	return err
}
