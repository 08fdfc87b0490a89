package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/phongp/internal/dataset"
	"github.com/san-kum/phongp/internal/diagnostics"
	"github.com/san-kum/phongp/internal/gp"
	"github.com/san-kum/phongp/internal/loo"
	"github.com/san-kum/phongp/internal/scale"
)

var ErrRunNotFound = errors.New("storage: run not found")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// ModelRecord describes one fitted model of a run.
type ModelRecord struct {
	Name        string              `json:"name"`
	Formula     string              `json:"formula"`
	Priors      map[string]string   `json:"priors"`
	Elapsed     time.Duration       `json:"elapsed_ns"`
	Divisors    map[string]float64  `json:"gp_divisors,omitempty"`
	Chains      []gp.ChainStats     `json:"chains"`
	Diagnostics *diagnostics.Report `json:"diagnostics"`
	Warnings    []string            `json:"warnings,omitempty"`
}

type RunMetadata struct {
	ID          string           `json:"id"`
	Analysis    string           `json:"analysis"`
	Timestamp   time.Time        `json:"timestamp"`
	Response    string           `json:"response"`
	Scale       scale.Params     `json:"scale"`
	Sampler     gp.SamplerConfig `json:"sampler"`
	AggregateBy []string         `json:"aggregate_by,omitempty"`
	GridAxes    []string         `json:"grid_axes,omitempty"`
	Boundary    string           `json:"boundary,omitempty"`
	Models      []ModelRecord    `json:"models"`
	Comparison  []loo.Comparison `json:"comparison,omitempty"`
}

// Artifacts are the tables written next to the metadata.
type Artifacts struct {
	Aggregate   *dataset.Table
	Draws       map[string]*gp.Draws
	Predictions map[string]*dataset.Table
}

func (s *Store) newID(analysis string) string {
	return fmt.Sprintf("%s_%s_%s", analysis, time.Now().Format("20060102-150405"), uuid.NewString()[:8])
}

// Save writes a new run directory and returns its ID. Nothing is left
// behind when a write fails.
func (s *Store) Save(meta RunMetadata, art Artifacts) (string, error) {
	meta.ID = s.newID(meta.Analysis)
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}
	if err := writeRun(runDir, meta, art); err != nil {
		os.RemoveAll(runDir)
		return "", err
	}
	return meta.ID, nil
}

func writeRun(runDir string, meta RunMetadata, art Artifacts) error {
	if err := writeJSON(filepath.Join(runDir, "metadata.json"), meta); err != nil {
		return err
	}
	if art.Aggregate != nil {
		if err := art.Aggregate.SaveCSV(filepath.Join(runDir, "aggregate.csv")); err != nil {
			return err
		}
	}
	for name, d := range art.Draws {
		if err := writeDraws(filepath.Join(runDir, "draws_"+name+".csv"), d); err != nil {
			return fmt.Errorf("draws %s: %w", name, err)
		}
	}
	for name, t := range art.Predictions {
		if err := t.SaveCSV(filepath.Join(runDir, "predictions_"+name+".csv")); err != nil {
			return fmt.Errorf("predictions %s: %w", name, err)
		}
	}
	return nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeDraws(path string, d *gp.Draws) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append([]string{"chain", "iteration"}, d.Names...)
	if err := w.Write(header); err != nil {
		return err
	}
	for c, chain := range d.Chains {
		for i, draw := range chain {
			row := make([]string, 0, len(header))
			row = append(row, strconv.Itoa(c), strconv.Itoa(i))
			for _, v := range draw {
				row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

// List returns every readable run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Latest returns the most recent run.
func (s *Store) Latest() (*RunMetadata, error) {
	runs, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrRunNotFound
	}
	return &runs[0], nil
}

func (s *Store) LoadAggregate(runID string) (*dataset.Table, error) {
	return s.loadTable(runID, "aggregate.csv")
}

func (s *Store) LoadPredictions(runID, model string) (*dataset.Table, error) {
	return s.loadTable(runID, "predictions_"+model+".csv")
}

func (s *Store) loadTable(runID, name string) (*dataset.Table, error) {
	path := filepath.Join(s.baseDir, runID, name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s/%s", ErrRunNotFound, runID, name)
	}
	return dataset.LoadCSV(path, dataset.ReadOptions{})
}

// LoadDraws reads the draws of one model back into chains.
func (s *Store) LoadDraws(runID, model string) (*gp.Draws, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "draws_"+model+".csv"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrRunNotFound, runID, model)
		}
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("draws %s: empty file", model)
	}
	d := &gp.Draws{Names: records[0][2:]}
	for _, rec := range records[1:] {
		c, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, fmt.Errorf("draws %s: chain %q: %w", model, rec[0], err)
		}
		for len(d.Chains) <= c {
			d.Chains = append(d.Chains, nil)
		}
		row := make([]float64, len(rec)-2)
		for k, cell := range rec[2:] {
			if row[k], err = strconv.ParseFloat(cell, 64); err != nil {
				return nil, fmt.Errorf("draws %s: %w", model, err)
			}
		}
		d.Chains[c] = append(d.Chains[c], row)
	}
	return d, nil
}
