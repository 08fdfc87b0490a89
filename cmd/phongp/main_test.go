package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/san-kum/phongp/internal/config"
	"github.com/san-kum/phongp/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append(args, "--log-format", "json"))
	err := cmd.Execute()
	return buf.String(), err
}

func TestSimulateStdout(t *testing.T) {
	out, err := execute(t, "simulate", "f0", "--times", "3")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, "time,context,sex,location,f0", lines[0])
	assert.Len(t, lines, 1+3*2*2*2)

	_, err = execute(t, "simulate", "vowels")
	assert.Error(t, err)
}

func TestAggregateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f0.csv")
	_, err := execute(t, "simulate", "f0", "--reps", "2", "--noise", "5", "-o", path)
	require.NoError(t, err)

	out, err := execute(t, "aggregate", path, "--response", "f0", "--by", "time,context", "--plot", "time")
	require.NoError(t, err)
	assert.Contains(t, out, "falling")
	assert.Contains(t, out, "rising")
	assert.Contains(t, out, "mean")

	_, err = execute(t, "aggregate", path, "--by", "time")
	assert.Error(t, err, "response is required")
}

func TestPresetsCommand(t *testing.T) {
	out, err := execute(t, "presets")
	require.NoError(t, err)
	assert.Contains(t, out, "f0/quick")
	assert.Contains(t, out, "sibilant/tutorial")

	out, err = execute(t, "presets", "f0/quick")
	require.NoError(t, err)
	cfg, err := config.Parse([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, "f0", cfg.Name)
	assert.Equal(t, 400, cfg.Sampler.Iter)

	_, err = execute(t, "presets", "f0/nope")
	assert.Error(t, err)
	_, err = execute(t, "presets", "f0")
	assert.Error(t, err)
}

func TestKernelsCommand(t *testing.T) {
	out, err := execute(t, "kernels", "--draws", "3", "--width", "40", "--height", "6")
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(out, "draw "))
	assert.Contains(t, out, "squared_exp")

	_, err = execute(t, "kernels", "--kernel", "matern")
	assert.Error(t, err)
	_, err = execute(t, "kernels", "--sdgp", "laplace(0, 1)")
	assert.Error(t, err)
}

func TestRunNeedsConfig(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "run", "--data", dir)
	assert.Error(t, err)
	_, err = execute(t, "run", "--preset", "vowels/quick", "--data", dir)
	assert.Error(t, err)
	_, err = execute(t, "run", filepath.Join(dir, "missing.yaml"), "--data", dir)
	assert.Error(t, err)
}

func TestEmptyStore(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "list", "--data", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "no runs found")

	_, err = execute(t, "show", "latest", "--data", dir)
	assert.Error(t, err)
	_, err = execute(t, "plot", "nope", "--data", dir)
	assert.Error(t, err)
}

func TestRunAndInspect(t *testing.T) {
	if testing.Short() {
		t.Skip("fits models")
	}
	dir := t.TempDir()
	cfg := config.GetPreset("f0", "quick")
	require.NotNil(t, cfg)
	cfg.Models = cfg.Models[:2]
	cfg.Predict.Grid[0].N = 5
	cfg.Predict.NDraws = 40
	cfg.LOO.NDraws = 40
	cfgPath := filepath.Join(dir, "f0.yaml")
	require.NoError(t, config.Save(cfgPath, cfg))

	store := filepath.Join(dir, "runs")
	svg := filepath.Join(dir, "svg")
	out, err := execute(t, "run", cfgPath, "--data", store, "--iter", "80", "--warmup", "40", "--chains", "2", "--svg", svg)
	require.NoError(t, err)
	assert.Contains(t, out, "model comparison")
	assert.Contains(t, out, "completed in")

	out, err = execute(t, "list", "--data", store)
	require.NoError(t, err)
	assert.Contains(t, out, "f0_")

	out, err = execute(t, "show", "latest", "--data", store, "--model", "time", "--trace")
	require.NoError(t, err)
	assert.Contains(t, out, "lscale_gptime")
	assert.Contains(t, out, "parameter (f0)")
	assert.NotContains(t, out, "model comparison")

	_, err = execute(t, "show", "latest", "--data", store, "--model", "nope")
	assert.Error(t, err)

	plotDir := filepath.Join(dir, "plots")
	out, err = execute(t, "plot", "latest", "--data", store, "--svg", plotDir)
	require.NoError(t, err)
	assert.Contains(t, out, "context")
	files, err := os.ReadDir(plotDir)
	require.NoError(t, err)
	assert.Len(t, files, 2)

	files, err = os.ReadDir(svg)
	require.NoError(t, err)
	assert.Len(t, files, 2)

	runs, err := os.ReadDir(store)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	pred, err := dataset.LoadCSV(filepath.Join(store, runs[0].Name(), "predictions_context.csv"), dataset.ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 5*2*2*2, pred.Rows())
}
