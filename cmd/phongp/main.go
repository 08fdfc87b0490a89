package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/san-kum/phongp/internal/aggregate"
	"github.com/san-kum/phongp/internal/config"
	"github.com/san-kum/phongp/internal/dataset"
	"github.com/san-kum/phongp/internal/diagnostics"
	"github.com/san-kum/phongp/internal/export"
	"github.com/san-kum/phongp/internal/kernel"
	"github.com/san-kum/phongp/internal/logging"
	"github.com/san-kum/phongp/internal/prior"
	"github.com/san-kum/phongp/internal/simulate"
	"github.com/san-kum/phongp/internal/storage"
	"github.com/san-kum/phongp/internal/viz"
	"github.com/san-kum/phongp/internal/workflow"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	dataDir   string
	verbose   bool
	logFormat string
	theme     string
	width     int
	height    int

	// simulate
	outPath string
	seed    uint64
	noise   float64
	reps    int
	times   int
	sites   int

	// aggregate
	response    string
	by          []string
	alpha       float64
	strict      bool
	categorical []string
	plotX       string

	// run
	preset      string
	csvPath     string
	iter        int
	warmup      int
	chains      int
	cores       int
	adaptDelta  float64
	samplerSeed int64
	svgDir      string

	// show / plot
	modelName string
	trace     bool

	// kernels
	kernelName  string
	numDraws    int
	maxDist     float64
	period      float64
	sdgpPrior   string
	lscalePrior string

	logger *zap.Logger
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "phongp",
		Short:        "gaussian process regression for phonetic data",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			logger, err = logging.New(verbose, logFormat != "json")
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultOutput, "run store directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log encoding (console|json)")
	rootCmd.PersistentFlags().StringVar(&theme, "theme", viz.ThemeTerminal.Name, "table theme ("+strings.Join(viz.ThemeNames(), "|")+")")
	rootCmd.PersistentFlags().IntVar(&width, "width", 80, "plot width")
	rootCmd.PersistentFlags().IntVar(&height, "height", 12, "plot height")

	simulateCmd := &cobra.Command{
		Use:       "simulate [f0|sibilant]",
		Short:     "write a synthetic dataset as CSV",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"f0", "sibilant"},
		RunE:      simulateData,
	}
	simulateCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")
	simulateCmd.Flags().Uint64Var(&seed, "seed", 1, "random seed")
	simulateCmd.Flags().Float64Var(&noise, "noise", 0, "observation noise sd")
	simulateCmd.Flags().IntVar(&reps, "reps", 1, "tokens per cell")
	simulateCmd.Flags().IntVar(&times, "times", 10, "time points (f0)")
	simulateCmd.Flags().IntVar(&sites, "sites", 40, "sites (sibilant)")

	aggregateCmd := &cobra.Command{
		Use:   "aggregate [csv]",
		Short: "grouped mean, sd, count and confidence interval",
		Args:  cobra.ExactArgs(1),
		RunE:  aggregateData,
	}
	aggregateCmd.Flags().StringVar(&response, "response", "", "response column")
	aggregateCmd.Flags().StringSliceVar(&by, "by", nil, "grouping columns")
	aggregateCmd.Flags().Float64Var(&alpha, "alpha", config.DefaultAlpha, "two-sided significance level")
	aggregateCmd.Flags().BoolVar(&strict, "strict", false, "fail on single-observation groups")
	aggregateCmd.Flags().StringSliceVar(&categorical, "categorical", nil, "columns read as categorical")
	aggregateCmd.Flags().StringVar(&plotX, "plot", "", "numeric grouping column to plot means against")
	_ = aggregateCmd.MarkFlagRequired("response")
	_ = aggregateCmd.MarkFlagRequired("by")

	runCmd := &cobra.Command{
		Use:   "run [config.yaml]",
		Short: "run the full analysis pipeline and store the results",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runAnalysis,
	}
	runCmd.Flags().StringVar(&preset, "preset", "", "use a preset analysis (e.g. f0/quick)")
	runCmd.Flags().StringVar(&csvPath, "csv", "", "read data from this CSV instead of the configured source")
	runCmd.Flags().IntVar(&iter, "iter", 0, "iterations per chain including warmup")
	runCmd.Flags().IntVar(&warmup, "warmup", 0, "warmup iterations per chain")
	runCmd.Flags().IntVar(&chains, "chains", 0, "number of chains")
	runCmd.Flags().IntVar(&cores, "cores", 0, "chains run in parallel")
	runCmd.Flags().Float64Var(&adaptDelta, "adapt-delta", 0, "target acceptance statistic")
	runCmd.Flags().Int64Var(&samplerSeed, "seed", 0, "sampler seed")
	runCmd.Flags().BoolVar(&strict, "strict", false, "fail on single-observation groups")
	runCmd.Flags().StringVar(&svgDir, "svg", "", "also write prediction plots as SVG to this directory")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id|latest]",
		Short: "diagnostics and model comparison of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}
	showCmd.Flags().StringVar(&modelName, "model", "", "only this model")
	showCmd.Flags().BoolVar(&trace, "trace", false, "plot sampler traces")

	plotCmd := &cobra.Command{
		Use:   "plot [run_id|latest]",
		Short: "plot stored posterior predictions",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&modelName, "model", "", "only this model")
	plotCmd.Flags().StringVar(&svgDir, "svg", "", "write SVG files to this directory")

	exploreCmd := &cobra.Command{
		Use:   "explore [run_id|latest]",
		Short: "browse a stored run interactively",
		Args:  cobra.ExactArgs(1),
		RunE:  exploreRun,
	}

	kernelsCmd := &cobra.Command{
		Use:   "kernels",
		Short: "covariance curves for hypothetical hyperparameter draws",
		Args:  cobra.NoArgs,
		RunE:  plotKernels,
	}
	kernelsCmd.Flags().StringVar(&kernelName, "kernel", "squared_exp", "kernel ("+strings.Join(kernel.NewRegistry().List(), "|")+")")
	kernelsCmd.Flags().IntVar(&numDraws, "draws", 5, "number of draws")
	kernelsCmd.Flags().Float64Var(&maxDist, "max-dist", 3, "largest distance plotted")
	kernelsCmd.Flags().Float64Var(&period, "period", 1, "period of periodic kernels")
	kernelsCmd.Flags().StringVar(&sdgpPrior, "sdgp", "student_t(3, 0, 1)", "prior on the GP standard deviation")
	kernelsCmd.Flags().StringVar(&lscalePrior, "lscale", "inv_gamma(2, 0.5)", "prior on the length-scale")
	kernelsCmd.Flags().Uint64Var(&seed, "seed", 1, "random seed")

	presetsCmd := &cobra.Command{
		Use:   "presets [analysis/preset]",
		Short: "list presets, or print one as YAML",
		Args:  cobra.MaximumNArgs(1),
		RunE:  showPresets,
	}

	rootCmd.AddCommand(simulateCmd, aggregateCmd, runCmd, listCmd, showCmd, plotCmd, exploreCmd, kernelsCmd, presetsCmd)
	return rootCmd
}

func styles() viz.Styles { return viz.NewStyles(viz.GetTheme(theme)) }

func simulateData(cmd *cobra.Command, args []string) error {
	var t *dataset.Table
	switch args[0] {
	case "f0":
		opts := simulate.DefaultF0Options()
		opts.Seed, opts.Reps, opts.Times = seed, reps, times
		if cmd.Flags().Changed("noise") {
			opts.Noise = noise
		}
		t = simulate.F0(opts)
	case "sibilant":
		opts := simulate.DefaultSibilantOptions()
		opts.Seed, opts.Sites = seed, sites
		if cmd.Flags().Changed("reps") {
			opts.Reps = reps
		}
		if cmd.Flags().Changed("noise") {
			opts.Noise = noise
		}
		t = simulate.Sibilant(opts)
	default:
		return fmt.Errorf("unknown dataset: %s (available: f0, sibilant)", args[0])
	}

	if outPath == "" {
		return t.WriteCSV(cmd.OutOrStdout())
	}
	if err := t.SaveCSV(outPath); err != nil {
		return err
	}
	logger.Info("dataset written", zap.String("path", outPath), zap.Int("rows", t.Rows()))
	return nil
}

func aggregateData(cmd *cobra.Command, args []string) error {
	t, err := dataset.LoadCSV(args[0], dataset.ReadOptions{Categorical: categorical})
	if err != nil {
		return err
	}
	opts := []aggregate.Option{aggregate.Alpha(alpha)}
	if strict {
		opts = append(opts, aggregate.Strict())
	}
	sums, err := aggregate.Summarize(t, response, by, opts...)
	if err != nil {
		return err
	}
	used := 0
	for _, s := range sums {
		used += s.N
		if s.Degenerate {
			logger.Warn("single observation in group", zap.String("group", s.Key()))
		}
	}
	if dropped := t.Rows() - used; dropped > 0 {
		logger.Warn("rows with missing values left out", zap.Int("rows", dropped))
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, styles().AggregateTable(by, sums))
	if plotX == "" {
		return nil
	}

	agg, err := aggregate.ToTable(t, by, sums)
	if err != nil {
		return err
	}
	groups := make([]string, 0, len(by))
	for _, b := range by {
		if b != plotX {
			groups = append(groups, b)
		}
	}
	bands, err := viz.Bands(agg, plotX, groups)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, viz.PlotBands(bands, width, height))
	return nil
}

// resolveConfig loads the config file or preset and applies flag overrides.
func resolveConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	var cfg *config.Config
	switch {
	case preset != "":
		analysis, name, ok := strings.Cut(preset, "/")
		if !ok {
			name = "tutorial"
		}
		cfg = config.GetPreset(analysis, name)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available analyses: %v)", preset, config.Analyses())
		}
	case len(args) == 1:
		var err error
		if cfg, err = config.Load(args[0]); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	default:
		return nil, errors.New("either a config file or --preset is required")
	}

	flags := cmd.Flags()
	if csvPath != "" {
		cfg.Data.Path, cfg.Data.Simulate = csvPath, ""
	}
	if flags.Changed("iter") {
		cfg.Sampler.Iter = iter
	}
	if flags.Changed("warmup") {
		cfg.Sampler.Warmup = warmup
	}
	if flags.Changed("chains") {
		cfg.Sampler.Chains = chains
	}
	if flags.Changed("cores") {
		cfg.Sampler.Cores = cores
	}
	if flags.Changed("adapt-delta") {
		cfg.Sampler.AdaptDelta = adaptDelta
	}
	if flags.Changed("seed") {
		cfg.Sampler.Seed = samplerSeed
	}
	if flags.Changed("strict") {
		cfg.Aggregate.Strict = strict
	}
	if cmd.Flags().Changed("data") || cfg.Output == "" {
		cfg.Output = dataDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runAnalysis(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	st := storage.New(cfg.Output)
	if err := st.Init(); err != nil {
		return err
	}

	s, err := workflow.NewSession(cfg, logger)
	if err != nil {
		return err
	}
	logger.Info("starting analysis",
		zap.String("analysis", cfg.Name),
		zap.Int("models", len(cfg.Models)),
		zap.Int("rows", s.Data().Rows()),
		zap.Stringer("scale", s.Scale()))

	res, err := s.Run(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	sty := styles()
	if len(res.Aggregate) > 0 {
		fmt.Fprintln(out, sty.Title.Render("aggregate"))
		fmt.Fprintln(out, sty.AggregateTable(cfg.Aggregate.By, res.Aggregate))
	}
	var observed *dataset.Table
	if len(res.Aggregate) > 0 {
		if observed, err = aggregate.ToTable(s.Data(), cfg.Aggregate.By, res.Aggregate); err != nil {
			return err
		}
	}
	boundary, err := loadBoundary(cfg.Data.Boundary)
	if err != nil {
		return err
	}

	for _, mr := range res.Models {
		fmt.Fprintln(out, sty.Title.Render(mr.Model.Name()))
		printReport(out, sty, mr.Report)
		if mr.Predictions == nil {
			continue
		}
		plot, err := viz.PlotPredictions(mr.Predictions, observed, boundary, width, height)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, plot)
		if svgDir != "" {
			if err := writeSVG(svgDir, cfg.Name+"_"+mr.Model.Name(), mr.Predictions, observed, boundary); err != nil {
				return err
			}
		}
	}
	if len(res.Comparison) > 0 {
		fmt.Fprintln(out, sty.Title.Render("model comparison (loo)"))
		fmt.Fprintln(out, sty.ComparisonTable(res.Comparison))
	}

	id, err := s.Record(st, res)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "run %s completed in %s\n", id, res.Elapsed.Round(time.Millisecond))
	return nil
}

func printReport(out io.Writer, sty viz.Styles, r *diagnostics.Report) {
	if r == nil {
		return
	}
	fmt.Fprintln(out, sty.DiagnosticsTable(r))
	for _, w := range r.Warnings() {
		fmt.Fprintln(out, sty.Warn.Render("! "+w))
	}
}

func loadBoundary(path string) (*viz.Boundary, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); err != nil {
		logger.Warn("boundary file not readable, plotting without it", zap.String("path", path), zap.Error(err))
		return nil, nil
	}
	return viz.LoadBoundary(path)
}

func writeSVG(dir, name string, pred, observed *dataset.Table, boundary *viz.Boundary) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	var doc string
	if viz.IsGeographic(pred) {
		lon, _ := pred.Numeric("lon")
		lat, _ := pred.Numeric("lat")
		mean, err := pred.Numeric("mean")
		if err != nil {
			return err
		}
		doc = export.GeoToSVG(lon, lat, mean, boundary, 600, 600)
	} else {
		bands, err := viz.PredictionBands(pred, observed)
		if err != nil {
			return err
		}
		doc = export.BandsToSVG(bands, 640, 200)
	}
	path := filepath.Join(dir, name+".svg")
	if err := export.WriteFile(path, doc); err != nil {
		return err
	}
	logger.Info("svg written", zap.String("path", path))
	return nil
}

// resolveRun maps "latest" to the most recent run.
func resolveRun(st *storage.Store, id string) (*storage.RunMetadata, error) {
	if id == "latest" {
		return st.Latest()
	}
	return st.Load(id)
}

func selectedModels(meta *storage.RunMetadata) ([]storage.ModelRecord, error) {
	if modelName == "" {
		return meta.Models, nil
	}
	for _, m := range meta.Models {
		if m.Name == modelName {
			return []storage.ModelRecord{m}, nil
		}
	}
	return nil, fmt.Errorf("run %s has no model %q", meta.ID, modelName)
}

func listRuns(cmd *cobra.Command, args []string) error {
	runs, err := storage.New(dataDir).List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no runs found")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), styles().RunsTable(runs))
	return nil
}

func showRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := resolveRun(st, args[0])
	if err != nil {
		return err
	}
	models, err := selectedModels(meta)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	sty := styles()
	fmt.Fprintf(out, "%s  %s\n", sty.Title.Render(meta.ID), sty.Muted.Render(meta.Timestamp.Format(time.RFC3339)))
	fmt.Fprintf(out, "response %s  scale %s\n", meta.Response, meta.Scale)
	fmt.Fprintf(out, "sampler  iter %d  warmup %d  chains %d  adapt_delta %.2f  max_treedepth %d  seed %d\n\n",
		meta.Sampler.Iter, meta.Sampler.Warmup, meta.Sampler.Chains, meta.Sampler.AdaptDelta, meta.Sampler.MaxTreedepth, meta.Sampler.Seed)

	for _, m := range models {
		fmt.Fprintf(out, "%s  %s  %s\n", sty.Title.Render(m.Name), m.Formula, sty.Muted.Render(m.Elapsed.Round(time.Millisecond).String()))
		for term, d := range m.Divisors {
			fmt.Fprintf(out, "  %s inputs divided by %.4g\n", term, d)
		}
		printReport(out, sty, m.Diagnostics)
		if m.Diagnostics != nil {
			if tbl := sty.ResponseScaleTable(m.Diagnostics, meta.Scale, meta.Response); tbl != "" {
				fmt.Fprintln(out, tbl)
			}
		}

		if !trace {
			continue
		}
		draws, err := st.LoadDraws(meta.ID, m.Name)
		if err != nil {
			return err
		}
		for _, name := range draws.Names {
			plot, err := viz.TracePlot(draws, name, width, height)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, plot)
			fmt.Fprintln(out)
		}
	}
	if len(meta.Comparison) > 0 && modelName == "" {
		fmt.Fprintln(out, sty.Title.Render("model comparison (loo)"))
		fmt.Fprintln(out, sty.ComparisonTable(meta.Comparison))
	}
	return nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := resolveRun(st, args[0])
	if err != nil {
		return err
	}
	models, err := selectedModels(meta)
	if err != nil {
		return err
	}
	observed, err := st.LoadAggregate(meta.ID)
	if err != nil && !errors.Is(err, storage.ErrRunNotFound) {
		return err
	}
	boundary, err := loadBoundary(meta.Boundary)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	plotted := 0
	for _, m := range models {
		pred, err := st.LoadPredictions(meta.ID, m.Name)
		if errors.Is(err, storage.ErrRunNotFound) {
			logger.Debug("no predictions stored", zap.String("model", m.Name))
			continue
		}
		if err != nil {
			return err
		}
		plot, err := viz.PlotPredictions(pred, observed, boundary, width, height)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, styles().Title.Render(m.Name))
		fmt.Fprintln(out, plot)
		if svgDir != "" {
			if err := writeSVG(svgDir, meta.Analysis+"_"+m.Name, pred, observed, boundary); err != nil {
				return err
			}
		}
		plotted++
	}
	if plotted == 0 {
		return fmt.Errorf("run %s has no stored predictions; add a predict.grid to the config", meta.ID)
	}
	return nil
}

func exploreRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := resolveRun(st, args[0])
	if err != nil {
		return err
	}
	e, err := viz.OpenExplorer(st, meta.ID)
	if err != nil {
		return err
	}
	return viz.RunExplorer(e)
}

func plotKernels(cmd *cobra.Command, args []string) error {
	priors, err := prior.ParseSet(map[string]string{"sdgp": sdgpPrior, "lscale": lscalePrior})
	if err != nil {
		return err
	}
	draws, err := viz.DrawKernels(priors, numDraws, seed)
	if err != nil {
		return err
	}
	curves, err := viz.KernelCurves(kernel.NewRegistry(), kernelName, draws, map[string]float64{"period": period}, maxDist, width)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for i, d := range draws {
		fmt.Fprintf(out, "draw %d: sdgp %.3f  lscale %.3f\n", i+1, d.Amp, d.Length)
	}
	fmt.Fprintln(out, viz.PlotKernels(curves, maxDist, kernelName, width, height))
	return nil
}

func showPresets(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if len(args) == 0 {
		for _, a := range config.Analyses() {
			fmt.Fprintf(out, "%s:\n", a)
			for _, p := range config.ListPresets(a) {
				fmt.Fprintf(out, "  %s/%s\n", a, p)
			}
		}
		return nil
	}
	analysis, name, ok := strings.Cut(args[0], "/")
	if !ok {
		return fmt.Errorf("preset must be analysis/name, got %q", args[0])
	}
	cfg := config.GetPreset(analysis, name)
	if cfg == nil {
		return fmt.Errorf("unknown preset: %s (available: %v)", args[0], config.ListPresets(analysis))
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}
