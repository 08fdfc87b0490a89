// Package viz renders analysis results in the terminal.
//
//   - [PlotBands]: posterior mean and interval bands over time per group,
//     with observed aggregate means overlaid
//   - [GeoMap]: braille scatter of predictions over a GeoJSON boundary,
//     denser glyphs for higher quintiles
//   - [PlotKernels]: covariance curves for hypothetical hyperparameter draws
//   - [TracePlot]: sampler traces of one parameter, one series per chain
//   - [Styles]: lipgloss tables for diagnostics, model comparison and runs
//   - [Explorer]: bubbletea viewer over a stored run
//
// # Explorer keys
//
//	j/k   - select model
//	tab   - cycle diagnostics, predictions and trace views
//	h/l   - previous/next parameter in the trace view
//	t     - cycle colour themes
//	q     - quit
package viz
