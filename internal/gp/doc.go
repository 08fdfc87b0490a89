// Package gp is the Bayesian inference engine behind the workflow.
//
// A model is a Gaussian response with fixed effects and squared-exponential
// Gaussian process terms:
//
//	y = Xβ + Σ_j f_j(x) + ε,   f_j ~ GP(0, k_j),   ε ~ N(0, σ²)
//
// The latent functions are marginalised analytically, so the sampler works on
// the fixed effects, the amplitude (sdgp) and length-scale (lscale) of every
// process, and σ. Positive parameters are sampled on the log scale.
//
// # Sampling
//
// [Fit] runs the No-U-Turn sampler with dual-averaging step size adaptation
// towards SamplerConfig.AdaptDelta and windowed diagonal metric adaptation
// during warmup. Chains run concurrently, at most SamplerConfig.Cores at a
// time; chain c is seeded with Seed+c.
//
//	def := gp.ModelDef{Name: "m1", Formula: f, Priors: priors, Sampler: gp.DefaultSamplerConfig()}
//	m, err := gp.Fit(ctx, def, data)
//	preds, err := m.PosteriorPredict(ctx, grid, gp.PredictOptions{NDraws: 500})
//
// # Cost
//
// Every log-density evaluation factorises an n×n covariance matrix. Processes
// partitioned by a factor add one amplitude and one length-scale per level.
package gp
