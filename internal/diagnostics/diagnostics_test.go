package diagnostics

import (
	"encoding/json"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/san-kum/phongp/internal/gp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func iidChains(m, n int, seed uint64) [][]float64 {
	rng := rand.New(rand.NewPCG(seed, 7))
	out := make([][]float64, m)
	for j := range out {
		c := make([]float64, n)
		for i := range c {
			c[i] = rng.NormFloat64()
		}
		out[j] = c
	}
	return out
}

func ar1Chains(m, n int, phi float64, seed uint64) [][]float64 {
	rng := rand.New(rand.NewPCG(seed, 8))
	out := make([][]float64, m)
	for j := range out {
		c := make([]float64, n)
		x := rng.NormFloat64() / math.Sqrt(1-phi*phi)
		for i := range c {
			x = phi*x + rng.NormFloat64()
			c[i] = x
		}
		out[j] = c
	}
	return out
}

func TestAutocovariance_MatchesDirect(t *testing.T) {
	x := []float64{1, 3, 2, 5, 4, 6, 2, 1, 0, 3, 4}
	got := autocovariance(x)
	n := len(x)
	mean := 0.0
	for _, v := range x {
		mean += v
	}
	mean /= float64(n)
	for lag := 0; lag < n; lag++ {
		want := 0.0
		for i := 0; i+lag < n; i++ {
			want += (x[i] - mean) * (x[i+lag] - mean)
		}
		want /= float64(n)
		assert.InDelta(t, want, got[lag], 1e-9, "lag %d", lag)
	}
}

func TestRhat(t *testing.T) {
	assert.Less(t, Rhat(iidChains(4, 1000, 1)), 1.01)

	stuck := iidChains(4, 1000, 2)
	for i := range stuck[3] {
		stuck[3][i] += 3
	}
	assert.Greater(t, Rhat(stuck), 1.5)

	// a trend within each chain shows up through splitting
	trend := iidChains(1, 1000, 3)
	for i := range trend[0] {
		trend[0][i] += 4 * float64(i) / 1000
	}
	assert.Greater(t, Rhat(trend), 1.1)

	assert.True(t, math.IsNaN(Rhat([][]float64{{1}})))
	assert.Equal(t, 1.0, Rhat([][]float64{{2, 2, 2, 2}, {2, 2, 2, 2}}))
}

func TestESS(t *testing.T) {
	iid := ESS(iidChains(4, 1000, 4))
	assert.InDelta(t, 4000, iid, 1000)

	// AR(1) with φ = 0.8 has ESS ≈ N(1-φ)/(1+φ)
	ar := ESS(ar1Chains(4, 1000, 0.8, 5))
	assert.Greater(t, ar, 250.0)
	assert.Less(t, ar, 700.0)
	assert.Less(t, ar, iid)

	assert.True(t, math.IsNaN(ESS([][]float64{{1, 2}})))
}

func TestESS_RankNormalized(t *testing.T) {
	chains := ar1Chains(4, 500, 0.5, 9)
	base := ESS(chains)

	// monotone transforms leave ranks, and so the bulk ESS, unchanged
	warped := make([][]float64, len(chains))
	for j, c := range chains {
		warped[j] = make([]float64, len(c))
		for i, v := range c {
			warped[j][i] = math.Exp(3 * v)
		}
	}
	assert.InDelta(t, base, ESS(warped), 1e-9)

	// heavy tails do not destabilise it
	rng := rand.New(rand.NewPCG(11, 3))
	cauchy := make([][]float64, 4)
	for j := range cauchy {
		cauchy[j] = make([]float64, 1000)
		for i := range cauchy[j] {
			cauchy[j][i] = math.Tan(math.Pi * (rng.Float64() - 0.5))
		}
	}
	assert.InDelta(t, 4000, ESS(cauchy), 1000)
}

func TestESS_Antithetic(t *testing.T) {
	// negatively autocorrelated chains carry more information than
	// independent draws
	ess := ESS(ar1Chains(4, 1000, -0.5, 12))
	assert.Greater(t, ess, 6000.0)
}

func TestRankNormalize_Ties(t *testing.T) {
	z := rankNormalize([][]float64{{1, 2, 2}, {3, 4, 0}})
	assert.Equal(t, z[0][1], z[0][2])
	assert.InDelta(t, -z[0][0], z[1][0], 1e-12)
	assert.Less(t, z[1][2], z[0][0])
	assert.Greater(t, z[1][0], z[0][1])
	assert.InDelta(t, 0, z[0][1], 1e-12)
}

func TestCheck_Warnings(t *testing.T) {
	good := iidChains(2, 400, 6)
	bad := iidChains(2, 400, 7)
	for i := range bad[1] {
		bad[1][i] += 5
	}
	draws := &gp.Draws{Names: []string{"b_Intercept", "sigma"}, Chains: make([][][]float64, 2)}
	for c := 0; c < 2; c++ {
		for i := 0; i < 400; i++ {
			draws.Chains[c] = append(draws.Chains[c], []float64{good[c][i], bad[c][i]})
		}
	}
	stats := []gp.ChainStats{{Divergent: 2}, {Divergent: 1, TreedepthHits: 4}}

	r := Check("m1", draws, stats, Thresholds{MaxRhat: 1.05, MinESSPerChain: 100})
	require.Len(t, r.Params, 2)
	assert.Equal(t, 3, r.Divergent)
	assert.Equal(t, 4, r.TreedepthHits)
	assert.Equal(t, 400, r.DrawsPerChain)
	assert.False(t, r.Converged())
	assert.Greater(t, r.MaxRhat(), 1.5)

	warnings := r.Warnings()
	assert.Contains(t, warnings, "3 divergent transitions after warmup; consider raising adapt_delta")
	var sigmaRhat bool
	for _, w := range warnings {
		if len(w) > 6 && w[:6] == "sigma:" {
			sigmaRhat = true
		}
		assert.NotContains(t, w, "b_Intercept: R-hat")
	}
	assert.True(t, sigmaRhat)
}

func TestCheck_Clean(t *testing.T) {
	c := iidChains(4, 500, 9)
	draws := &gp.Draws{Names: []string{"x"}, Chains: make([][][]float64, 4)}
	for j := range c {
		for _, v := range c[j] {
			draws.Chains[j] = append(draws.Chains[j], []float64{v})
		}
	}
	r := Check("m", draws, nil, Thresholds{MaxRhat: 1.05, MinESSPerChain: 100})
	assert.Empty(t, r.Warnings())
	assert.True(t, r.Converged())
	assert.Greater(t, r.MinESS(), 400.0)
}

func TestCheck_Summary(t *testing.T) {
	draws := &gp.Draws{Names: []string{"x"}, Chains: [][][]float64{{}}}
	for i := 0; i <= 100; i++ {
		draws.Chains[0] = append(draws.Chains[0], []float64{float64(i)})
	}
	r := Check("m", draws, []gp.ChainStats{{MeanAccept: 0.8}}, DefaultThresholds())
	p := r.Params[0]
	assert.InDelta(t, 50, p.Mean, 1e-12)
	assert.InDelta(t, 2.5, p.Q025, 1.5)
	assert.InDelta(t, 97.5, p.Q975, 1.5)
	assert.InDelta(t, 0.8, r.MeanAccept, 1e-12)
}

func TestParamJSONUndefined(t *testing.T) {
	in := Param{Name: "sigma", Mean: 0.5, Rhat: math.NaN(), ESS: math.Inf(1)}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"rhat":null`)

	var out Param
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "sigma", out.Name)
	assert.Equal(t, 0.5, out.Mean)
	assert.True(t, math.IsNaN(out.Rhat))
	assert.True(t, math.IsNaN(out.ESS))
}
