package kernel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSquaredExp_ZeroDistance(t *testing.T) {
	for _, amp := range []float64{0.1, 1, 3.5, 40} {
		for _, length := range []float64{0.01, 1, 25} {
			k := NewSquaredExp(amp, length)
			assert.InDelta(t, amp*amp, k.Cov(0), 1e-12)
		}
	}
}

func TestSquaredExp_DecaysToZero(t *testing.T) {
	for _, amp := range []float64{0.1, 1, 40} {
		for _, length := range []float64{0.01, 1, 25} {
			k := NewSquaredExp(amp, length)
			prev := k.Cov(0)
			for _, d := range []float64{0.001, 0.1, 1, 10, 100, 1000} {
				v := k.Cov(d)
				assert.LessOrEqual(t, v, prev)
				assert.GreaterOrEqual(t, v, 0.0)
				prev = v
			}
			assert.Less(t, k.Cov(1e3*length), 1e-12)
		}
	}
}

func TestSquaredExp_KnownValue(t *testing.T) {
	k := NewSquaredExp(2, 0.5)
	assert.InDelta(t, 4*math.Exp(-2), k.Cov(1), 1e-12)
}

func TestOtherKernels(t *testing.T) {
	e := Exponential{Amp: 1, Length: 2}
	assert.InDelta(t, math.Exp(-0.5), e.Cov(1), 1e-12)

	p := Periodic{Amp: 1, Length: 1, Period: 2}
	assert.InDelta(t, 1.0, p.Cov(2), 1e-12, "periodic kernel repeats every period")
	assert.InDelta(t, p.Cov(0.3), p.Cov(2.3), 1e-12)

	prod := Product{Factors: []Kernel{e, p}}
	assert.InDelta(t, e.Cov(0.7)*p.Cov(0.7), prod.Cov(0.7), 1e-12)
	assert.Equal(t, "exponential*periodic", prod.Name())
}

func TestMatrix(t *testing.T) {
	points := make([][]float64, 100)
	for i := range points {
		points[i] = []float64{float64(i) / 10}
	}
	k := NewSquaredExp(1.5, 0.8)
	m := Matrix(points, k)

	require.Equal(t, 100, m.SymmetricDim())
	for i := 0; i < 100; i++ {
		assert.InDelta(t, 2.25, m.At(i, i), 1e-12)
		for j := 0; j < 100; j++ {
			assert.InDelta(t, m.At(i, j), m.At(j, i), 1e-15)
		}
	}
	assert.InDelta(t, k.Cov(0.3), m.At(2, 5), 1e-12)

	c := Cross(points[:3], points, k)
	r, cols := c.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 100, cols)
	assert.InDelta(t, k.Cov(4.8), c.At(2, 50), 1e-12)
}

func TestDistance(t *testing.T) {
	assert.Equal(t, 3.0, Distance([]float64{1}, []float64{4}))
	assert.InDelta(t, 5.0, Distance([]float64{0, 0}, []float64{3, 4}), 1e-12)
	assert.InDelta(t, 5.0, MaxDistance([][]float64{{0, 0}, {3, 4}, {1, 1}}), 1e-12)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"exponential", "local_periodic", "periodic", "squared_exp"}, r.List())

	k, err := r.Get("squared_exp", map[string]float64{"amp": 1, "length": 2})
	require.NoError(t, err)
	assert.Equal(t, "squared_exp", k.Name())

	_, err = r.Get("squared_exp", map[string]float64{"amp": 1})
	assert.Error(t, err)

	_, err = r.Get("periodic", map[string]float64{"amp": 1, "length": 1})
	assert.Error(t, err)

	lp, err := r.Get("local_periodic", map[string]float64{"amp": 1, "length": 1, "period": 3})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, lp.Cov(0), 1e-12)

	_, err = r.Get("matern", nil)
	assert.Error(t, err)
}
