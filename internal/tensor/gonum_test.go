package tensor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	for _, name := range []string{"", "gonum", " CPU ", "numpy"} {
		b, err := New(name)
		require.NoError(t, err, name)
		assert.Equal(t, "gonum", b.Name())
	}

	_, err := New("jax")
	require.ErrorIs(t, err, ErrUnknownBackend)
	assert.Contains(t, err.Error(), "supported: [gonum]")
	assert.Equal(t, []Name{NameGonum}, SupportedNames())
}

func TestGonumArithmetic(t *testing.T) {
	var b Gonum

	x := []float64{1, 2, 3}
	c := b.AsTensor(x)
	c[0] = 100
	assert.Equal(t, 1.0, x[0], "AsTensor must copy")

	assert.Equal(t, 6.0, b.Sum(x))
	assert.Equal(t, []float64{2, 4, 6}, b.Add(x, x))
	assert.Equal(t, []float64{1, 4, 9}, b.Multiply(x, x))
	assert.Equal(t, []float64{-2, -4, -6}, b.Scale(-2, x))
	assert.Equal(t, []float64{1, 2, 3}, x, "inputs must not be modified")
}

func TestGonumShapeMismatchPanics(t *testing.T) {
	var b Gonum
	assert.PanicsWithError(t, "tensor: add: length mismatch (want 2, got 1)", func() {
		b.Add([]float64{1, 2}, []float64{1})
	})
}

func TestPoissonLogPDF(t *testing.T) {
	var b Gonum

	// Integer counts agree with the discrete Poisson pmf.
	got := b.PoissonLogPDF([]float64{0, 3, 51}, []float64{2.5, 2.5, 62})
	want := []float64{
		-2.5,
		3*math.Log(2.5) - 2.5 - math.Log(6),
		51*math.Log(62) - 62 - lgamma(52),
	}
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-12, "index %d", i)
	}

	// Non-integer auxiliary data is continued through lgamma.
	tau := 277.77777777777777
	got = b.PoissonLogPDF([]float64{tau}, []float64{tau})
	assert.InDelta(t, tau*math.Log(tau)-tau-lgamma(tau+1), got[0], 1e-9)

	// 0 * log(0) is 0.
	got = b.PoissonLogPDF([]float64{0}, []float64{0})
	assert.Equal(t, 0.0, got[0])
}

func TestNormalLogPDF(t *testing.T) {
	var b Gonum
	got := b.NormalLogPDF([]float64{0, 1}, []float64{0, 0}, []float64{1, 2})
	assert.InDelta(t, -0.5*math.Log(2*math.Pi), got[0], 1e-12)
	assert.InDelta(t, -0.5*math.Log(2*math.Pi)-math.Log(2)-0.125, got[1], 1e-12)
}

func lgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}
