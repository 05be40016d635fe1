package tensor

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// Gonum is the default backend, built on gonum's floats and distuv packages.
// It keeps no state.
type Gonum struct{}

var _ Backend = Gonum{}

func (Gonum) Name() string { return string(NameGonum) }

func (Gonum) AsTensor(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	return out
}

func (Gonum) Sum(x []float64) float64 {
	return floats.Sum(x)
}

func (Gonum) Add(a, b []float64) []float64 {
	mustMatch("add", a, b)
	return floats.AddTo(make([]float64, len(a)), a, b)
}

func (Gonum) Multiply(a, b []float64) []float64 {
	mustMatch("multiply", a, b)
	return floats.MulTo(make([]float64, len(a)), a, b)
}

func (Gonum) Scale(c float64, x []float64) []float64 {
	return floats.ScaleTo(make([]float64, len(x)), c, x)
}

// PoissonLogPDF evaluates the Poisson density continued to real n through the
// gamma function; distuv.Poisson is only defined on integers, and auxiliary
// data of shapesys constraints is not integral.
func (Gonum) PoissonLogPDF(n, lambda []float64) []float64 {
	mustMatch("poisson", n, lambda)
	out := make([]float64, len(n))
	for i := range n {
		lg, _ := math.Lgamma(n[i] + 1)
		out[i] = xlogy(n[i], lambda[i]) - lambda[i] - lg
	}
	return out
}

func (Gonum) NormalLogPDF(x, mu, sigma []float64) []float64 {
	mustMatch("normal", x, mu)
	mustMatch("normal", x, sigma)
	out := make([]float64, len(x))
	for i := range x {
		out[i] = distuv.Normal{Mu: mu[i], Sigma: sigma[i]}.LogProb(x[i])
	}
	return out
}

// xlogy returns x*log(y) with the convention 0*log(0) = 0.
func xlogy(x, y float64) float64 {
	if x == 0 && !math.IsNaN(y) {
		return 0
	}
	return x * math.Log(y)
}
