package opt

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/cwbudde/mayfly"
)

const (
	// DefaultMayflyIterations is the iteration budget used by New("mayfly").
	DefaultMayflyIterations = 500
	// DefaultMayflyPopulation is the population used by New("mayfly").
	// mayfly v0.1.0 needs at least 20.
	DefaultMayflyPopulation = 30
)

// MayflyAdapter wraps the external Mayfly library to conform to our Optimizer interface.
// It is a global search: the initial values of free parameters are not used,
// only their bounds.
type MayflyAdapter struct {
	maxIters int
	popSize  int
	seed     int64
}

// NewMayfly creates a new Mayfly optimizer adapter
func NewMayfly(maxIters, popSize int, seed int64) *MayflyAdapter {
	return &MayflyAdapter{
		maxIters: maxIters,
		popSize:  popSize,
		seed:     seed,
	}
}

// Minimize implements Optimizer. The free parameters are searched on the unit
// cube, which is mapped onto each parameter's own bound; the library itself
// only supports one scalar bound shared by all dimensions.
func (m *MayflyAdapter) Minimize(ctx context.Context, objective Objective, data []float64, model Density,
	init []float64, bounds []Bound, fixed []FixedValue, opts ...Option) (*Result, error) {
	s := Apply(opts...)

	p, err := newProblem(ctx, objective, data, model, init, bounds, fixed)
	if err != nil {
		return nil, err
	}

	if p.dim() == 0 {
		full := p.expand(nil)
		p.eval(full)
		if p.err != nil {
			return nil, p.err
		}
		return p.result(full, s, "fixed")
	}

	for _, i := range p.free {
		if !bounds[i].finite() {
			return nil, fmt.Errorf("%w: index %d bound %s", ErrUnboundedParameter, i, bounds[i])
		}
	}

	scale := func(u []float64) []float64 {
		x := make([]float64, len(u))
		for k, i := range p.free {
			b := bounds[i]
			x[k] = b.Low + math.Min(math.Max(u[k], 0), 1)*(b.High-b.Low)
		}
		return p.expand(x)
	}

	iters := m.maxIters
	if s.hasMaxIterations {
		iters = s.MaxIterations
	}
	pop := m.popSize
	if s.PopulationSize > 0 {
		pop = s.PopulationSize
	}
	seed := m.seed
	if s.hasSeed {
		seed = s.Seed
	}

	// Create config for external Mayfly library
	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = func(u []float64) float64 {
		return p.eval(scale(u))
	}
	config.ProblemSize = p.dim()
	config.MaxIterations = iters
	config.NPop = pop
	config.LowerBound = 0
	config.UpperBound = 1

	// Set random seed for reproducibility
	config.Rand = rand.New(rand.NewSource(seed))

	slog.Debug("Starting mayfly minimization", "free", p.dim(), "iters", iters, "pop", pop, "seed", seed)

	result, err := mayfly.Optimize(config)
	if p.err != nil {
		return nil, p.err
	}
	if err != nil {
		return nil, fmt.Errorf("mayfly: %w", err)
	}

	best := scale(result.GlobalBest.Position)

	slog.Debug("Mayfly minimization complete", "cost", result.GlobalBest.Cost, "evaluations", p.evals)

	return p.result(best, s, "completed")
}
