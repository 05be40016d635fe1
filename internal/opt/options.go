package opt

// Settings collects the passthrough options understood by the optimizers in
// this package. Callers never build Settings directly; they pass Options.
type Settings struct {
	ReturnFittedVal bool
	MaxIterations   int
	Tolerance       float64
	Seed            int64
	PopulationSize  int

	hasSeed          bool
	hasMaxIterations bool
}

// Option configures a single Minimize call.
type Option func(*Settings)

const (
	defaultMaxIterations = 10000
	defaultTolerance     = 1e-10
)

// ReturnFittedVal requests the objective value at the optimum in Result.FittedVal.
func ReturnFittedVal(v bool) Option {
	return func(s *Settings) { s.ReturnFittedVal = v }
}

// MaxIterations caps the number of major iterations (0 keeps the default).
func MaxIterations(n int) Option {
	return func(s *Settings) {
		s.MaxIterations = n
		s.hasMaxIterations = n > 0
	}
}

// Tolerance sets the absolute objective tolerance used for convergence.
func Tolerance(tol float64) Option {
	return func(s *Settings) { s.Tolerance = tol }
}

// Seed sets the random seed of stochastic optimizers.
func Seed(seed int64) Option {
	return func(s *Settings) {
		s.Seed = seed
		s.hasSeed = true
	}
}

// PopulationSize sets the population of population-based optimizers.
func PopulationSize(n int) Option {
	return func(s *Settings) { s.PopulationSize = n }
}

// Apply resolves opts on top of the package defaults.
func Apply(opts ...Option) Settings {
	s := Settings{
		MaxIterations: defaultMaxIterations,
		Tolerance:     defaultTolerance,
	}
	for _, o := range opts {
		if o != nil {
			o(&s)
		}
	}
	if s.MaxIterations <= 0 {
		s.MaxIterations = defaultMaxIterations
	}
	if s.Tolerance <= 0 {
		s.Tolerance = defaultTolerance
	}
	return s
}
