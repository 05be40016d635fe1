package mle

import "github.com/cwbudde/mlefit/internal/opt"

// validateFitInputs checks every initial value against its bound and fails on
// the first one outside. init and bounds are index-aligned.
func validateFitInputs(init []float64, bounds []opt.Bound) error {
	for i, v := range init {
		if !bounds[i].Contains(v) {
			return &OutOfBoundsError{Index: i, Value: v, Bound: bounds[i]}
		}
	}
	return nil
}

// fixedValues pins every parameter marked in fixed to its initial value, in
// ascending index order.
func fixedValues(init []float64, fixed []bool) []opt.FixedValue {
	vals := []opt.FixedValue{}
	for i, isFixed := range fixed {
		if isFixed {
			vals = append(vals, opt.FixedValue{Index: i, Value: init[i]})
		}
	}
	return vals
}
