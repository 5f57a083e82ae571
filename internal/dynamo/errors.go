package dynamo

import "errors"

// Domain errors for configuration and host operations. The physics core
// itself never returns errors.
var (
	// ErrParameterBounds indicates a parameter value is outside valid range.
	ErrParameterBounds = errors.New("dynamo: parameter out of valid bounds")

	// ErrDimensionMismatch indicates a state vector of the wrong length.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and system")

	// ErrUnknownIntegrator indicates an integrator name with no registered stepper.
	ErrUnknownIntegrator = errors.New("dynamo: unknown integrator")

	// ErrInvalidConfig indicates a configuration that cannot build a simulation.
	ErrInvalidConfig = errors.New("dynamo: invalid configuration")

	// ErrUnknownPreset indicates a preset name that is not registered.
	ErrUnknownPreset = errors.New("dynamo: unknown preset")

	// ErrStepRejected indicates an adaptive step whose error estimate
	// exceeded the tolerance. The returned state is still the step's result.
	ErrStepRejected = errors.New("dynamo: adaptive step rejected")
)

// ParamError wraps a bounds violation with the offending parameter.
type ParamError struct {
	Name  string
	Value float64
}

func (e *ParamError) Error() string {
	return "dynamo: parameter " + e.Name + " out of valid bounds"
}

func (e *ParamError) Unwrap() error {
	return ErrParameterBounds
}
