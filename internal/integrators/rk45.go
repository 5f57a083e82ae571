package integrators

import (
	"math"

	"github.com/san-kum/dpend/internal/dynamo"
)

// Dormand-Prince coefficients (RK45)
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0
)

const DefaultTolerance = 1e-8

var _ dynamo.AdaptiveIntegrator = (*RK45)(nil)

type RK45 struct {
	safety   float64
	minScale float64
	maxScale float64
}

func NewRK45() *RK45 {
	return &RK45{
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
	}
}

// Step takes one Dormand-Prince step of exactly dt with no error control.
func (r *RK45) Step(dyn dynamo.System, x dynamo.State, t, dt float64) dynamo.State {
	newX, _ := r.attempt(dyn, x, t, dt, DefaultTolerance)
	return newX
}

// StepAdaptive takes one Dormand-Prince step of dt and suggests the next
// step size. A step whose error ratio exceeds 1 is reported with
// dynamo.ErrStepRejected. NaN error ratios are not rejections.
func (r *RK45) StepAdaptive(dyn dynamo.System, x dynamo.State, t, dt, tol float64) (dynamo.State, float64, error) {
	xNew, errRatio := r.attempt(dyn, x, t, dt, tol)
	next := dt * r.scale(errRatio)
	if errRatio > 1 {
		return xNew, next, dynamo.ErrStepRejected
	}
	return xNew, next, nil
}

// scale returns the factor applied to the step size after a step with the
// given error ratio. Ratios above 1 shrink the step.
func (r *RK45) scale(errRatio float64) float64 {
	switch {
	case errRatio > 1:
		return math.Max(r.minScale, r.safety*math.Pow(errRatio, -0.25))
	case errRatio > 0:
		return math.Min(r.maxScale, r.safety*math.Pow(errRatio, -0.2))
	default:
		return r.maxScale
	}
}

// attempt computes the fifth-order solution at t+dt and the ratio of the
// embedded error estimate to the mixed absolute/relative tolerance.
func (r *RK45) attempt(dyn dynamo.System, x dynamo.State, t, dt, tol float64) (dynamo.State, float64) {
	n := len(x)

	k1 := dyn.Derive(x, t)

	x2 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x2[i] = x[i] + dt*b21*k1[i]
	}
	k2 := dyn.Derive(x2, t+a2*dt)

	x3 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x3[i] = x[i] + dt*(b31*k1[i]+b32*k2[i])
	}
	k3 := dyn.Derive(x3, t+a3*dt)

	x4 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x4[i] = x[i] + dt*(b41*k1[i]+b42*k2[i]+b43*k3[i])
	}
	k4 := dyn.Derive(x4, t+a4*dt)

	x5 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x5[i] = x[i] + dt*(b51*k1[i]+b52*k2[i]+b53*k3[i]+b54*k4[i])
	}
	k5 := dyn.Derive(x5, t+a5*dt)

	x6 := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		x6[i] = x[i] + dt*(b61*k1[i]+b62*k2[i]+b63*k3[i]+b64*k4[i]+b65*k5[i])
	}
	k6 := dyn.Derive(x6, t+dt)

	xNew := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		xNew[i] = x[i] + dt*(c1*k1[i]+c3*k3[i]+c4*k4[i]+c5*k5[i]+c6*k6[i])
	}

	k7 := dyn.Derive(xNew, t+dt)

	errMax := 0.0
	for i := 0; i < n; i++ {
		errEst := dt * (dc1*k1[i] + dc3*k3[i] + dc4*k4[i] + dc5*k5[i] + dc6*k6[i] + dc7*k7[i])
		sc := tol * (1 + math.Max(math.Abs(x[i]), math.Abs(xNew[i])))
		errMax = math.Max(errMax, math.Abs(errEst)/sc)
	}

	return xNew, errMax
}

// Options control the adaptive driver in Integrate.
type Options struct {
	Tol         float64
	InitialStep float64 // 0 means the whole span
	MinStep     float64
	MaxSteps    int
}

func DefaultOptions() Options {
	return Options{
		Tol:      DefaultTolerance,
		MinStep:  1e-10,
		MaxSteps: 100000,
	}
}

// Integrate advances x from t0 to t1 with error-controlled Dormand-Prince
// steps and lands exactly on t1. Steps that miss the tolerance are retried
// with a smaller size down to MinStep, where they are accepted as is. Once
// MaxSteps attempts have been made the rest of the span is covered in one
// step. Non-finite values are carried through, not reported.
func (r *RK45) Integrate(dyn dynamo.System, x dynamo.State, t0, t1 float64, opts Options) dynamo.State {
	cur := x.Clone()
	span := t1 - t0
	if !(span > 0) || len(x) == 0 {
		return cur
	}

	def := DefaultOptions()
	if opts.Tol <= 0 {
		opts.Tol = def.Tol
	}
	if opts.MinStep <= 0 {
		opts.MinStep = def.MinStep
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = def.MaxSteps
	}

	h := opts.InitialStep
	if h <= 0 || h > span {
		h = span
	}

	t := t0
	for tries := 0; t < t1; tries++ {
		if tries >= opts.MaxSteps {
			h = t1 - t
		}
		last := false
		if h >= t1-t {
			h = t1 - t
			last = true
		}

		xNew, next, err := r.StepAdaptive(dyn, cur, t, h, opts.Tol)
		if err == nil || h <= opts.MinStep || tries >= opts.MaxSteps {
			cur = xNew
			if last {
				t = t1
			} else {
				t += h
			}
		}

		h = next
		if math.IsNaN(h) || h < opts.MinStep {
			h = opts.MinStep
		}
	}

	return cur
}

// Integrate runs a fresh RK45 driver over [t0, t1].
func Integrate(dyn dynamo.System, x dynamo.State, t0, t1 float64, opts Options) dynamo.State {
	return NewRK45().Integrate(dyn, x, t0, t1, opts)
}
