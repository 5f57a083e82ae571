package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/san-kum/dpend/internal/dynamo"
	"github.com/san-kum/dpend/internal/integrators"
	"github.com/san-kum/dpend/internal/physics"
	"github.com/san-kum/dpend/internal/trail"
)

const (
	DefaultTrail           = 200
	DefaultPerturbStrength = 2.0
)

// Pendulum is the model the simulator drives: a pure derivative, an energy
// and a mapping from state to the two mass positions.
type Pendulum interface {
	dynamo.System
	dynamo.Hamiltonian
	Positions(x dynamo.State) (x1, y1, x2, y2 float64)
}

// Kick is one random angular velocity change.
type Kick struct {
	D1, D2 float64
}

// Frame is an immutable view of the simulator after a step.
type Frame struct {
	Time   float64       `json:"t"`
	State  dynamo.State  `json:"state"`
	X1     float64       `json:"x1"`
	Y1     float64       `json:"y1"`
	X2     float64       `json:"x2"`
	Y2     float64       `json:"y2"`
	Energy float64       `json:"energy"`
	Kicks  int           `json:"kicks"`
	Trail  []trail.Point `json:"trail"`
}

// Simulator owns the pendulum state and advances it in fixed increments.
// It is not safe for concurrent use, except for QueuePerturb.
type Simulator struct {
	sys        Pendulum
	integrator dynamo.Integrator
	opts       integrators.Options
	observers  []dynamo.Observer
	logger     *slog.Logger

	initial  dynamo.State
	state    dynamo.State
	t        float64
	trail    *trail.Buffer
	strength float64
	rng      *rand.Rand
	kicks    int
	pending  atomic.Int64
}

type Option func(*Simulator)

// WithIntegrator replaces the default adaptive RK45 driver. Fixed-step
// integrators take a single step per Advance.
func WithIntegrator(integ dynamo.Integrator) Option {
	return func(s *Simulator) { s.integrator = integ }
}

func WithTrail(n int) Option {
	return func(s *Simulator) { s.trail = trail.New(n) }
}

// WithPerturbStrength sets s in the U(-s, s) kick distribution.
func WithPerturbStrength(strength float64) Option {
	return func(s *Simulator) { s.strength = strength }
}

func WithSeed(seed int64) Option {
	return func(s *Simulator) { s.rng = rand.New(rand.NewSource(seed)) }
}

func WithRand(r *rand.Rand) Option {
	return func(s *Simulator) { s.rng = r }
}

func WithTolerance(tol float64) Option {
	return func(s *Simulator) { s.opts.Tol = tol }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Simulator) { s.logger = logger }
}

func WithObserver(o dynamo.Observer) Option {
	return func(s *Simulator) { s.observers = append(s.observers, o) }
}

func New(sys Pendulum, x0 dynamo.State, opts ...Option) (*Simulator, error) {
	if len(x0) != sys.StateDim() {
		return nil, fmt.Errorf("%w: state has %d entries, system wants %d", dynamo.ErrDimensionMismatch, len(x0), sys.StateDim())
	}

	s := &Simulator{
		sys:        sys,
		integrator: integrators.NewRK45(),
		opts:       integrators.DefaultOptions(),
		logger:     slog.Default(),
		initial:    x0.Clone(),
		state:      x0.Clone(),
		trail:      trail.New(DefaultTrail),
		strength:   DefaultPerturbStrength,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return s, nil
}

// Advance applies queued kicks, then integrates the state over dt. dt <= 0
// does nothing. Non-finite states are carried forward unchanged in kind.
func (s *Simulator) Advance(dt float64) {
	if !(dt > 0) {
		return
	}
	s.drain()

	if rk, ok := s.integrator.(*integrators.RK45); ok {
		s.state = rk.Integrate(s.sys, s.state, s.t, s.t+dt, s.opts)
	} else {
		s.state = s.integrator.Step(s.sys, s.state, s.t, dt)
	}
	s.t += dt

	_, _, x2, y2 := s.sys.Positions(s.state)
	s.trail.Record(trail.Point{X: x2, Y: y2})

	for _, o := range s.observers {
		o.OnStep(s.state, s.t)
	}
}

// Perturb adds independent U(-s, s) draws to both angular velocities.
// Angles are untouched.
func (s *Simulator) Perturb() Kick {
	k := Kick{
		D1: (2*s.rng.Float64() - 1) * s.strength,
		D2: (2*s.rng.Float64() - 1) * s.strength,
	}
	s.state[physics.Omega1] += k.D1
	s.state[physics.Omega2] += k.D2
	s.kicks++

	s.logger.Debug("pendulum perturbed",
		slog.Float64("d_omega1", k.D1),
		slog.Float64("d_omega2", k.D2),
		slog.Float64("t", s.t),
	)
	return k
}

// QueuePerturb records a kick to be applied at the start of the next
// Advance. Safe to call from any goroutine.
func (s *Simulator) QueuePerturb() {
	s.pending.Add(1)
}

func (s *Simulator) Pending() int {
	return int(s.pending.Load())
}

// DiscardPending drops queued kicks and returns how many were dropped.
// Safe to call from any goroutine.
func (s *Simulator) DiscardPending() int {
	return int(s.pending.Swap(0))
}

func (s *Simulator) drain() {
	for n := s.pending.Swap(0); n > 0; n-- {
		s.Perturb()
	}
}

// Run advances steps times, stopping early when ctx is done or fn returns
// false.
func (s *Simulator) Run(ctx context.Context, steps int, dt float64, fn func(Frame) bool) error {
	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		s.Advance(dt)
		if fn != nil && !fn(s.Frame()) {
			return nil
		}
	}
	return nil
}

// Reset restores the initial state and clears time, trail and kick count.
// Queued kicks are kept and land on the restored pendulum at the next
// Advance.
func (s *Simulator) Reset() {
	s.state = s.initial.Clone()
	s.t = 0
	s.kicks = 0
	s.trail.Reset()
}

func (s *Simulator) State() dynamo.State { return s.state.Clone() }

func (s *Simulator) Positions() (x1, y1, x2, y2 float64) { return s.sys.Positions(s.state) }

func (s *Simulator) Trail() []trail.Point { return s.trail.Snapshot() }

func (s *Simulator) Time() float64 { return s.t }

func (s *Simulator) Energy() float64 { return s.sys.Energy(s.state) }

func (s *Simulator) Kicks() int { return s.kicks }

func (s *Simulator) Frame() Frame {
	x1, y1, x2, y2 := s.Positions()
	return Frame{
		Time:   s.t,
		State:  s.State(),
		X1:     x1,
		Y1:     y1,
		X2:     x2,
		Y2:     y2,
		Energy: s.Energy(),
		Kicks:  s.kicks,
		Trail:  s.Trail(),
	}
}
