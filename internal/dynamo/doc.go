// Package dynamo provides the core primitives shared by the pendulum model,
// the integrators and the step driver.
//
//   - [State]: flat state vector
//   - [System]: an ODE dX/dt = f(X, t) with a pure derivative
//   - [Integrator]: fixed-step numerical stepper
//   - [AdaptiveIntegrator]: stepper that also reports a suggested step size
//   - [Hamiltonian]: systems that can report total mechanical energy
//
// # Example
//
//	dp := physics.NewDoublePendulum()
//	x := dynamo.State{math.Pi / 2, 0, math.Pi / 2, 0}
//	x = integrators.Integrate(dp, x, 0, 0.04, integrators.DefaultOptions())
//
// # Thread Safety
//
// States are plain slices and are not safe for concurrent mutation. The
// step driver in package sim owns its state exclusively.
package dynamo
