// Package physics provides the double pendulum model.
//
// [DoublePendulum] implements [dynamo.System] with the standard coupled
// equations of motion for two point masses on massless rods, and
// [dynamo.Hamiltonian] for energy monitoring:
//
//	dp := physics.NewDoublePendulum()
//	x := dynamo.State{math.Pi / 2, 0, math.Pi / 2, 0}
//	dx := dp.Derive(x, 0)
//	x1, y1, x2, y2 := dp.Positions(x)
//	e := dp.Energy(x)
//
// The state vector is (theta1, omega1, theta2, omega2); use the [Theta1],
// [Omega1], [Theta2] and [Omega2] indices. Angles are never wrapped.
package physics
