// Package sim drives the double pendulum: it owns the state vector, advances
// it with a numerical integrator once per frame, applies random velocity
// kicks and keeps the tip trail.
//
//	s, _ := sim.New(physics.NewDoublePendulum(), x0, sim.WithTrail(200))
//	for range ticker.C {
//	    s.Advance(0.04)
//	    draw(s.Frame())
//	}
//
// Hosts that receive input on other goroutines use [Simulator.QueuePerturb];
// the kicks are applied in arrival order before the next integration.
package sim
