// Package ensemble runs many independent pendulums at once.
//
// [Run] starts a cloud of trials from nearly identical initial states and
// reports how far apart their tips end up, which is the clearest
// demonstration of sensitivity to initial conditions. [ChaosMap] sweeps a
// grid of starting angles and estimates the Lyapunov exponent of each.
//
// Trials are independent, so both fan out over a bounded errgroup.
package ensemble
