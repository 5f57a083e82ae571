// Package analysis characterizes pendulum trajectories after the fact.
//
//   - [LyapunovExponent]: largest Lyapunov exponent via trajectory separation
//   - [DominantFrequency]: strongest oscillation frequency of a sampled series
//   - [PortraitFromSeries] and [PoincareFromSeries]: phase space views of a run
//
// A positive largest Lyapunov exponent indicates chaotic dynamics:
//
//	lambda := analysis.LyapunovExponent(dp, integ, x0, dt, duration, 1e-8)
//	if lambda > 0 {
//	    // nearby trajectories diverge exponentially
//	}
package analysis
