package analysis

import (
	"math"

	"github.com/san-kum/dpend/internal/dynamo"
)

// LyapunovExponent estimates the largest Lyapunov exponent using the
// trajectory separation method. The shadow trajectory is pulled back to
// the initial separation after every step and the logarithmic growth is
// averaged over the elapsed time.
func LyapunovExponent(
	dyn dynamo.System,
	integ dynamo.Integrator,
	x0 dynamo.State,
	dt, duration float64,
	perturbation float64,
) float64 {
	if len(x0) == 0 {
		return 0
	}
	xp := x0.Add(axis(len(x0), 0).Scale(perturbation))
	return separationRate(dyn, integ, x0, xp, dt, duration, perturbation)
}

// LyapunovSpectrum perturbs each state dimension in turn and reports the
// separation rate seen from each direction.
func LyapunovSpectrum(
	dyn dynamo.System,
	integ dynamo.Integrator,
	x0 dynamo.State,
	dt, duration float64,
	perturbation float64,
) []float64 {
	n := len(x0)
	spectrum := make([]float64, n)

	for i := 0; i < n; i++ {
		xp := x0.Add(axis(n, i).Scale(perturbation))
		spectrum[i] = separationRate(dyn, integ, x0, xp, dt, duration, perturbation)
	}
	return spectrum
}

func separationRate(
	dyn dynamo.System,
	integ dynamo.Integrator,
	x0, x0p dynamo.State,
	dt, duration, d0 float64,
) float64 {
	if dt <= 0 || d0 <= 0 {
		return 0
	}

	x := x0.Clone()
	xp := x0p.Clone()
	t := 0.0
	sumLog := 0.0

	for t < duration {
		x = integ.Step(dyn, x, t, dt)
		xp = integ.Step(dyn, xp, t, dt)
		t += dt

		sep := xp.Sub(x).Norm()
		if !x.IsValid() || !xp.IsValid() || math.IsNaN(sep) {
			break
		}
		if sep == 0 {
			continue
		}
		sumLog += math.Log(sep / d0)

		// renormalize
		xp = x.Add(xp.Sub(x).Scale(d0 / sep))
	}

	if t == 0 {
		return 0
	}
	return sumLog / t
}

// axis returns the unit vector along dimension i.
func axis(n, i int) dynamo.State {
	e := make(dynamo.State, n)
	e[i] = 1
	return e
}
