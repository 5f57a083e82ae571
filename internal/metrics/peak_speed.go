package metrics

import (
	"math"

	"github.com/san-kum/dpend/internal/dynamo"
)

// PeakSpeed tracks the largest angular speed of either link.
type PeakSpeed struct {
	name string
	peak float64
}

func NewPeakSpeed() *PeakSpeed {
	return &PeakSpeed{name: "peak_omega"}
}

func (p *PeakSpeed) Name() string { return p.name }

func (p *PeakSpeed) OnStep(x dynamo.State, t float64) {
	// odd indices hold angular velocities
	for i := 1; i < len(x); i += 2 {
		p.peak = math.Max(p.peak, math.Abs(x[i]))
	}
}

func (p *PeakSpeed) Value() float64 { return p.peak }

func (p *PeakSpeed) Reset() { p.peak = 0 }
