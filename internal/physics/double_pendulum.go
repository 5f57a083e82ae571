package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/dpend/internal/dynamo"
)

const (
	DefaultMass    = 1.0
	DefaultLength  = 1.0
	DefaultGravity = 9.81
)

// Indices into the double pendulum state vector.
const (
	Theta1 = iota
	Omega1
	Theta2
	Omega2
)

// DoublePendulum holds the physical constants of a two-link pendulum with
// point masses at the end of massless rods. Angles are measured from the
// downward vertical.
type DoublePendulum struct {
	M1, M2  float64
	L1, L2  float64
	Gravity float64
}

var (
	_ dynamo.System       = (*DoublePendulum)(nil)
	_ dynamo.Hamiltonian  = (*DoublePendulum)(nil)
	_ dynamo.Configurable = (*DoublePendulum)(nil)
)

func NewDoublePendulum() *DoublePendulum {
	return &DoublePendulum{
		M1: DefaultMass, M2: DefaultMass,
		L1: DefaultLength, L2: DefaultLength,
		Gravity: DefaultGravity,
	}
}

func (d *DoublePendulum) StateDim() int { return 4 }

// Derive returns (omega1, alpha1, omega2, alpha2) for x = (theta1, omega1,
// theta2, omega2). It has no side effects.
//
// den1 vanishes when cos²(theta2-theta1) == (M1+M2)/M2, which needs M1 <= 0.
// For positive masses it is bounded below by M1*L1.
func (d *DoublePendulum) Derive(x dynamo.State, t float64) dynamo.State {
	theta1, omega1, theta2, omega2 := x[Theta1], x[Omega1], x[Theta2], x[Omega2]
	m1, m2, l1, l2, g := d.M1, d.M2, d.L1, d.L2, d.Gravity

	delta := theta2 - theta1
	sinD, cosD := math.Sin(delta), math.Cos(delta)

	den1 := (m1+m2)*l1 - m2*l1*cosD*cosD
	den2 := (l2 / l1) * den1

	alpha1 := (m2*l1*omega1*omega1*sinD*cosD +
		m2*g*math.Sin(theta2)*cosD +
		m2*l2*omega2*omega2*sinD -
		(m1+m2)*g*math.Sin(theta1)) / den1

	alpha2 := (-m2*l2*omega2*omega2*sinD*cosD +
		(m1+m2)*g*math.Sin(theta1)*cosD -
		(m1+m2)*l1*omega1*omega1*sinD -
		(m1+m2)*g*math.Sin(theta2)) / den2

	return dynamo.State{omega1, alpha1, omega2, alpha2}
}

// Positions maps the angles to Cartesian coordinates with the pivot at the
// origin and y pointing up.
func (d *DoublePendulum) Positions(x dynamo.State) (x1, y1, x2, y2 float64) {
	theta1, theta2 := x[Theta1], x[Theta2]

	x1 = d.L1 * math.Sin(theta1)
	y1 = -d.L1 * math.Cos(theta1)

	x2 = x1 + d.L2*math.Sin(theta2)
	y2 = y1 - d.L2*math.Cos(theta2)
	return
}

// Energy is kinetic plus potential energy, zero potential at pivot height.
func (d *DoublePendulum) Energy(x dynamo.State) float64 {
	theta1, omega1, theta2, omega2 := x[Theta1], x[Omega1], x[Theta2], x[Omega2]
	m1, m2, l1, l2, g := d.M1, d.M2, d.L1, d.L2, d.Gravity

	v1sq := l1 * l1 * omega1 * omega1
	v2sq := l1*l1*omega1*omega1 + l2*l2*omega2*omega2 +
		2*l1*l2*omega1*omega2*math.Cos(theta1-theta2)

	ke := 0.5*m1*v1sq + 0.5*m2*v2sq
	y1 := -l1 * math.Cos(theta1)
	y2 := y1 - l2*math.Cos(theta2)
	pe := m1*g*y1 + m2*g*y2

	return ke + pe
}

// Reach is the farthest distance mass 2 can be from the pivot.
func (d *DoublePendulum) Reach() float64 { return d.L1 + d.L2 }

func (d *DoublePendulum) Validate() error {
	for name, v := range d.GetParams() {
		if !(v > 0) || math.IsInf(v, 0) {
			return &dynamo.ParamError{Name: name, Value: v}
		}
	}
	return nil
}

func (d *DoublePendulum) GetParams() map[string]float64 {
	return map[string]float64{
		"m1":      d.M1,
		"m2":      d.M2,
		"l1":      d.L1,
		"l2":      d.L2,
		"gravity": d.Gravity,
	}
}

func (d *DoublePendulum) SetParam(name string, value float64) error {
	switch name {
	case "m1":
		d.M1 = value
	case "m2":
		d.M2 = value
	case "l1":
		d.L1 = value
	case "l2":
		d.L2 = value
	case "gravity":
		d.Gravity = value
	default:
		return fmt.Errorf("unknown param: %s", name)
	}
	return nil
}
