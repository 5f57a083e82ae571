package ensemble

import (
	"context"
	"math"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/dpend/internal/analysis"
	"github.com/san-kum/dpend/internal/dynamo"
	"github.com/san-kum/dpend/internal/integrators"
	"github.com/san-kum/dpend/internal/physics"
)

type MapConfig struct {
	Pendulum   physics.DoublePendulum
	Integrator string
	Theta1     []float64
	Theta2     []float64
	Dt         float64
	Duration   float64
	Workers    int
}

// ChaosMap holds the Lyapunov exponent for each starting (theta1, theta2)
// at rest. Lambda[i][j] belongs to Theta1[i], Theta2[j].
type ChaosMap struct {
	Theta1 []float64
	Theta2 []float64
	Lambda [][]float64
}

// Linspace returns n evenly spaced values from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	return out
}

func BuildChaosMap(ctx context.Context, cfg MapConfig) (*ChaosMap, error) {
	if _, err := integrators.New(cfg.Integrator); err != nil {
		return nil, err
	}

	cm := &ChaosMap{
		Theta1: cfg.Theta1,
		Theta2: cfg.Theta2,
		Lambda: make([][]float64, len(cfg.Theta1)),
	}
	for i := range cm.Lambda {
		cm.Lambda[i] = make([]float64, len(cfg.Theta2))
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers(cfg.Workers))

	for i, t1 := range cfg.Theta1 {
		for j, t2 := range cfg.Theta2 {
			i, j, t1, t2 := i, j, t1, t2 // per-iteration copies for pre-1.22 loop semantics
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				integ, _ := integrators.New(cfg.Integrator)
				dp := cfg.Pendulum
				x0 := dynamo.State{t1, 0, t2, 0}
				cm.Lambda[i][j] = analysis.LyapunovExponent(&dp, integ, x0, cfg.Dt, cfg.Duration, 1e-8)
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return cm, nil
}

// Extremes returns the grid indices of the least and most chaotic cells.
func (cm *ChaosMap) Extremes() (calm, wild [2]int) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, row := range cm.Lambda {
		for j, v := range row {
			if v < lo {
				lo, calm = v, [2]int{i, j}
			}
			if v > hi {
				hi, wild = v, [2]int{i, j}
			}
		}
	}
	return calm, wild
}

var shades = []rune(" .:-=+*#%@")

// ToASCII shades each cell by its exponent, theta2 across and theta1 down.
func (cm *ChaosMap) ToASCII() string {
	if len(cm.Lambda) == 0 {
		return ""
	}
	calm, wild := cm.Extremes()
	lo := cm.Lambda[calm[0]][calm[1]]
	hi := cm.Lambda[wild[0]][wild[1]]
	rng := hi - lo
	if rng == 0 {
		rng = 1
	}

	var sb strings.Builder
	for _, row := range cm.Lambda {
		for _, v := range row {
			idx := int((v - lo) / rng * float64(len(shades)-1))
			idx = min(max(idx, 0), len(shades)-1)
			sb.WriteRune(shades[idx])
			sb.WriteRune(shades[idx])
		}
		sb.WriteRune('\n')
	}
	return sb.String()
}
