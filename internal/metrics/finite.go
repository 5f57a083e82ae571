package metrics

import "github.com/san-kum/dpend/internal/dynamo"

// Finite is the fraction of observed states with no NaN or Inf component.
type Finite struct {
	name     string
	degraded int
	samples  int
}

func NewFinite() *Finite {
	return &Finite{name: "finite"}
}

func (f *Finite) Name() string { return f.name }

func (f *Finite) OnStep(x dynamo.State, t float64) {
	f.samples++
	if !x.IsValid() {
		f.degraded++
	}
}

func (f *Finite) Value() float64 {
	if f.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(f.degraded)/float64(f.samples)
}

func (f *Finite) Reset() {
	f.degraded = 0
	f.samples = 0
}
