// Package metrics provides step observers that summarise a run.
package metrics

import "github.com/san-kum/dpend/internal/dynamo"

// Metric is an observer that reduces a run to a single value.
type Metric interface {
	dynamo.Observer
	Name() string
	Value() float64
	Reset()
}

// Collect returns name -> value for each metric.
func Collect(ms []Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}
