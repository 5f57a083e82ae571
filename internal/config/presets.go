package config

import (
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/dpend/internal/dynamo"
)

type Preset struct {
	Description string
	Initial     InitStateConfig
}

var Presets = map[string]Preset{
	"classic": {
		Description: "both links at pi/1.1, at rest",
		Initial:     InitStateConfig{Theta1: math.Pi / 1.1, Theta2: math.Pi / 1.1},
	},
	"symmetric": {
		Description: "both links horizontal",
		Initial:     InitStateConfig{Theta1: math.Pi / 2, Theta2: math.Pi / 2},
	},
	"gentle": {
		Description: "small swing, close to linear",
		Initial:     InitStateConfig{Theta1: 0.3, Theta2: 0.3},
	},
	"chaos": {
		Description: "near the top, strongly chaotic",
		Initial:     InitStateConfig{Theta1: 3.0, Theta2: 3.0},
	},
	"inverted": {
		Description: "balanced upside down, one nudge from falling",
		Initial:     InitStateConfig{Theta1: math.Pi - 0.01, Theta2: math.Pi},
	},
}

func GetPreset(name string) (Preset, bool) {
	p, ok := Presets[name]
	return p, ok
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyPreset replaces the initial state with the named preset.
func (c *Config) ApplyPreset(name string) error {
	p, ok := GetPreset(name)
	if !ok {
		return fmt.Errorf("%w: %s (available: %v)", dynamo.ErrUnknownPreset, name, ListPresets())
	}
	c.Initial = p.Initial
	return nil
}
