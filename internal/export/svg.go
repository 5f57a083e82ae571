// Package export renders recorded runs as standalone SVG images.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/san-kum/dpend/internal/dynamo"
	"github.com/san-kum/dpend/internal/physics"
	"github.com/san-kum/dpend/internal/storage"
)

const (
	background  = "#0a0a0a"
	trailColor  = "#00ffff"
	rodColor    = "#ffffff"
	pivotColor  = "#888888"
	massColor   = "#ff00ff"
	strokeWidth = 1.5
)

// WriteRunSVG draws the path of the second mass over the whole run and the
// rods in their final position. The view is fixed to the pendulum's reach
// so shapes keep their aspect ratio. Samples with non-finite state are
// skipped.
func WriteRunSVG(w io.Writer, samples []storage.Sample, dp *physics.DoublePendulum, size int) error {
	if len(samples) == 0 {
		return fmt.Errorf("no samples to draw")
	}

	reach := dp.Reach() * 1.1
	scale := float64(size) / (2 * reach)
	toScreen := func(x, y float64) (float64, float64) {
		return (x + reach) * scale, (reach - y) * scale
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="%s"/>
`, size, size, size, size, background)

	var path strings.Builder
	var last dynamo.State
	for _, smp := range samples {
		st := dynamo.State(smp.State[:])
		if !st.IsValid() {
			path.WriteString(" ")
			continue
		}
		last = st
		x, y := toScreen(smp.X2, smp.Y2)
		cmd := "L"
		if path.Len() == 0 || strings.HasSuffix(path.String(), " ") {
			cmd = "M"
		}
		fmt.Fprintf(&path, "%s%.1f,%.1f", cmd, x, y)
	}
	if d := strings.TrimSpace(path.String()); d != "" {
		fmt.Fprintf(&sb, `<path fill="none" stroke="%s" stroke-opacity="0.6" stroke-width="%.1f" d="%s"/>
`, trailColor, strokeWidth, d)
	}

	if last != nil {
		x1, y1, x2, y2 := dp.Positions(last)
		ox, oy := toScreen(0, 0)
		ax, ay := toScreen(x1, y1)
		bx, by := toScreen(x2, y2)
		fmt.Fprintf(&sb, `<polyline fill="none" stroke="%s" stroke-width="3" points="%.1f,%.1f %.1f,%.1f %.1f,%.1f"/>
<circle cx="%.1f" cy="%.1f" r="4" fill="%s"/>
<circle cx="%.1f" cy="%.1f" r="7" fill="%s"/>
<circle cx="%.1f" cy="%.1f" r="7" fill="%s"/>
`, rodColor, ox, oy, ax, ay, bx, by,
			ox, oy, pivotColor,
			ax, ay, massColor,
			bx, by, massColor)
	}

	sb.WriteString("</svg>\n")
	_, err := io.WriteString(w, sb.String())
	return err
}
