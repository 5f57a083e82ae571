// Package trail keeps a fixed-length window of recent positions of the
// pendulum tip for trail drawing.
package trail

// Point is a Cartesian position in model units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Buffer is a fixed-capacity FIFO window. Once full, each Record evicts the
// oldest point.
type Buffer struct {
	data []Point
	pos  int
	full bool
}

// New creates a Buffer holding at most n points. n below 1 is treated as 1.
func New(n int) *Buffer {
	if n < 1 {
		n = 1
	}
	return &Buffer{data: make([]Point, n)}
}

// Record appends p at the tail.
func (b *Buffer) Record(p Point) {
	b.data[b.pos] = p
	b.pos++
	if b.pos >= len(b.data) {
		b.pos = 0
		b.full = true
	}
}

func (b *Buffer) Len() int {
	if b.full {
		return len(b.data)
	}
	return b.pos
}

func (b *Buffer) Cap() int { return len(b.data) }

// Snapshot returns the window oldest first. The slice is a copy.
func (b *Buffer) Snapshot() []Point {
	n := b.Len()
	out := make([]Point, n)
	if b.full {
		copy(out, b.data[b.pos:])
		copy(out[len(b.data)-b.pos:], b.data[:b.pos])
	} else {
		copy(out, b.data[:b.pos])
	}
	return out
}

// Last returns the most recent point.
func (b *Buffer) Last() (Point, bool) {
	if b.Len() == 0 {
		return Point{}, false
	}
	i := b.pos - 1
	if i < 0 {
		i = len(b.data) - 1
	}
	return b.data[i], true
}

func (b *Buffer) Reset() {
	b.pos = 0
	b.full = false
}
