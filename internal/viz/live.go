package viz

import (
	"fmt"
	"image"
	"image/gif"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/dpend/internal/sim"
)

const (
	width           = 60
	height          = 24
	historyCapacity = 120
	DefaultFPS      = 25
	gifFile         = "dpend.gif"
)

type TickMsg time.Time

// Model is the Bubble Tea view of a running simulator. Every tick advances
// the simulator by dt; a left click anywhere kicks it.
type Model struct {
	sim    *sim.Simulator
	dt     float64
	fps    int
	reach  float64
	logger *slog.Logger

	width, height int
	canvas        *Canvas
	theme         Theme
	running       bool
	showHelp      bool
	energyHistory []float64

	recording bool
	frames    []*image.Paletted
}

type ModelOption func(*Model)

func WithFPS(fps int) ModelOption {
	return func(m *Model) {
		if fps > 0 {
			m.fps = fps
		}
	}
}

func WithTheme(name string) ModelOption {
	return func(m *Model) { m.theme = GetTheme(name) }
}

func WithLogger(logger *slog.Logger) ModelOption {
	return func(m *Model) { m.logger = logger }
}

// NewModel wraps s. reach is the distance from the pivot to the furthest
// point the tip can reach and sets the drawing scale.
func NewModel(s *sim.Simulator, dt, reach float64, opts ...ModelOption) Model {
	if reach <= 0 {
		reach = 2
	}
	m := Model{
		sim:           s,
		dt:            dt,
		fps:           DefaultFPS,
		reach:         reach,
		logger:        slog.Default(),
		width:         width,
		height:        height,
		canvas:        NewCanvas(width, height),
		theme:         ThemeCyberpunk,
		running:       true,
		energyHistory: make([]float64, 0, historyCapacity),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Run starts the program with mouse reporting enabled and blocks until the
// user quits.
func Run(m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(m.fps), func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

// Update handles input events and steps the simulation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "p":
			m.sim.Perturb()
		case "r":
			m.sim.Reset()
			m.energyHistory = m.energyHistory[:0]
		case "t":
			m.theme = NextTheme(m.theme)
		case "g":
			m.toggleRecording()
		case "?":
			m.showHelp = !m.showHelp
		}
	case tea.MouseMsg:
		if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft {
			m.sim.Perturb()
		}
	case TickMsg:
		if m.running {
			m.step()
		}
		m.draw()
		if m.recording {
			m.frames = append(m.frames, m.canvas.Image(8, 16))
		}
		return m, m.tick()
	}
	return m, nil
}

func (m *Model) step() {
	m.sim.Advance(m.dt)
	e := m.sim.Energy()
	if math.IsNaN(e) || math.IsInf(e, 0) {
		return
	}
	m.energyHistory = append(m.energyHistory, e)
	if len(m.energyHistory) > historyCapacity {
		m.energyHistory = m.energyHistory[1:]
	}
}

func (m *Model) toggleRecording() {
	if !m.recording {
		m.recording = true
		m.frames = make([]*image.Paletted, 0)
		return
	}
	m.recording = false
	if err := saveGIF(gifFile, m.frames, m.fps); err != nil {
		m.logger.Error("failed to save recording", slog.Any("error", err))
	} else {
		m.logger.Info("recording saved", slog.String("path", gifFile), slog.Int("frames", len(m.frames)))
	}
	m.frames = nil
}

// project maps world coordinates (pivot at the origin, y up) to canvas
// sub-pixels with the pivot in the upper middle.
func (m *Model) project(x, y float64) (int, int) {
	cw, ch := m.width*2, m.height*4
	scale := 0.9 * float64(min(cw, ch)) / (2 * m.reach)
	cx, cy := float64(cw)/2, float64(ch)/2
	return int(math.Round(cx + x*scale)), int(math.Round(cy - y*scale))
}

// draw renders the trail, rods and masses. A diverged state draws nothing.
func (m *Model) draw() {
	m.canvas.Clear()
	if !m.sim.State().IsValid() {
		return
	}

	for _, pt := range m.sim.Trail() {
		px, py := m.project(pt.X, pt.Y)
		m.canvas.Set(px, py)
	}

	x1, y1, x2, y2 := m.sim.Positions()
	ox, oy := m.project(0, 0)
	b1x, b1y := m.project(x1, y1)
	b2x, b2y := m.project(x2, y2)

	m.canvas.Dot(ox, oy, 0)
	m.canvas.DrawLine(ox, oy, b1x, b1y)
	m.canvas.DrawLine(b1x, b1y, b2x, b2y)
	m.canvas.Dot(b1x, b1y, 1)
	m.canvas.Dot(b2x, b2y, 1)
}

func (m Model) status() (string, lipgloss.Color) {
	switch {
	case !m.sim.State().IsValid():
		return "DIVERGED", m.theme.Error
	case m.recording:
		return "RECORDING", m.theme.Error
	case !m.running:
		return "PAUSED", m.theme.Warning
	default:
		return "RUNNING", m.theme.Accent
	}
}

// View renders the TUI interface.
func (m Model) View() string {
	canvasView := canvasStyle.Foreground(m.theme.Primary).Render(m.canvas.String())

	var s strings.Builder
	s.WriteString(HeaderStyle.Render("DOUBLE PENDULUM") + "\n")
	text, color := m.status()
	s.WriteString(statusStyle(color).Render(text) + "\n\n")

	if len(m.energyHistory) > 1 {
		chart := asciigraph.Plot(m.energyHistory,
			asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("Energy"))
		s.WriteString(lipgloss.NewStyle().Foreground(m.theme.Primary).Render(chart) + "\n\n")
	}

	st := m.sim.State()
	row := func(label, value string) {
		s.WriteString(MetricLabel.Render(label) + MetricValue.Render(value) + "\n")
	}
	row("Time", fmt.Sprintf("%.2fs", m.sim.Time()))
	row("Energy", fmt.Sprintf("%.3f", m.sim.Energy()))
	row("θ1 / ω1", fmt.Sprintf("%+.3f / %+.3f", st[0], st[1]))
	row("θ2 / ω2", fmt.Sprintf("%+.3f / %+.3f", st[2], st[3]))
	row("Kicks", fmt.Sprintf("%d", m.sim.Kicks()))
	s.WriteString(SparklineChart(m.energyHistory, 30) + "\n")

	s.WriteString("\n" + Separator(30, m.theme.Muted) + "\n")
	s.WriteString(KeyHint.Render("Click:Kick SP:Pause R:Reset Q:Quit\nT:Theme G:Record ?:Help"))

	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsStyle.Render(s.String()))
	if m.showHelp {
		return helpText + "\n\n" + mainView
	}
	return mainView
}

const helpText = `
╔══════════════════════════════════════╗
║           KEYBOARD SHORTCUTS         ║
╠══════════════════════════════════════╣
║  Click    - Random velocity kick     ║
║  P        - Kick from the keyboard   ║
║  Space    - Pause/Resume simulation  ║
║  R        - Reset simulation         ║
║  T        - Cycle themes             ║
║  G        - Toggle GIF recording     ║
║  ?        - Toggle this help         ║
║  Q        - Quit                     ║
╚══════════════════════════════════════╝`

func saveGIF(path string, frames []*image.Paletted, fps int) error {
	if len(frames) == 0 {
		return nil
	}
	delay := max(100/fps, 1)
	anim := gif.GIF{LoopCount: 0}
	for _, frame := range frames {
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, delay)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gif.EncodeAll(f, &anim)
}
