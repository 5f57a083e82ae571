package viz

import (
	"math"
	"math/rand"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/dpend/internal/dynamo"
	"github.com/san-kum/dpend/internal/physics"
	"github.com/san-kum/dpend/internal/sim"
)

func newTestModel(t *testing.T, x0 dynamo.State) Model {
	t.Helper()
	s, err := sim.New(physics.NewDoublePendulum(), x0,
		sim.WithRand(rand.New(rand.NewSource(1))),
		sim.WithPerturbStrength(4),
		sim.WithTrail(20),
	)
	if err != nil {
		t.Fatal(err)
	}
	return NewModel(s, 0.04, 2)
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func keyMsg(s string) tea.KeyMsg {
	if s == " " {
		return tea.KeyMsg{Type: tea.KeySpace}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestTickAdvances(t *testing.T) {
	m := newTestModel(t, dynamo.State{1, 0, 1, 0})

	next, cmd := m.Update(TickMsg(time.Now()))
	m = next.(Model)
	if cmd == nil {
		t.Error("tick should schedule the next tick")
	}
	if got := m.sim.Time(); math.Abs(got-0.04) > 1e-12 {
		t.Errorf("time = %f, want 0.04", got)
	}
	if len(m.energyHistory) != 1 {
		t.Errorf("energy history = %d, want 1", len(m.energyHistory))
	}
}

func TestPauseStopsTime(t *testing.T) {
	m := newTestModel(t, dynamo.State{1, 0, 1, 0})
	m = update(t, m, keyMsg(" "))
	m = update(t, m, TickMsg(time.Now()))
	if m.sim.Time() != 0 {
		t.Errorf("paused model advanced to %f", m.sim.Time())
	}
	if s, _ := m.status(); s != "PAUSED" {
		t.Errorf("status = %s", s)
	}
}

func TestClickPerturbs(t *testing.T) {
	m := newTestModel(t, dynamo.State{1, 0, 1, 0})

	tests := []struct {
		name  string
		msg   tea.MouseMsg
		kicks int
	}{
		{"left press", tea.MouseMsg{X: 3, Y: 7, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft}, 1},
		{"left press elsewhere", tea.MouseMsg{X: 50, Y: 1, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft}, 2},
		{"release ignored", tea.MouseMsg{Action: tea.MouseActionRelease, Button: tea.MouseButtonLeft}, 2},
		{"motion ignored", tea.MouseMsg{Action: tea.MouseActionMotion}, 2},
	}

	for _, tt := range tests {
		m = update(t, m, tt.msg)
		if got := m.sim.Kicks(); got != tt.kicks {
			t.Errorf("%s: kicks = %d, want %d", tt.name, got, tt.kicks)
		}
	}

	st := m.sim.State()
	if st[0] != 1 || st[2] != 1 {
		t.Errorf("clicks must not move the angles: %v", st)
	}
}

func TestResetKey(t *testing.T) {
	m := newTestModel(t, dynamo.State{1, 0, 1, 0})
	m = update(t, m, TickMsg(time.Now()))
	m = update(t, m, keyMsg("p"))
	m = update(t, m, keyMsg("r"))

	if m.sim.Time() != 0 || m.sim.Kicks() != 0 || len(m.energyHistory) != 0 {
		t.Errorf("reset left t=%f kicks=%d history=%d", m.sim.Time(), m.sim.Kicks(), len(m.energyHistory))
	}
}

func TestQuitKey(t *testing.T) {
	m := newTestModel(t, dynamo.State{1, 0, 1, 0})
	_, cmd := m.Update(keyMsg("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}

func TestThemeCycle(t *testing.T) {
	m := newTestModel(t, dynamo.State{1, 0, 1, 0})
	for range Themes {
		m = update(t, m, keyMsg("t"))
	}
	if m.theme.Name != ThemeCyberpunk.Name {
		t.Errorf("cycling all themes should wrap, got %s", m.theme.Name)
	}
}

func TestDrawHangingPendulum(t *testing.T) {
	m := newTestModel(t, dynamo.State{0, 0, 0, 0})
	m.draw()

	// pivot in the middle, both masses straight below it
	ox, oy := m.project(0, 0)
	_, tipY := m.project(0, -2)
	if tipY <= oy {
		t.Fatalf("tip should be below pivot: %d <= %d", tipY, oy)
	}
	col := ox / 2
	for _, y := range []int{oy, (oy + tipY) / 2, tipY} {
		if m.canvas.Grid[y/4][col] == 0x2800 {
			t.Errorf("expected ink at row %d", y/4)
		}
	}
	if !strings.Contains(m.View(), "DOUBLE PENDULUM") {
		t.Error("view missing header")
	}
}

func TestDivergedStateSkipsDrawing(t *testing.T) {
	m := newTestModel(t, dynamo.State{math.NaN(), 0, 0, 0})
	m = update(t, m, TickMsg(time.Now()))

	for _, row := range m.canvas.Grid {
		for _, r := range row {
			if r != 0x2800 {
				t.Fatal("diverged state should leave the canvas blank")
			}
		}
	}
	if len(m.energyHistory) != 0 {
		t.Error("non-finite energy should not be charted")
	}
	if s, _ := m.status(); s != "DIVERGED" {
		t.Errorf("status = %s", s)
	}
}

func TestSparklineChart(t *testing.T) {
	if got := SparklineChart(nil, 5); got != "─────" {
		t.Errorf("empty sparkline = %q", got)
	}
	out := SparklineChart([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 4)
	if strings.Count(out, "█") != 1 {
		t.Errorf("expected one full bar in %q", out)
	}
}
