// Package viz renders a live double pendulum in the terminal.
//
// The view is a Bubble Tea program drawing on a Braille [Canvas], with the
// energy history plotted beside it. Mouse reporting is enabled so that a
// left click anywhere in the terminal kicks the pendulum.
//
// # Key Bindings
//
//	Click - Random angular velocity kick
//	Space - Pause/Resume simulation
//	R     - Reset to initial state
//	T     - Cycle color themes
//	G     - Toggle GIF recording
//	?     - Show help overlay
package viz
