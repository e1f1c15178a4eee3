// Package transition implements the per-output wallpaper transition state
// machine. The engine only computes blend progress; texture ownership stays
// with the surface.
package transition

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/layerpaper/layerpaper/internal/config"
)

type State int

const (
	Idle State = iota
	Animating
)

func (s State) String() string {
	if s == Animating {
		return "animating"
	}
	return "idle"
}

// Engine animates a single output's blend factor from 0 to 1 over a
// configured duration. At most one episode is ever active: starting while
// animating restarts the timer from zero against the new target.
type Engine struct {
	clock clockwork.Clock

	state    State
	start    time.Time
	duration time.Duration
	easing   config.Easing
}

func NewEngine(clock clockwork.Clock) *Engine {
	return &Engine{clock: clock}
}

func (e *Engine) State() State {
	return e.state
}

// Start begins a transition episode, or restarts the in-flight one when
// called mid-animation. It reports whether an animation is now running; a
// non-positive duration is an instant cut and leaves the engine Idle.
func (e *Engine) Start(duration time.Duration, easing config.Easing) bool {
	if duration <= 0 {
		e.state = Idle
		return false
	}
	e.state = Animating
	e.start = e.clock.Now()
	e.duration = duration
	e.easing = easing
	return true
}

// Cancel drops any in-flight episode, e.g. when the output goes away.
func (e *Engine) Cancel() {
	e.state = Idle
}

// Blend returns the eased blend factor for the current frame. Once elapsed
// time reaches the duration it returns exactly 1 and the engine lands in
// Idle; the caller then promotes the incoming texture slot.
func (e *Engine) Blend() (float32, bool) {
	if e.state != Animating {
		return 1, true
	}

	elapsed := e.clock.Since(e.start)
	if elapsed >= e.duration {
		e.state = Idle
		return 1, true
	}

	progress := float32(elapsed.Seconds() / e.duration.Seconds())
	return applyEasing(e.easing, progress), false
}

func applyEasing(mode config.Easing, t float32) float32 {
	switch mode {
	case config.EasingLinear:
		return t
	case config.EasingEaseIn:
		return t * t
	case config.EasingEaseOut:
		return t * (2 - t)
	case config.EasingEaseInOut:
		if t < 0.5 {
			return 2 * t * t
		}
		return -1 + (4-2*t)*t
	default:
		return t
	}
}
