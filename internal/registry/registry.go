// Package registry tracks the live set of compositor outputs and owns, per
// output, the GPU surface, transition engine, rotation state and wallpaper
// selection bookkeeping. All methods must be called from the event loop
// thread; the registry itself takes no locks.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"

	"github.com/layerpaper/layerpaper/internal/config"
	"github.com/layerpaper/layerpaper/internal/decode"
	"github.com/layerpaper/layerpaper/internal/picker"
	"github.com/layerpaper/layerpaper/internal/surface"
	"github.com/layerpaper/layerpaper/internal/transition"
)

type Lifecycle int

const (
	Pending Lifecycle = iota
	Active
	Removed
)

// ErrNoSuchOutput is returned by control operations naming an output the
// registry does not track.
var ErrNoSuchOutput = errors.New("no such output")

func (l Lifecycle) String() string {
	switch l {
	case Active:
		return "active"
	case Removed:
		return "removed"
	default:
		return "pending"
	}
}

// WallpaperEntry is one selected wallpaper. Entries are immutable; a new
// selection always builds a fresh entry.
type WallpaperEntry struct {
	Path               string
	Mode               config.Mode
	Transition         config.Transition
	TransitionDuration time.Duration
}

// pendingSelection correlates an in-flight decode job back to what was
// selected. refresh marks a re-decode of the already-displayed wallpaper
// (after a geometry change), which is applied without a transition.
type pendingSelection struct {
	entry   WallpaperEntry
	easing  config.Easing
	refresh bool
}

// Output is one live display output and everything the registry owns for it.
// The surface is nil when GPU surface creation failed; such outputs are
// skipped on render but otherwise tracked normally.
type Output struct {
	ID       uint32
	Name     string
	Geometry surface.Geometry
	State    Lifecycle

	surface surface.Surface
	engine  *transition.Engine
	picker  *picker.Picker
	policy  config.Policy

	seq      uint64
	accepted uint64
	pending  map[uint64]pendingSelection

	current    *WallpaperEntry
	hasTexture bool
	paused     bool
	timer      clockwork.Timer
}

// FileLister enumerates the candidate wallpaper files for a configured path.
// A path naming a single file yields a one-element list. The walk itself is
// an external collaborator.
type FileLister func(path string, recursive bool) ([]string, error)

// Submitter is the decode pool boundary.
type Submitter interface {
	Submit(decode.Job) error
}

type Registry struct {
	store    *config.Store
	pool     Submitter
	surfaces surface.Factory
	clock    clockwork.Clock
	list     FileLister

	outputs   map[uint32]*Output
	rotationC chan uint32
	pausedAll bool
}

func New(store *config.Store, pool Submitter, surfaces surface.Factory, clock clockwork.Clock, list FileLister) *Registry {
	return &Registry{
		store:     store,
		pool:      pool,
		surfaces:  surfaces,
		clock:     clock,
		list:      list,
		outputs:   make(map[uint32]*Output),
		rotationC: make(chan uint32, 16),
	}
}

// RotationC delivers output ids whose rotation timer has fired. The timer
// callback only posts the id; the actual wallpaper change happens when the
// loop calls OnRotation.
func (r *Registry) RotationC() <-chan uint32 {
	return r.rotationC
}

// OnOutputAdded allocates a GPU surface for the announced output and seeds
// its wallpaper from the active config. Surface creation failure is logged
// and leaves the output without a surface; it never takes the daemon down.
func (r *Registry) OnOutputAdded(id uint32, name string, geom surface.Geometry) {
	if _, exists := r.outputs[id]; exists {
		log.Warnf("output %d (%s) announced twice, ignoring", id, name)
		return
	}

	out := &Output{
		ID:       id,
		Name:     name,
		Geometry: geom,
		State:    Active,
		engine:   transition.NewEngine(r.clock),
		pending:  make(map[uint64]pendingSelection),
	}

	s, err := r.surfaces.Create(id, geom)
	if err != nil {
		log.Errorf("creating surface for output %s: %v (output will not be rendered)", name, err)
	} else {
		out.surface = s
	}

	r.outputs[id] = out
	log.Infof("output %s added (%dx%d@%d)", name, geom.Width, geom.Height, geom.Scale)

	cfg := r.store.Active()
	if cfg == nil {
		return
	}
	r.applyPolicy(out, cfg.PolicyFor(name))
}

// OnOutputChanged handles a geometry or scale change. The drawable is
// recreated in place and the displayed wallpaper is re-decoded at the new
// target size rather than stretched from a stale buffer.
func (r *Registry) OnOutputChanged(id uint32, geom surface.Geometry) {
	out, ok := r.outputs[id]
	if !ok {
		return
	}
	if out.Geometry == geom {
		return
	}
	out.Geometry = geom
	log.Infof("output %s resized to %dx%d@%d", out.Name, geom.Width, geom.Height, geom.Scale)

	if out.surface != nil {
		if err := out.surface.Resize(geom); err != nil {
			log.Errorf("resizing surface for output %s: %v", out.Name, err)
			out.surface.Destroy()
			out.surface = nil
			out.hasTexture = false
		}
	}

	if out.current != nil {
		r.selectPath(out, out.current.Path, true)
	}
}

// OnOutputRemoved synchronously releases the output's GPU surface and
// cancels its timers. Decode results still in flight for the id are dropped
// when they arrive.
func (r *Registry) OnOutputRemoved(id uint32) {
	out, ok := r.outputs[id]
	if !ok {
		return
	}
	if out.timer != nil {
		out.timer.Stop()
		out.timer = nil
	}
	out.engine.Cancel()
	if out.surface != nil {
		out.surface.Destroy()
		out.surface = nil
	}
	out.State = Removed
	delete(r.outputs, id)
	log.Infof("output %s removed", out.Name)
}

// OnDecodeResult applies a completed decode job. Results for removed outputs
// and results older than the output's latest accepted selection are
// discarded; decode failures keep the current wallpaper.
func (r *Registry) OnDecodeResult(res decode.Result) {
	out, ok := r.outputs[res.Job.Output]
	if !ok {
		log.Debugf("dropping decode result for removed output %d", res.Job.Output)
		return
	}

	sel, ok := out.pending[res.Job.Seq]
	if !ok {
		log.Debugf("dropping unknown decode result for output %s seq %d", out.Name, res.Job.Seq)
		return
	}
	delete(out.pending, res.Job.Seq)

	if res.Job.Seq < out.accepted {
		log.Debugf("dropping stale decode result for output %s (seq %d < %d)",
			out.Name, res.Job.Seq, out.accepted)
		return
	}

	if res.Err != nil {
		log.Errorf("decode failed for output %s: %v", out.Name, res.Err)
		return
	}

	out.accepted = res.Job.Seq

	if out.surface == nil {
		// No surface to paint; still track the selection so status reports it.
		out.current = &sel.entry
		return
	}

	r.apply(out, sel, res)
}

func (r *Registry) apply(out *Output, sel pendingSelection, res decode.Result) {
	entry := sel.entry

	instant := sel.refresh ||
		entry.Transition == config.TransitionNone ||
		entry.TransitionDuration <= 0 ||
		(!out.hasTexture && !out.policy.InitialTransition)

	if instant {
		// Routing through the incoming slot releases both the previous
		// wallpaper and any stale incoming texture from an interrupted
		// transition.
		if err := out.surface.Upload(surface.SlotIncoming, res.Image, entry.Mode); err != nil {
			log.Errorf("uploading wallpaper for output %s: %v", out.Name, err)
			return
		}
		out.engine.Cancel()
		out.surface.Promote()
		if err := out.surface.Render(0); err != nil {
			log.Errorf("rendering output %s: %v", out.Name, err)
		}
	} else {
		// Also covers a selection landing mid-transition: the incoming slot
		// snaps to the new target and the episode restarts from zero.
		if err := out.surface.Upload(surface.SlotIncoming, res.Image, entry.Mode); err != nil {
			log.Errorf("uploading wallpaper for output %s: %v", out.Name, err)
			return
		}
		out.engine.Start(entry.TransitionDuration, sel.easing)
	}

	out.current = &entry
	out.hasTexture = true
	log.Infof("output %s now showing %s", out.Name, entry.Path)
}

// selectPath issues a new decode job for path. Each selection gets the next
// per-output sequence number so stale completions can be told apart.
func (r *Registry) selectPath(out *Output, path string, refresh bool) {
	out.seq++
	sel := pendingSelection{
		entry: WallpaperEntry{
			Path:               path,
			Mode:               out.policy.Mode,
			Transition:         out.policy.Transition,
			TransitionDuration: out.policy.TransitionDuration,
		},
		easing:  out.policy.Easing,
		refresh: refresh,
	}
	out.pending[out.seq] = sel

	w, h := out.Geometry.BufferSize()
	err := r.pool.Submit(decode.Job{
		Output: out.ID,
		Seq:    out.seq,
		Path:   path,
		Mode:   sel.entry.Mode,
		Width:  w,
		Height: h,
	})
	if err != nil {
		log.Errorf("submitting decode for output %s: %v", out.Name, err)
		delete(out.pending, out.seq)
	}
}

// advance rotates the output to its next candidate.
func (r *Registry) advance(out *Output) {
	if out.picker == nil {
		return
	}
	next := out.picker.Next()
	if next == "" {
		log.Warnf("no wallpaper candidates for output %s", out.Name)
		return
	}
	r.selectPath(out, next, false)
}

// applyPolicy resolves the candidate list for a (new) policy and kicks off
// the first selection under it.
func (r *Registry) applyPolicy(out *Output, policy config.Policy) {
	out.policy = policy

	if policy.Path == "" {
		log.Warnf("no wallpaper path configured for output %s", out.Name)
		out.picker = nil
		return
	}

	files, err := r.list(policy.Path, policy.Recursive)
	if err != nil {
		log.Errorf("listing wallpapers for output %s: %v", out.Name, err)
		out.picker = nil
		return
	}

	out.picker = picker.New(files, policy.Sorting, policy.QueueSize)
	r.advance(out)
	r.armTimer(out)
}

func (r *Registry) armTimer(out *Output) {
	if out.timer != nil {
		out.timer.Stop()
		out.timer = nil
	}
	if out.paused || r.pausedAll {
		return
	}
	if out.policy.Duration <= 0 || out.picker == nil || out.picker.Len() < 2 {
		return
	}
	id := out.ID
	out.timer = r.clock.AfterFunc(out.policy.Duration, func() {
		select {
		case r.rotationC <- id:
		default:
		}
	})
}

// OnRotation handles a fired rotation timer. An in-flight transition is not
// interrupted; the timer is simply re-armed and rotation happens on the next
// fire.
func (r *Registry) OnRotation(id uint32) {
	out, ok := r.outputs[id]
	if !ok {
		return
	}
	if out.paused || r.pausedAll {
		return
	}
	if out.engine.State() == transition.Animating {
		r.armTimer(out)
		return
	}
	r.advance(out)
	r.armTimer(out)
}

// SetWallpaper forces a wallpaper on the named output, or on every output
// when name is empty: an explicit path, or "next" to rotate using the same
// candidate logic as the timer. A manual change resets the rotation timer.
func (r *Registry) SetWallpaper(name, target string) error {
	if name == "" {
		for _, out := range r.outputs {
			r.setWallpaper(out, target)
		}
		return nil
	}
	out := r.byName(name)
	if out == nil {
		return fmt.Errorf("%w: %s", ErrNoSuchOutput, name)
	}
	return r.setWallpaper(out, target)
}

func (r *Registry) setWallpaper(out *Output, target string) error {
	if target == "next" {
		if out.picker == nil || out.picker.Len() == 0 {
			return fmt.Errorf("output %s has no wallpaper candidates", out.Name)
		}
		r.advance(out)
	} else {
		r.selectPath(out, target, false)
	}
	r.armTimer(out)
	return nil
}

// Pause disarms rotation for one output, or for all when name is empty. The
// configured interval is kept.
func (r *Registry) Pause(name string) error {
	if name == "" {
		r.pausedAll = true
		for _, out := range r.outputs {
			if out.timer != nil {
				out.timer.Stop()
				out.timer = nil
			}
		}
		return nil
	}
	out := r.byName(name)
	if out == nil {
		return fmt.Errorf("%w: %s", ErrNoSuchOutput, name)
	}
	out.paused = true
	if out.timer != nil {
		out.timer.Stop()
		out.timer = nil
	}
	return nil
}

// Resume re-arms rotation for one output, or for all when name is empty.
func (r *Registry) Resume(name string) error {
	if name == "" {
		r.pausedAll = false
		for _, out := range r.outputs {
			r.armTimer(out)
		}
		return nil
	}
	out := r.byName(name)
	if out == nil {
		return fmt.Errorf("%w: %s", ErrNoSuchOutput, name)
	}
	out.paused = false
	r.armTimer(out)
	return nil
}

// ApplyConfig re-resolves every output's policy after a reload. When the
// effective wallpaper source changed the output transitions to a fresh
// selection; otherwise the policy is updated in place and the timer
// re-armed.
func (r *Registry) ApplyConfig(cfg *config.Config) {
	for _, out := range r.outputs {
		newPolicy := cfg.PolicyFor(out.Name)
		old := out.policy

		sourceChanged := old.Path != newPolicy.Path ||
			old.Recursive != newPolicy.Recursive ||
			old.Sorting != newPolicy.Sorting

		if sourceChanged {
			r.applyPolicy(out, newPolicy)
			continue
		}

		out.policy = newPolicy
		if old.Mode != newPolicy.Mode && out.current != nil {
			// Same wallpaper, new display mode: re-decode for the new mode
			// without a transition.
			r.selectPath(out, out.current.Path, true)
		}
		r.armTimer(out)
	}
}

// RenderFrame draws one animation frame for every transitioning output and
// reports whether any transition is still running. Episodes that land at
// blend 1 promote the incoming texture and fall back to Idle.
func (r *Registry) RenderFrame() bool {
	animating := false
	for _, out := range r.outputs {
		if out.surface == nil || !out.hasTexture {
			continue
		}
		if out.engine.State() != transition.Animating {
			continue
		}
		blend, done := out.engine.Blend()
		if err := out.surface.Render(blend); err != nil {
			log.Errorf("rendering output %s: %v", out.Name, err)
			continue
		}
		if done {
			out.surface.Promote()
		} else {
			animating = true
		}
	}
	return animating
}

// Redraw repaints one output without advancing any transition, e.g. after a
// compositor configure event.
func (r *Registry) Redraw(id uint32) {
	out, ok := r.outputs[id]
	if !ok || out.surface == nil || !out.hasTexture {
		return
	}
	blend := float32(0)
	if out.engine.State() == transition.Animating {
		blend, _ = out.engine.Blend()
	}
	if err := out.surface.Render(blend); err != nil {
		log.Errorf("rendering output %s: %v", out.Name, err)
	}
}

// AnyAnimating reports whether any output has a transition in flight.
func (r *Registry) AnyAnimating() bool {
	for _, out := range r.outputs {
		if out.engine.State() == transition.Animating {
			return true
		}
	}
	return false
}

// CloseAll releases every GPU surface, used on graceful shutdown.
func (r *Registry) CloseAll() {
	for id := range r.outputs {
		r.OnOutputRemoved(id)
	}
}

func (r *Registry) byName(name string) *Output {
	for _, out := range r.outputs {
		if out.Name == name {
			return out
		}
	}
	return nil
}

// OutputStatus is the externally visible state of one output.
type OutputStatus struct {
	ID            uint32           `json:"id"`
	Name          string           `json:"name"`
	Geometry      surface.Geometry `json:"geometry"`
	State         string           `json:"state"`
	Wallpaper     string           `json:"wallpaper"`
	Transitioning bool             `json:"transitioning"`
	Paused        bool             `json:"paused"`
}

// Snapshot returns the status of all live outputs, sorted by name.
func (r *Registry) Snapshot() []OutputStatus {
	statuses := make([]OutputStatus, 0, len(r.outputs))
	for _, out := range r.outputs {
		status := OutputStatus{
			ID:            out.ID,
			Name:          out.Name,
			Geometry:      out.Geometry,
			State:         out.State.String(),
			Transitioning: out.engine.State() == transition.Animating,
			Paused:        out.paused || r.pausedAll,
		}
		if out.current != nil {
			status.Wallpaper = out.current.Path
		}
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}

// Current returns the wallpaper shown on the named output.
func (r *Registry) Current(name string) (string, error) {
	out := r.byName(name)
	if out == nil {
		return "", fmt.Errorf("%w: %s", ErrNoSuchOutput, name)
	}
	if out.current == nil {
		return "", nil
	}
	return out.current.Path, nil
}
