// Package surface defines the per-output GPU rendering contract. The GL
// implementation lives with the wayland plumbing; everything above it talks
// to these interfaces so output lifecycle logic is testable without a
// compositor.
package surface

import (
	"image"

	"github.com/layerpaper/layerpaper/internal/config"
)

// Geometry is one output's position, logical size and integer scale factor.
type Geometry struct {
	X      int
	Y      int
	Width  int
	Height int
	Scale  int
}

// BufferSize is the pixel size of the output's buffer (logical size times
// scale).
func (g Geometry) BufferSize() (int, int) {
	scale := g.Scale
	if scale < 1 {
		scale = 1
	}
	return g.Width * scale, g.Height * scale
}

// Slot names one of the two resident texture slots.
type Slot int

const (
	// SlotCurrent holds the wallpaper being shown.
	SlotCurrent Slot = iota
	// SlotIncoming holds the wallpaper being transitioned to.
	SlotIncoming
)

// Surface owns one output's rendering context, drawable and texture slots.
// Every method must be called from the thread that owns the GL context.
type Surface interface {
	// Upload replaces the texture in slot with img, drawn per mode.
	Upload(slot Slot, img *image.RGBA, mode config.Mode) error

	// Render draws the resident textures composited by blend: 0 shows only
	// the current slot, 1 only the incoming slot.
	Render(blend float32) error

	// Promote moves the incoming texture into the current slot and releases
	// the old current texture. Called when a transition lands at blend 1.
	Promote()

	// Resize recreates the drawable for new geometry. Already uploaded
	// texture data is preserved until the caller re-decodes at the new size.
	Resize(geom Geometry) error

	// Destroy releases the drawable, context bindings and both textures.
	Destroy()
}

// Factory creates a Surface bound to a live output.
type Factory interface {
	Create(id uint32, geom Geometry) (Surface, error)
}
