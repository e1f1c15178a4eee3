// Package wayland owns every cgo touchpoint: the display connection, the
// registry, per-output layer surfaces and the EGL/GLES rendering behind the
// surface.Surface interface. Nothing outside this package sees a C type.
package wayland

/*
#cgo LDFLAGS: -lwayland-client -lwayland-egl -lEGL
#include "client.h"
*/
import "C"

import (
	"fmt"
	"runtime"
	"runtime/cgo"
	"unsafe"

	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"

	"github.com/layerpaper/layerpaper/internal/surface"
)

// Event is a display-side change delivered to the daemon loop.
type Event interface {
	isEvent()
}

// OutputAdded announces a new output once its name and mode are known.
type OutputAdded struct {
	ID       uint32
	Name     string
	Geometry surface.Geometry
}

// OutputChanged announces a mode, position or scale change on a known output.
type OutputChanged struct {
	ID       uint32
	Geometry surface.Geometry
}

// OutputRemoved announces that an output is gone.
type OutputRemoved struct {
	ID uint32
}

func (OutputAdded) isEvent()   {}
func (OutputChanged) isEvent() {}
func (OutputRemoved) isEvent() {}

// output tracks one wl_output between its announce and done events.
type output struct {
	id       uint32
	wlOutput *C.struct_wl_output

	name      string
	x, y      int
	physW     int
	physH     int
	scale     int
	announced bool
	dirty     bool
}

func (o *output) geometry() surface.Geometry {
	scale := o.scale
	if scale < 1 {
		scale = 1
	}
	return surface.Geometry{
		X:      o.x,
		Y:      o.y,
		Width:  o.physW / scale,
		Height: o.physH / scale,
		Scale:  scale,
	}
}

// Conn is the live Wayland connection. All methods except Ready must be
// called from the OS thread that called Connect.
type Conn struct {
	display    *C.struct_wl_display
	registry   *C.struct_wl_registry
	compositor *C.struct_wl_compositor
	layerShell *C.struct_zwlr_layer_shell_v1

	compositorVersion int

	eglDisplay C.EGLDisplay
	eglContext C.EGLContext
	eglConfig  C.EGLConfig

	handle  cgo.Handle
	outputs map[uint32]*output

	// layer surface proxy -> owning GL surface, for configure dispatch
	surfaces map[*C.struct_zwlr_layer_surface_v1]*glSurface

	events []Event

	glReady      bool
	program      uint32
	attribPos    uint32
	attribTex    uint32
	uniformTex   int32
	uniformAlpha int32

	readyC  chan struct{}
	resumeC chan struct{}
	doneC   chan struct{}
}

// Connect opens the display, binds the globals and performs the initial
// roundtrips so every present output is known. It locks the calling
// goroutine to its OS thread; the GL context created here stays bound to it.
func Connect() (*Conn, error) {
	runtime.LockOSThread()

	c := &Conn{
		outputs:  make(map[uint32]*output),
		surfaces: make(map[*C.struct_zwlr_layer_surface_v1]*glSurface),
		readyC:   make(chan struct{}, 1),
		resumeC:  make(chan struct{}, 1),
		doneC:    make(chan struct{}),
	}

	c.display = C.connect_wayland_display()
	if c.display == nil {
		return nil, fmt.Errorf("failed to connect to Wayland display")
	}

	c.registry = C.wl_display_get_registry(c.display)
	if c.registry == nil {
		C.wl_display_disconnect(c.display)
		return nil, fmt.Errorf("failed to get Wayland registry")
	}

	c.handle = cgo.NewHandle(c)
	C.wl_registry_add_listener(c.registry, C.get_registry_listener(), unsafe.Pointer(uintptr(c.handle)))

	// First roundtrip delivers the globals, second the wl_output events
	// for everything bound during the first.
	C.wl_display_roundtrip(c.display)
	C.wl_display_roundtrip(c.display)

	if c.compositor == nil {
		c.teardown()
		return nil, fmt.Errorf("compositor does not advertise wl_compositor")
	}
	if c.layerShell == nil {
		c.teardown()
		return nil, fmt.Errorf("compositor does not advertise zwlr_layer_shell_v1")
	}

	var err error
	c.eglDisplay, c.eglContext, c.eglConfig, err = initEGL(c.display)
	if err != nil {
		c.teardown()
		return nil, err
	}

	go c.poll()

	runtime.KeepAlive(c)
	return c, nil
}

// Ready signals that the display fd has data. After receiving, the loop
// must call Dispatch before the next signal is produced.
func (c *Conn) Ready() <-chan struct{} {
	return c.readyC
}

func (c *Conn) poll() {
	fd := int32(C.wl_display_get_fd(c.display))
	for {
		pfd := []unix.PollFd{{Fd: fd, Events: unix.POLLIN}}
		_, err := unix.Poll(pfd, -1)
		if err == unix.EINTR {
			continue
		}
		select {
		case c.readyC <- struct{}{}:
		case <-c.doneC:
			return
		}
		// Wait for the loop to consume the pending data so we do not
		// spin on a readable fd.
		select {
		case <-c.resumeC:
		case <-c.doneC:
			return
		}
		if err != nil || pfd[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			return
		}
	}
}

// Dispatch processes pending display events and returns whatever output
// changes they produced. A non-nil error means the compositor is gone.
func (c *Conn) Dispatch() ([]Event, error) {
	if C.wl_display_roundtrip(c.display) == -1 {
		return c.Drain(), fmt.Errorf("lost connection to Wayland display")
	}
	select {
	case c.resumeC <- struct{}{}:
	default:
	}
	return c.Drain(), nil
}

// Drain returns the queued events without touching the display. Used once
// after Connect to pick up the outputs found during the initial roundtrips.
func (c *Conn) Drain() []Event {
	evs := c.events
	c.events = nil
	return evs
}

// Flush pushes buffered requests to the compositor.
func (c *Conn) Flush() {
	C.wl_display_flush(c.display)
}

func (c *Conn) queue(ev Event) {
	c.events = append(c.events, ev)
}

// Close tears down every remaining surface, the EGL context and the display
// connection.
func (c *Conn) Close() {
	close(c.doneC)

	for _, s := range c.surfaces {
		s.Destroy()
	}

	c.destroyProgram()

	if c.eglDisplay != nil {
		C.eglMakeCurrent(c.eglDisplay, nil, nil, nil)
		if c.eglContext != nil {
			C.eglDestroyContext(c.eglDisplay, c.eglContext)
			c.eglContext = nil
		}
		C.eglTerminate(c.eglDisplay)
		c.eglDisplay = nil
	}

	c.teardown()
	c.handle.Delete()
}

func (c *Conn) teardown() {
	for id, o := range c.outputs {
		if o.wlOutput != nil {
			C.wl_output_destroy(o.wlOutput)
		}
		delete(c.outputs, id)
	}
	if c.layerShell != nil {
		C.zwlr_layer_shell_v1_destroy(c.layerShell)
		c.layerShell = nil
	}
	if c.compositor != nil {
		C.wl_compositor_destroy(c.compositor)
		c.compositor = nil
	}
	if c.registry != nil {
		C.wl_registry_destroy(c.registry)
		c.registry = nil
	}
	if c.display != nil {
		C.wl_display_disconnect(c.display)
		c.display = nil
	}
}

func (c *Conn) findOutput(wlOut *C.struct_wl_output) *output {
	for _, o := range c.outputs {
		if o.wlOutput == wlOut {
			return o
		}
	}
	return nil
}

//export goHandleGlobal
func goHandleGlobal(handle C.uintptr_t, registry *C.struct_wl_registry, name C.uint32_t, iface *C.char, version C.uint32_t) {
	c := cgo.Handle(uintptr(handle)).Value().(*Conn)

	switch C.GoString(iface) {
	case "zwlr_layer_shell_v1":
		c.layerShell = (*C.struct_zwlr_layer_shell_v1)(C.wl_registry_bind(registry, name, &C.zwlr_layer_shell_v1_interface, 1))
		log.Debug("bound zwlr_layer_shell_v1")
	case "wl_compositor":
		// wl_surface.set_buffer_scale needs compositor v3
		want := C.uint32_t(4)
		if version < want {
			want = version
		}
		c.compositor = (*C.struct_wl_compositor)(C.wl_registry_bind(registry, name, &C.wl_compositor_interface, want))
		c.compositorVersion = int(want)
		log.Debugf("bound wl_compositor v%d", c.compositorVersion)
	case "wl_output":
		// The name event exists since wl_output v4; older compositors
		// get a synthesized name.
		want := C.uint32_t(4)
		if version < want {
			want = version
		}
		wlOut := (*C.struct_wl_output)(C.wl_registry_bind(registry, name, &C.wl_output_interface, want))
		id := uint32(name)
		if _, exists := c.outputs[id]; !exists {
			c.outputs[id] = &output{id: id, wlOutput: wlOut, scale: 1}
			C.wl_output_add_listener(wlOut, C.get_output_listener(), unsafe.Pointer(uintptr(c.handle)))
			log.Debugf("bound wl_output id=%d v%d", id, uint32(want))
		}
	}
}

//export goHandleGlobalRemove
func goHandleGlobalRemove(handle C.uintptr_t, _ *C.struct_wl_registry, name C.uint32_t) {
	c := cgo.Handle(uintptr(handle)).Value().(*Conn)

	id := uint32(name)
	o, ok := c.outputs[id]
	if !ok {
		return
	}
	log.Debugf("output removed id=%d name=%s", id, o.name)
	if o.wlOutput != nil {
		C.wl_output_destroy(o.wlOutput)
	}
	delete(c.outputs, id)
	c.queue(OutputRemoved{ID: id})
}

//export goHandleOutputGeometry
func goHandleOutputGeometry(handle C.uintptr_t, wlOut *C.struct_wl_output, x, y C.int32_t) {
	c := cgo.Handle(uintptr(handle)).Value().(*Conn)
	if o := c.findOutput(wlOut); o != nil {
		if o.x != int(x) || o.y != int(y) {
			o.x = int(x)
			o.y = int(y)
			o.dirty = true
		}
	}
}

//export goHandleOutputMode
func goHandleOutputMode(handle C.uintptr_t, wlOut *C.struct_wl_output, flags C.uint32_t, width, height C.int32_t) {
	const currentMode = 0x1
	if flags&currentMode == 0 {
		return
	}
	c := cgo.Handle(uintptr(handle)).Value().(*Conn)
	if o := c.findOutput(wlOut); o != nil {
		if o.physW != int(width) || o.physH != int(height) {
			o.physW = int(width)
			o.physH = int(height)
			o.dirty = true
		}
	}
}

//export goHandleOutputScale
func goHandleOutputScale(handle C.uintptr_t, wlOut *C.struct_wl_output, factor C.int32_t) {
	c := cgo.Handle(uintptr(handle)).Value().(*Conn)
	o := c.findOutput(wlOut)
	if o == nil {
		return
	}
	scale := int(factor)
	if scale < 1 {
		scale = 1
	}
	if o.scale != scale {
		o.scale = scale
		o.dirty = true
	}
}

//export goHandleOutputName
func goHandleOutputName(handle C.uintptr_t, wlOut *C.struct_wl_output, name *C.char) {
	c := cgo.Handle(uintptr(handle)).Value().(*Conn)
	if o := c.findOutput(wlOut); o != nil {
		o.name = C.GoString(name)
	}
}

//export goHandleOutputDone
func goHandleOutputDone(handle C.uintptr_t, wlOut *C.struct_wl_output) {
	c := cgo.Handle(uintptr(handle)).Value().(*Conn)
	o := c.findOutput(wlOut)
	if o == nil {
		return
	}
	if o.name == "" {
		o.name = fmt.Sprintf("output-%d", o.id)
	}
	if !o.announced {
		o.announced = true
		o.dirty = false
		c.queue(OutputAdded{ID: o.id, Name: o.name, Geometry: o.geometry()})
		return
	}
	if o.dirty {
		o.dirty = false
		c.queue(OutputChanged{ID: o.id, Geometry: o.geometry()})
	}
}

//export goHandleLayerSurfaceConfigure
func goHandleLayerSurfaceConfigure(handle C.uintptr_t, layerSurf *C.struct_zwlr_layer_surface_v1, serial, width, height C.uint32_t) {
	c := cgo.Handle(uintptr(handle)).Value().(*Conn)

	C.zwlr_layer_surface_v1_ack_configure(layerSurf, serial)

	s, ok := c.surfaces[layerSurf]
	if !ok {
		return
	}
	s.configure(int(width), int(height))
}

//export goHandleLayerSurfaceClosed
func goHandleLayerSurfaceClosed(handle C.uintptr_t, layerSurf *C.struct_zwlr_layer_surface_v1) {
	c := cgo.Handle(uintptr(handle)).Value().(*Conn)

	s, ok := c.surfaces[layerSurf]
	if !ok {
		return
	}
	log.Debugf("layer surface closed for output %d", s.outputID)
	id := s.outputID
	s.Destroy()
	c.queue(OutputRemoved{ID: id})
}

func initEGL(dpy *C.struct_wl_display) (C.EGLDisplay, C.EGLContext, C.EGLConfig, error) {
	eglDisplay := C.eglGetDisplay(C.EGLNativeDisplayType(unsafe.Pointer(dpy)))
	if eglDisplay == nil {
		return nil, nil, nil, fmt.Errorf("failed to get EGL display")
	}
	if C.eglInitialize(eglDisplay, nil, nil) == C.EGL_FALSE {
		return nil, nil, nil, fmt.Errorf("failed to initialize EGL")
	}

	var config C.EGLConfig
	var numConfigs C.EGLint
	attribs := []C.EGLint{
		C.EGL_SURFACE_TYPE, C.EGL_WINDOW_BIT,
		C.EGL_RED_SIZE, 8,
		C.EGL_GREEN_SIZE, 8,
		C.EGL_BLUE_SIZE, 8,
		C.EGL_RENDERABLE_TYPE, C.EGL_OPENGL_ES2_BIT,
		C.EGL_NONE,
	}
	if C.eglChooseConfig(eglDisplay, &attribs[0], &config, 1, &numConfigs) == C.EGL_FALSE || numConfigs == 0 {
		C.eglTerminate(eglDisplay)
		return nil, nil, nil, fmt.Errorf("failed to choose EGL config")
	}

	ctxAttribs := []C.EGLint{
		C.EGL_CONTEXT_CLIENT_VERSION, 2,
		C.EGL_NONE,
	}
	eglContext := C.eglCreateContext(eglDisplay, config, nil, &ctxAttribs[0])
	if eglContext == nil {
		C.eglTerminate(eglDisplay)
		return nil, nil, nil, fmt.Errorf("failed to create EGL context")
	}

	return eglDisplay, eglContext, config, nil
}
