package wayland

/*
#include "client.h"
*/
import "C"

import (
	"fmt"
	"image"
	"strings"
	"unsafe"

	"github.com/go-gl/gl/v3.1/gles2"

	"github.com/layerpaper/layerpaper/internal/config"
	"github.com/layerpaper/layerpaper/internal/surface"
)

var _ surface.Factory = (*Conn)(nil)

// texSlot is one resident wallpaper texture.
type texSlot struct {
	id     uint32
	width  int
	height int
	mode   config.Mode
}

// glSurface renders one output's wallpaper onto a background layer surface
// through the connection's shared EGL context.
type glSurface struct {
	conn     *Conn
	outputID uint32

	wlSurface  *C.struct_wl_surface
	layerSurf  *C.struct_zwlr_layer_surface_v1
	eglWindow  *C.struct_wl_egl_window
	eglSurface C.EGLSurface

	width  int
	height int
	scale  int

	configured bool
	destroyed  bool

	current  texSlot
	incoming texSlot
}

// Create builds a layer surface on the given output and blocks until the
// compositor configures it.
func (c *Conn) Create(id uint32, geom surface.Geometry) (surface.Surface, error) {
	o, ok := c.outputs[id]
	if !ok {
		return nil, fmt.Errorf("no wl_output with id %d", id)
	}

	s := &glSurface{
		conn:     c,
		outputID: id,
		width:    geom.Width,
		height:   geom.Height,
		scale:    geom.Scale,
	}
	if s.scale < 1 {
		s.scale = 1
	}

	s.wlSurface = C.wl_compositor_create_surface(c.compositor)
	if s.wlSurface == nil {
		return nil, fmt.Errorf("failed to create wl_surface for output %d", id)
	}

	namespace := C.CString("layerpaper")
	defer C.free(unsafe.Pointer(namespace))

	s.layerSurf = C.zwlr_layer_shell_v1_get_layer_surface(
		c.layerShell, s.wlSurface, o.wlOutput,
		C.ZWLR_LAYER_SHELL_V1_LAYER_BACKGROUND, namespace,
	)
	if s.layerSurf == nil {
		C.wl_surface_destroy(s.wlSurface)
		return nil, fmt.Errorf("failed to create layer surface for output %d", id)
	}
	c.surfaces[s.layerSurf] = s

	C.zwlr_layer_surface_v1_add_listener(s.layerSurf, C.get_layer_surface_listener(), unsafe.Pointer(uintptr(c.handle)))
	C.zwlr_layer_surface_v1_set_anchor(s.layerSurf,
		C.ZWLR_LAYER_SURFACE_V1_ANCHOR_TOP|
			C.ZWLR_LAYER_SURFACE_V1_ANCHOR_BOTTOM|
			C.ZWLR_LAYER_SURFACE_V1_ANCHOR_LEFT|
			C.ZWLR_LAYER_SURFACE_V1_ANCHOR_RIGHT)
	C.zwlr_layer_surface_v1_set_exclusive_zone(s.layerSurf, -1)
	C.zwlr_layer_surface_v1_set_size(s.layerSurf, 0, 0)
	C.zwlr_layer_surface_v1_set_keyboard_interactivity(s.layerSurf, 0)
	C.zwlr_layer_surface_v1_set_margin(s.layerSurf, 0, 0, 0, 0)

	if c.compositorVersion >= 3 {
		C.wl_surface_set_buffer_scale(s.wlSurface, C.int(s.scale))
	}
	C.wl_surface_commit(s.wlSurface)

	for i := 0; i < 10 && !s.configured; i++ {
		if C.wl_display_roundtrip(c.display) == -1 {
			s.Destroy()
			return nil, fmt.Errorf("lost connection to Wayland display")
		}
	}
	if !s.configured {
		s.Destroy()
		return nil, fmt.Errorf("timeout waiting for configure on output %d", id)
	}

	bufW, bufH := s.bufferSize()
	s.eglWindow = C.wl_egl_window_create(s.wlSurface, C.int(bufW), C.int(bufH))
	if s.eglWindow == nil {
		s.Destroy()
		return nil, fmt.Errorf("failed to create wl_egl_window for output %d", id)
	}
	s.eglSurface = C.eglCreateWindowSurface(c.eglDisplay, c.eglConfig,
		C.EGLNativeWindowType(uintptr(unsafe.Pointer(s.eglWindow))), nil)
	if s.eglSurface == nil {
		s.Destroy()
		return nil, fmt.Errorf("failed to create EGL surface for output %d", id)
	}

	if err := s.makeCurrent(); err != nil {
		s.Destroy()
		return nil, err
	}
	if err := c.ensureGL(); err != nil {
		s.Destroy()
		return nil, err
	}

	return s, nil
}

// configure records the compositor-assigned size. Runs inside the layer
// surface configure callback.
func (s *glSurface) configure(width, height int) {
	if width > 0 {
		s.width = width
	}
	if height > 0 {
		s.height = height
	}
	s.configured = true
	if s.eglWindow != nil {
		bufW, bufH := s.bufferSize()
		C.wl_egl_window_resize(s.eglWindow, C.int(bufW), C.int(bufH), 0, 0)
	}
}

func (s *glSurface) bufferSize() (int, int) {
	w := s.width
	h := s.height
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w * s.scale, h * s.scale
}

func (s *glSurface) makeCurrent() error {
	if C.eglMakeCurrent(s.conn.eglDisplay, s.eglSurface, s.eglSurface, s.conn.eglContext) == C.EGL_FALSE {
		return fmt.Errorf("failed to make EGL context current for output %d", s.outputID)
	}
	return nil
}

func (s *glSurface) Upload(slot surface.Slot, img *image.RGBA, mode config.Mode) error {
	if s.destroyed {
		return fmt.Errorf("surface for output %d is destroyed", s.outputID)
	}
	if err := s.makeCurrent(); err != nil {
		return err
	}

	tex := &s.current
	if slot == surface.SlotIncoming {
		tex = &s.incoming
	}
	if tex.id != 0 {
		gles2.DeleteTextures(1, &tex.id)
		*tex = texSlot{}
	}

	b := img.Bounds()
	width := b.Dx()
	height := b.Dy()

	var id uint32
	gles2.GenTextures(1, &id)
	gles2.BindTexture(gles2.TEXTURE_2D, id)

	// Tiled wallpapers repeat the texture across the quad; everything else
	// samples edge-clamped.
	wrap := int32(gles2.CLAMP_TO_EDGE)
	if mode == config.ModeTile {
		wrap = gles2.REPEAT
	}
	gles2.TexParameteri(gles2.TEXTURE_2D, gles2.TEXTURE_WRAP_S, wrap)
	gles2.TexParameteri(gles2.TEXTURE_2D, gles2.TEXTURE_WRAP_T, wrap)
	gles2.TexParameteri(gles2.TEXTURE_2D, gles2.TEXTURE_MIN_FILTER, gles2.LINEAR)
	gles2.TexParameteri(gles2.TEXTURE_2D, gles2.TEXTURE_MAG_FILTER, gles2.LINEAR)

	gles2.TexImage2D(gles2.TEXTURE_2D, 0, gles2.RGBA,
		int32(width), int32(height), 0,
		gles2.RGBA, gles2.UNSIGNED_BYTE, gles2.Ptr(img.Pix))

	if glErr := gles2.GetError(); glErr != gles2.NO_ERROR {
		gles2.DeleteTextures(1, &id)
		return fmt.Errorf("failed to upload %dx%d texture: GL error 0x%x", width, height, glErr)
	}

	*tex = texSlot{id: id, width: width, height: height, mode: mode}
	return nil
}

func (s *glSurface) Render(blend float32) error {
	if s.destroyed || !s.configured || s.eglSurface == nil {
		return nil
	}
	if err := s.makeCurrent(); err != nil {
		return err
	}

	c := s.conn
	bufW, bufH := s.bufferSize()
	gles2.Viewport(0, 0, int32(bufW), int32(bufH))
	gles2.ClearColor(0, 0, 0, 1)
	gles2.Clear(gles2.COLOR_BUFFER_BIT)
	gles2.UseProgram(c.program)

	if s.current.id != 0 {
		gles2.Uniform1f(c.uniformAlpha, 1)
		gles2.ActiveTexture(gles2.TEXTURE0)
		gles2.BindTexture(gles2.TEXTURE_2D, s.current.id)
		gles2.Uniform1i(c.uniformTex, 0)
		c.drawQuad(s.current, bufW, bufH)
	}

	if blend > 0 && s.incoming.id != 0 {
		gles2.Enable(gles2.BLEND)
		gles2.BlendFunc(gles2.SRC_ALPHA, gles2.ONE_MINUS_SRC_ALPHA)
		gles2.Uniform1f(c.uniformAlpha, blend)
		gles2.ActiveTexture(gles2.TEXTURE0)
		gles2.BindTexture(gles2.TEXTURE_2D, s.incoming.id)
		gles2.Uniform1i(c.uniformTex, 0)
		c.drawQuad(s.incoming, bufW, bufH)
		gles2.Disable(gles2.BLEND)
	}

	gles2.Finish()
	if C.eglSwapBuffers(c.eglDisplay, s.eglSurface) == C.EGL_FALSE {
		return fmt.Errorf("eglSwapBuffers failed for output %d", s.outputID)
	}
	return nil
}

func (s *glSurface) Promote() {
	if s.incoming.id == 0 {
		return
	}
	if err := s.makeCurrent(); err == nil && s.current.id != 0 {
		gles2.DeleteTextures(1, &s.current.id)
	}
	s.current = s.incoming
	s.incoming = texSlot{}
}

func (s *glSurface) Resize(geom surface.Geometry) error {
	if s.destroyed {
		return fmt.Errorf("surface for output %d is destroyed", s.outputID)
	}
	s.width = geom.Width
	s.height = geom.Height
	s.scale = geom.Scale
	if s.scale < 1 {
		s.scale = 1
	}
	if s.conn.compositorVersion >= 3 && s.wlSurface != nil {
		C.wl_surface_set_buffer_scale(s.wlSurface, C.int(s.scale))
	}
	if s.eglWindow != nil {
		bufW, bufH := s.bufferSize()
		C.wl_egl_window_resize(s.eglWindow, C.int(bufW), C.int(bufH), 0, 0)
	}
	return nil
}

func (s *glSurface) Destroy() {
	if s.destroyed {
		return
	}
	s.destroyed = true

	if s.eglSurface != nil && s.makeCurrent() == nil {
		if s.current.id != 0 {
			gles2.DeleteTextures(1, &s.current.id)
			s.current = texSlot{}
		}
		if s.incoming.id != 0 {
			gles2.DeleteTextures(1, &s.incoming.id)
			s.incoming = texSlot{}
		}
	}

	if s.eglSurface != nil {
		C.eglMakeCurrent(s.conn.eglDisplay, nil, nil, nil)
		C.eglDestroySurface(s.conn.eglDisplay, s.eglSurface)
		s.eglSurface = nil
	}
	if s.eglWindow != nil {
		C.wl_egl_window_destroy(s.eglWindow)
		s.eglWindow = nil
	}
	if s.layerSurf != nil {
		delete(s.conn.surfaces, s.layerSurf)
		C.zwlr_layer_surface_v1_destroy(s.layerSurf)
		s.layerSurf = nil
	}
	if s.wlSurface != nil {
		C.wl_surface_destroy(s.wlSurface)
		s.wlSurface = nil
	}
}

// drawQuad draws one texture slot onto the current framebuffer. The decode
// stage already scaled the pixels for the mode, so placement is all that is
// left: full-screen for fill and stretch, centered at 1:1 for fit and
// center, repeated at 1:1 for tile.
func (c *Conn) drawQuad(t texSlot, outW, outH int) {
	var x1, y1, x2, y2 float32 = -1, -1, 1, 1
	var u1, v1, u2, v2 float32 = 0, 1, 1, 0

	switch t.mode {
	case config.ModeTile:
		u2 = float32(outW) / float32(t.width)
		v1 = float32(outH) / float32(t.height)
	case config.ModeFit, config.ModeCenter:
		sw := float32(t.width) / float32(outW)
		sh := float32(t.height) / float32(outH)
		x1, x2 = -sw, sw
		y1, y2 = -sh, sh
	}

	vertices := []float32{
		x1, y1, u1, v1,
		x2, y1, u2, v1,
		x1, y2, u1, v2,
		x2, y1, u2, v1,
		x2, y2, u2, v2,
		x1, y2, u1, v2,
	}

	gles2.EnableVertexAttribArray(c.attribPos)
	gles2.EnableVertexAttribArray(c.attribTex)
	gles2.VertexAttribPointer(c.attribPos, 2, gles2.FLOAT, false, 4*4, gles2.Ptr(&vertices[0]))
	gles2.VertexAttribPointer(c.attribTex, 2, gles2.FLOAT, false, 4*4, gles2.Ptr(&vertices[2]))
	gles2.DrawArrays(gles2.TRIANGLES, 0, 6)
	gles2.DisableVertexAttribArray(c.attribPos)
	gles2.DisableVertexAttribArray(c.attribTex)
}

const vertexShaderSrc = `
    attribute vec2 a_position;
    attribute vec2 a_texCoord;
    varying vec2 v_texCoord;

    void main() {
        gl_Position = vec4(a_position, 0.0, 1.0);
        v_texCoord = a_texCoord;
    }
` + "\x00"

const fragmentShaderSrc = `
    precision mediump float;
    varying vec2 v_texCoord;
    uniform sampler2D u_texture;
    uniform float u_alpha;

    void main() {
        vec4 texColor = texture2D(u_texture, v_texCoord);
        gl_FragColor = vec4(texColor.rgb, texColor.a * u_alpha);
    }
` + "\x00"

func eglProcAddress(name string) unsafe.Pointer {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	return unsafe.Pointer(C.eglGetProcAddress(cname))
}

// ensureGL loads GLES through EGL and compiles the blend shader. Runs once,
// after the first surface makes the shared context current.
func (c *Conn) ensureGL() error {
	if c.glReady {
		return nil
	}
	if err := gles2.InitWithProcAddrFunc(eglProcAddress); err != nil {
		return fmt.Errorf("failed to load GLES2: %w", err)
	}

	prog, err := compileProgram(vertexShaderSrc, fragmentShaderSrc)
	if err != nil {
		return err
	}
	c.program = prog
	c.attribPos = uint32(gles2.GetAttribLocation(prog, gles2.Str("a_position\x00")))
	c.attribTex = uint32(gles2.GetAttribLocation(prog, gles2.Str("a_texCoord\x00")))
	c.uniformTex = gles2.GetUniformLocation(prog, gles2.Str("u_texture\x00"))
	c.uniformAlpha = gles2.GetUniformLocation(prog, gles2.Str("u_alpha\x00"))
	c.glReady = true
	return nil
}

func (c *Conn) destroyProgram() {
	if c.glReady && c.program != 0 {
		gles2.DeleteProgram(c.program)
		c.program = 0
	}
}

func compileShader(src string, shaderType uint32) (uint32, error) {
	shader := gles2.CreateShader(shaderType)
	csources, free := gles2.Strs(src)
	gles2.ShaderSource(shader, 1, csources, nil)
	free()
	gles2.CompileShader(shader)

	var status int32
	gles2.GetShaderiv(shader, gles2.COMPILE_STATUS, &status)
	if status == gles2.FALSE {
		var logLen int32
		gles2.GetShaderiv(shader, gles2.INFO_LOG_LENGTH, &logLen)
		logBuf := strings.Repeat("\x00", int(logLen)+1)
		gles2.GetShaderInfoLog(shader, logLen, nil, gles2.Str(logBuf))
		gles2.DeleteShader(shader)
		return 0, fmt.Errorf("shader compile error: %s", strings.TrimRight(logBuf, "\x00"))
	}
	return shader, nil
}

func compileProgram(vsrc, fsrc string) (uint32, error) {
	vs, err := compileShader(vsrc, gles2.VERTEX_SHADER)
	if err != nil {
		return 0, err
	}
	fs, err := compileShader(fsrc, gles2.FRAGMENT_SHADER)
	if err != nil {
		gles2.DeleteShader(vs)
		return 0, err
	}

	prog := gles2.CreateProgram()
	gles2.AttachShader(prog, vs)
	gles2.AttachShader(prog, fs)
	gles2.LinkProgram(prog)

	var status int32
	gles2.GetProgramiv(prog, gles2.LINK_STATUS, &status)
	if status == gles2.FALSE {
		var logLen int32
		gles2.GetProgramiv(prog, gles2.INFO_LOG_LENGTH, &logLen)
		logBuf := strings.Repeat("\x00", int(logLen)+1)
		gles2.GetProgramInfoLog(prog, logLen, nil, gles2.Str(logBuf))
		gles2.DeleteProgram(prog)
		gles2.DeleteShader(vs)
		gles2.DeleteShader(fs)
		return 0, fmt.Errorf("program link error: %s", strings.TrimRight(logBuf, "\x00"))
	}

	gles2.DeleteShader(vs)
	gles2.DeleteShader(fs)
	return prog, nil
}
