package ipc

import (
	"github.com/layerpaper/layerpaper/internal/registry"
)

// ErrorKind classifies a failed control request so clients can react without
// parsing the message text.
type ErrorKind string

const (
	ErrorBadRequest ErrorKind = "bad-request"
	ErrorNotFound   ErrorKind = "not-found"
	ErrorConfig     ErrorKind = "config"
	ErrorInternal   ErrorKind = "internal"
)

// Response is the envelope every control request resolves to, success or
// error. Kind is only set on errors.
type Response struct {
	Status  string    `json:"status"`
	Kind    ErrorKind `json:"kind,omitempty"`
	Message string    `json:"message,omitempty"`
	Data    any       `json:"data,omitempty"`
}

// StatusPayload is the Data of a status response.
type StatusPayload struct {
	Version string                  `json:"version"`
	PID     int                     `json:"pid"`
	Socket  string                  `json:"socket"`
	Config  string                  `json:"config"`
	Outputs []registry.OutputStatus `json:"outputs"`
}

// SetWallpaperRequest forces a wallpaper on one output, or on every output
// when Output is empty. Path is a file path or the literal "next".
type SetWallpaperRequest struct {
	Output string `json:"output"`
	Path   string `json:"path"`
}

// PauseRequest pauses or resumes rotation; an empty Output targets every
// output.
type PauseRequest struct {
	Output string `json:"output"`
}

// Manager is the daemon boundary the control channel talks to. Calls are
// serviced on the event loop thread; the server blocks until the loop has
// produced the answer, so each request resolves to exactly one response.
type Manager interface {
	Status() StatusPayload
	GetWallpaper(output string) ([]registry.OutputStatus, error)
	SetWallpaper(output, path string) error
	Pause(output string) error
	Resume(output string) error
	ReloadConfig() error
	Stop()
}
