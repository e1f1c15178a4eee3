package ipc

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/layerpaper/layerpaper/internal/config"
	"github.com/layerpaper/layerpaper/internal/registry"
)

func ok(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, Response{Status: "ok", Data: data})
}

// fail maps a manager error to a structured error response. The connection
// stays usable for further requests; a failed command is never a dropped
// connection.
func fail(c echo.Context, err error) error {
	kind := ErrorInternal
	code := http.StatusInternalServerError

	var perr *config.ParseError
	switch {
	case errors.As(err, &perr):
		kind = ErrorConfig
		code = http.StatusUnprocessableEntity
	case errors.Is(err, registry.ErrNoSuchOutput):
		kind = ErrorNotFound
		code = http.StatusNotFound
	}

	return c.JSON(code, Response{Status: "error", Kind: kind, Message: err.Error()})
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, Response{
		Status:  "error",
		Kind:    ErrorBadRequest,
		Message: message,
	})
}

// GET /status
func statusHandler(m Manager) echo.HandlerFunc {
	return func(c echo.Context) error {
		return ok(c, m.Status())
	}
}

// GET /wallpaper?output=NAME
func getWallpaperHandler(m Manager) echo.HandlerFunc {
	return func(c echo.Context) error {
		outputs, err := m.GetWallpaper(c.QueryParam("output"))
		if err != nil {
			return fail(c, err)
		}
		return ok(c, outputs)
	}
}

// POST /wallpaper
func setWallpaperHandler(m Manager) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req SetWallpaperRequest
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "invalid set-wallpaper request body")
		}
		if req.Path == "" {
			return badRequest(c, "set-wallpaper requires a path")
		}
		if err := m.SetWallpaper(req.Output, req.Path); err != nil {
			return fail(c, err)
		}
		return ok(c, nil)
	}
}

// POST /pause
func pauseHandler(m Manager) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req PauseRequest
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "invalid pause request body")
		}
		if err := m.Pause(req.Output); err != nil {
			return fail(c, err)
		}
		return ok(c, nil)
	}
}

// POST /resume
func resumeHandler(m Manager) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req PauseRequest
		if err := c.Bind(&req); err != nil {
			return badRequest(c, "invalid resume request body")
		}
		if err := m.Resume(req.Output); err != nil {
			return fail(c, err)
		}
		return ok(c, nil)
	}
}

// POST /reload
func reloadHandler(m Manager) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := m.ReloadConfig(); err != nil {
			return fail(c, err)
		}
		return ok(c, nil)
	}
}

// POST /stop
func stopHandler(m Manager) echo.HandlerFunc {
	return func(c echo.Context) error {
		m.Stop()
		return ok(c, nil)
	}
}
