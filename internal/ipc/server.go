// Package ipc is the local control channel: a small HTTP API served over a
// unix socket, one request/response exchange per command.
package ipc

import (
	"context"
	"net"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
)

// SocketPath derives the control socket path from the runtime directory of
// the current user.
func SocketPath() string {
	sockDir := os.Getenv("XDG_RUNTIME_DIR")
	if sockDir == "" {
		sockDir = os.TempDir()
	}
	return sockDir + "/layerpaper.sock"
}

type Server struct {
	echo *echo.Echo
	path string
}

func NewServer(manager Manager) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(CharmLog())
	RegisterRoutes(e, manager)

	return &Server{echo: e, path: SocketPath()}
}

// Start binds the unix socket and serves until Shutdown. A stale socket file
// from a previous run is removed first.
func (s *Server) Start() error {
	if _, err := os.Stat(s.path); err == nil {
		_ = os.Remove(s.path)
	}

	listener, err := net.Listen("unix", s.path)
	if err != nil {
		return err
	}
	s.echo.Listener = listener

	log.Debugf("control socket listening on %s", s.path)
	if err := s.echo.StartServer(new(http.Server)); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server and removes the socket file.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.echo.Shutdown(ctx)
	_ = os.Remove(s.path)
	return err
}

func (s *Server) Path() string {
	return s.path
}
