package ipc

import (
	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo, manager Manager) {
	e.GET("/status", statusHandler(manager))
	e.GET("/wallpaper", getWallpaperHandler(manager))
	e.POST("/wallpaper", setWallpaperHandler(manager))
	e.POST("/pause", pauseHandler(manager))
	e.POST("/resume", resumeHandler(manager))
	e.POST("/reload", reloadHandler(manager))
	e.POST("/stop", stopHandler(manager))
}
