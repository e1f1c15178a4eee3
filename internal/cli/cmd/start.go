package cmd

import (
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	godaemon "github.com/sevlyar/go-daemon"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/layerpaper/layerpaper/internal/cli/cmd/utils"
	"github.com/layerpaper/layerpaper/internal/daemon"
	"github.com/layerpaper/layerpaper/internal/ipc"
)

func NewStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the layerpaper daemon",
		Run: func(cmd *cobra.Command, args []string) {
			StartDaemon()
		},
	}
}

// StartDaemon runs the wallpaper daemon, forking to the background first
// when -b was given.
func StartDaemon() {
	if os.Getenv("BACKGROUND_PROCESS") == "1" {
		setupRotatingLogger()
	}

	if _, err := ipc.SendStatus(); err == nil {
		log.Infof("layerpaper is already running, exiting")
		os.Exit(0)
	}

	if viper.GetBool("background") && os.Getenv("BACKGROUND_PROCESS") != "1" {
		forkToBackground()
		return
	}

	cfgPath := viper.ConfigFileUsed()
	if cfgPath == "" {
		cfgPath = utils.InstallDefaultConfig()
	}
	log.Infof("starting with config %s (PID %d)", cfgPath, os.Getpid())

	d, err := daemon.New(cfgPath, viper.GetInt("framerate_limit"))
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}
	if err := d.Run(); err != nil {
		log.Fatalf("daemon exited: %v", err)
	}
	log.Info("layerpaper exited")
}

func forkToBackground() {
	ctx := &godaemon.Context{
		Env: append(os.Environ(), "BACKGROUND_PROCESS=1"),
	}

	child, err := ctx.Reborn()
	if err != nil {
		log.Fatalf("failed to fork to background: %v", err)
	}
	if child != nil {
		log.Infof("layerpaper running in background with PID %d", child.Pid)
		return
	}
	defer ctx.Release()

	StartDaemon()
}

func setupRotatingLogger() {
	home := os.Getenv("HOME")
	logDir := filepath.Join(home, ".local", "share", "layerpaper")
	logPath := filepath.Join(logDir, "layerpaper.log")

	writer, err := rotatelogs.New(
		logPath+".%Y%m%d%H%M",
		rotatelogs.WithLinkName(logPath),
		rotatelogs.WithMaxAge(7*24*time.Hour),
		rotatelogs.WithRotationSize(10*1024*1024),
		rotatelogs.WithRotationTime(24*time.Hour),
	)
	if err != nil {
		log.Fatalf("failed to configure log rotation: %v", err)
	}

	log.SetOutput(writer)
	if !viper.GetBool("debug") {
		log.SetLevel(log.InfoLevel)
	}
}
