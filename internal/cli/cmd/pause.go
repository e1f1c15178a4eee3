package cmd

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/layerpaper/layerpaper/internal/ipc"
)

func NewPauseCmd() *cobra.Command {
	var output string

	c := &cobra.Command{
		Use:   "pause",
		Short: "Pause wallpaper rotation",
		Run: func(cmd *cobra.Command, args []string) {
			if _, err := ipc.SendPause(output); err != nil {
				log.Fatalf("Failed to send 'pause' command: %v", err)
			}
			log.Info("Rotation paused")
		},
	}
	c.Flags().StringVarP(&output, "output", "o", "", "Only pause the named output")
	return c
}

func NewResumeCmd() *cobra.Command {
	var output string

	c := &cobra.Command{
		Use:   "resume",
		Short: "Resume wallpaper rotation",
		Run: func(cmd *cobra.Command, args []string) {
			if _, err := ipc.SendResume(output); err != nil {
				log.Fatalf("Failed to send 'resume' command: %v", err)
			}
			log.Info("Rotation resumed")
		},
	}
	c.Flags().StringVarP(&output, "output", "o", "", "Only resume the named output")
	return c
}
