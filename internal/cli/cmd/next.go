package cmd

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/layerpaper/layerpaper/internal/ipc"
)

func NewNextCmd() *cobra.Command {
	var output string

	c := &cobra.Command{
		Use:   "next",
		Short: "Switch to the next wallpaper",
		Long:  `Advances rotation on one output, or on every output when none is given.`,
		Run: func(cmd *cobra.Command, args []string) {
			if _, err := ipc.SendSetWallpaper(output, "next"); err != nil {
				log.Fatalf("Failed to send 'next' command: %v", err)
			}
			log.Info("Next wallpaper command sent")
		},
	}
	c.Flags().StringVarP(&output, "output", "o", "", "Only advance the named output")
	return c
}
