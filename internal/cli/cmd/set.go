package cmd

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/layerpaper/layerpaper/internal/cli/cmd/utils"
	"github.com/layerpaper/layerpaper/internal/ipc"
)

func NewSetCmd() *cobra.Command {
	var output string

	c := &cobra.Command{
		Use:   "set [wallpaper.png]",
		Short: "Set a specific wallpaper",
		Long:  `Shows the given image on one output, or on every output when none is given.`,
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			path := utils.CanonicalPath(args[0])
			if _, err := ipc.SendSetWallpaper(output, path); err != nil {
				log.Fatalf("Failed to set wallpaper: %v", err)
			}
			log.Infof("Wallpaper set to %s", path)
		},
	}
	c.Flags().StringVarP(&output, "output", "o", "", "Only change the named output")
	return c
}
