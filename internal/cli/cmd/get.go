package cmd

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/layerpaper/layerpaper/internal/cli/cmd/utils"
	"github.com/layerpaper/layerpaper/internal/ipc"
)

func NewGetCmd() *cobra.Command {
	var output string

	c := &cobra.Command{
		Use:   "get",
		Short: "Show the current wallpaper",
		Long:  `Prints the wallpaper shown on one output, or on every output when none is given.`,
		Run: func(cmd *cobra.Command, args []string) {
			response, err := ipc.SendGetWallpaper(output)
			if err != nil {
				log.Fatalf("Failed to get wallpaper: %v", err)
			}
			utils.PrintJSONColored(response.Data)
		},
	}
	c.Flags().StringVarP(&output, "output", "o", "", "Only query the named output")
	return c
}
