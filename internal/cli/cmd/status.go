package cmd

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/layerpaper/layerpaper/internal/cli/cmd/utils"
	"github.com/layerpaper/layerpaper/internal/ipc"
)

func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get layerpaper status",
		Long:  `Returns the daemon version, PID and the wallpaper shown on every output.`,
		Run: func(cmd *cobra.Command, args []string) {
			response, err := ipc.SendStatus()
			if err != nil {
				log.Fatalf("Failed to get status: %v", err)
			}
			utils.PrintJSONColored(response.Data)
		},
	}
}
