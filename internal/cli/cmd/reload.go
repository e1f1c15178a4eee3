package cmd

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/layerpaper/layerpaper/internal/ipc"
)

func NewReloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Reload the daemon's config file",
		Long:  `Asks the daemon to re-read its config. A config that fails to parse is rejected and the previous one stays active.`,
		Run: func(cmd *cobra.Command, args []string) {
			if _, err := ipc.SendReload(); err != nil {
				log.Fatalf("Failed to reload config: %v", err)
			}
			log.Info("Config reloaded")
		},
	}
}
