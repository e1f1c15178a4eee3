/*
Copyright © 2026 The layerpaper authors
*/
package cli

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/layerpaper/layerpaper"
	"github.com/layerpaper/layerpaper/internal/cli/cmd"
	"github.com/layerpaper/layerpaper/internal/cli/cmd/utils"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "layerpaper",
	Short: "A hardware accelerated Wayland wallpaper daemon",
	Long: `Layerpaper draws wallpapers on every output of a wlroots based
Wayland compositor, with GPU crossfades, per-output configuration and
automatic rotation. Run without a subcommand it starts the daemon in the
foreground.`,
	Run: func(c *cobra.Command, args []string) {
		if v, err := c.Flags().GetBool("show-config"); err == nil && v {
			log.Infof("Using config file: %v", viper.ConfigFileUsed())
			log.Infof("All settings:")
			utils.PrintJSONColored(viper.AllSettings())
			return
		}

		if v, err := c.Flags().GetBool("installconfig"); err == nil && v {
			utils.InstallDefaultConfig()
			return
		}

		babyBlue := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
		yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
		green := lipgloss.NewStyle().Foreground(lipgloss.Color("76"))
		if v, err := c.Flags().GetBool("version"); err == nil && v {
			log.Infof("%v version %v © 2026 %v",
				babyBlue.Render("layerpaper"),
				green.Render(strings.Trim(layerpaper.Version, "\n\r ")),
				yellow.Render("The layerpaper authors"))
			return
		}

		cmd.StartDaemon()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var cfgFile string

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/layerpaper/layerpaper.toml)")
	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	rootCmd.PersistentFlags().BoolP("installconfig", "i", false, "Install a default config file")
	rootCmd.PersistentFlags().Bool("show-config", false, "Dump resolved config")
	rootCmd.PersistentFlags().BoolP("background", "b", false, "Run as a daemon")
	viper.BindPFlag("background", rootCmd.PersistentFlags().Lookup("background"))
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	rootCmd.PersistentFlags().BoolP("version", "v", false, "Print version")
	rootCmd.PersistentFlags().BoolP("help", "h", false, "Print usage")

	rootCmd.AddCommand(cmd.NewStartCmd())
	rootCmd.AddCommand(cmd.NewStopCmd())
	rootCmd.AddCommand(cmd.NewStatusCmd())
	rootCmd.AddCommand(cmd.NewNextCmd())
	rootCmd.AddCommand(cmd.NewGetCmd())
	rootCmd.AddCommand(cmd.NewSetCmd())
	rootCmd.AddCommand(cmd.NewPauseCmd())
	rootCmd.AddCommand(cmd.NewResumeCmd())
	rootCmd.AddCommand(cmd.NewReloadCmd())
	rootCmd.AddCommand(cmd.NewGenManCmd(rootCmd))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("layerpaper")
		viper.SetConfigType("toml")
		viper.AddConfigPath("$HOME/.config/layerpaper")
		viper.AddConfigPath("/etc/xdg/layerpaper")
	}

	viper.SetDefault("framerate_limit", 60)
	viper.SetDefault("debug", false)

	viper.AutomaticEnv() // read environment variables that match

	// The per-output sections are parsed by the daemon's own config layer;
	// viper only resolves the file location and the daemon-wide knobs.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			cobra.CheckErr(err)
		}
	}

	if viper.GetBool("debug") {
		log.SetLevel(log.DebugLevel)
	}
}
