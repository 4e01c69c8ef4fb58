// Package app implements the main application commands.
package app

import (
	"github.com/spf13/cobra"

	"github.com/adopsbot/adopsbot/internal/config"
)

var (
	configPath string // directory holding main.toml
	cfg        config.Config

	rootCmd = &cobra.Command{
		Use:   "adopsbot",
		Short: "adopsbot runs Active Directory operations for chat operators",
		Long: `adopsbot is the back end of a chat bot that lets operators unlock, disable and create
Active Directory accounts, manage VPN access and read LAPS passwords.
Who may run which command is synchronized from directory group membership.`,
		Args:          cobra.OnlyValidArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
)

func init() { //nolint: gochecknoinits
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./etc/", "directory holding main.toml")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute() //nolint:wrapcheck
}

// loadConfig reads the configuration into cfg.
func loadConfig(_ *cobra.Command, _ []string) error {
	var err error

	cfg, err = config.ReadConfig(configPath)

	return err //nolint:wrapcheck
}
