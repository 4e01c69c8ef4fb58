package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adopsbot/adopsbot/internal/config"
)

func init() { //nolint: gochecknoinits
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Validate the configuration and print it with secrets masked",
	PreRunE: loadConfig,
	RunE: func(cmd *cobra.Command, _ []string) error {
		redacted := cfg.Redacted()

		out, err := config.DumpConfigJSON(&redacted)
		if err != nil {
			return err //nolint:wrapcheck
		}

		_, _ = fmt.Fprint(cmd.OutOrStdout(), out)

		return nil
	},
}
