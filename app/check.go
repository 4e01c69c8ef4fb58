package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adopsbot/adopsbot/internal/permission"
)

func init() { //nolint: gochecknoinits
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:     "check <identity> <capability>",
	Short:   "Run one sync cycle and report whether identity holds capability",
	Args:    cobra.ExactArgs(2), //nolint: mnd
	PreRunE: loadConfig,
	RunE: func(cmd *cobra.Command, args []string) error {
		identity, err := permission.ParseIdentity(args[0])
		if err != nil {
			return err //nolint:wrapcheck
		}

		capability, err := permission.ParseCapability(args[1])
		if err != nil {
			return err //nolint:wrapcheck
		}

		store, err := syncOnce(cmd)
		if err != nil {
			return err
		}

		rec := store.Get(identity)
		allowed := permission.NewChecker(store).Check(identity, capability)

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "identity=%d login=%q capability=%s allowed=%t\n",
			identity, rec.Login, capability, allowed)

		return nil
	},
}
