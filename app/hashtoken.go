package app

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adopsbot/adopsbot/internal/web/middleware/auth"
)

func init() { //nolint: gochecknoinits
	rootCmd.AddCommand(hashTokenCmd)
}

var hashTokenCmd = &cobra.Command{
	Use:   "hash-token [token]",
	Short: "Print the argon2id hash to configure as Webserver.APITokenHash",
	Long: `Print the argon2id hash to configure as Webserver.APITokenHash.
Without an argument the token is read from the first line of stdin.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var token string

		if len(args) == 1 {
			token = args[0]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("failed to read token: %w", err)
			}

			token = strings.TrimSpace(line)
		}

		if token == "" {
			return errors.New("token is empty")
		}

		hash, err := auth.HashToken(token)
		if err != nil {
			return err //nolint:wrapcheck
		}

		_, _ = fmt.Fprintln(cmd.OutOrStdout(), hash)

		return nil
	},
}
