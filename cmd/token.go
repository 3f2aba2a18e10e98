package cmd

import (
	"fmt"

	"github.com/frahmantamala/loan-desk/internal/identity"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token [user-id]",
	Short: "Issue a bearer token for a user",
	Long:  `Sign an access token for the given user id with the configured secret. Intended for local development.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustLoadConfig()
		token, err := identity.NewTokenIssuerFromConfig(cfg.Security).Issue(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}
