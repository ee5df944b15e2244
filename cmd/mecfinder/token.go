package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ay9334524-ux/mecfinder-backend/internal/auth"
)

func newTokenCmd(opts *rootOptions) *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a signed API token",
		Long: `token signs a bearer token with api.jwt_secret. Roles are worker,
customer, service and admin; the subject is the worker or customer id.`,
		Example: `  mecfinder token --sub mech-42 --role worker
  mecfinder token --sub ops --role admin --ttl 1h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			signer, err := auth.NewSigner(cfg.API.JWTSecret, cfg.API.JWTIssuer)
			if err != nil {
				return err
			}
			tok, err := signer.Sign(subject, auth.Role(role), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "sub", "", "token subject (worker or customer id)")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleService), "token role")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("sub")
	return cmd
}
