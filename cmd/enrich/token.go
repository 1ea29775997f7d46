package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/octobees/enrichment-pipeline/internal/auth"
	"github.com/octobees/enrichment-pipeline/internal/config"
)

var (
	tokenSubject string
	tokenEmail   string
	tokenRole    string
)

// tokenCmd signs a JWT with the API's secret and issuer.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an API token for local development",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		switch tokenRole {
		case auth.RoleAdmin, auth.RoleMember:
		default:
			return fmt.Errorf("unsupported role %q", tokenRole)
		}
		token, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL).GenerateToken(tokenSubject, tokenEmail, tokenRole)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
		return err
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "dev", "token subject (user id)")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "dev@example.com", "token email claim")
	tokenCmd.Flags().StringVar(&tokenRole, "role", auth.RoleMember, "token role (member or admin)")
}
