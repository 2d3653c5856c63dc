package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/codr1/themekit/internal/api/auth"
	"github.com/codr1/themekit/internal/api/authz"
)

func init() {
	var (
		userID int64
		role   string
		ttl    time.Duration
	)
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed bearer token for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.Auth.TokenTTL
			}
			authenticator := auth.NewAuthenticator(cfg.Secrets.AppSecretKey, ttl, false)
			return runToken(authenticator, userID, role, os.Stdout)
		},
	}
	tokenCmd.Flags().Int64VarP(&userID, "user-id", "u", 0, "User ID (required)")
	tokenCmd.Flags().StringVarP(&role, "role", "r", authz.RoleMember, "Role: member, admin or org:admin")
	tokenCmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (defaults to auth.token_ttl)")
	_ = tokenCmd.MarkFlagRequired("user-id")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(authenticator *auth.Authenticator, userID int64, role string, out io.Writer) error {
	if userID <= 0 {
		return fmt.Errorf("--user-id must be positive")
	}
	switch role {
	case authz.RoleMember, authz.RoleAdmin, authz.RoleOrgAdmin:
	default:
		return fmt.Errorf("unsupported role: %s", role)
	}
	token, expiresAt, err := authenticator.IssueToken(authz.AuthUser{ID: userID, Role: role})
	if err != nil {
		return err
	}
	fmt.Fprintln(out, token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.UTC().Format(time.RFC3339))
	return nil
}
