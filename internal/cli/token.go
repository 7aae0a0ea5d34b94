package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Skotchmaster/product_catalog/pkg/tokens"
)

// tokenCmd signs an access token with the server's AUTH_JWT_SECRET.
func tokenCmd() *cobra.Command {
	var (
		secret  string
		subject string
		role    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign an access token for write operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				secret = os.Getenv("AUTH_JWT_SECRET")
			}
			if secret == "" {
				return fmt.Errorf("--secret or AUTH_JWT_SECRET is required")
			}
			tok, err := tokens.NewAccessToken([]byte(secret), subject, role, ttl)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "HS256 signing secret (default $AUTH_JWT_SECRET)")
	cmd.Flags().StringVar(&subject, "subject", "catalogctl", "token subject")
	cmd.Flags().StringVar(&role, "role", tokens.RoleAdmin, "token role")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
