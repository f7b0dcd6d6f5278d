package cli

import (
	"fmt"
	"time"

	"classroom-assessment-service/internal/config"
	"classroom-assessment-service/internal/domain"
	transport "classroom-assessment-service/internal/transport/http"
	"github.com/spf13/cobra"
)

// NewTokenCmd mints a development bearer token signed with auth.secret.
func NewTokenCmd(configPath *string) *cobra.Command {
	var (
		userID string
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			r := domain.Role(role)
			if r != domain.RoleTeacher && r != domain.RoleStudent {
				return fmt.Errorf("role must be %q or %q", domain.RoleTeacher, domain.RoleStudent)
			}
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			tok, err := transport.NewAuthenticator(cfg.Auth.Secret).Issue(userID, r, time.Now(), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id placed in the sub claim")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleStudent), "teacher or student")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
