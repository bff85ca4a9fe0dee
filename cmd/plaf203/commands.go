package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/plaf203-core/internal/auth"
	"github.com/nerrad567/plaf203-core/internal/infrastructure/config"
	"github.com/nerrad567/plaf203-core/internal/infrastructure/database"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				db, err := openForMigrate(*configPath)
				if err != nil {
					return err
				}
				defer db.Close()

				if err := db.Migrate(cmd.Context()); err != nil {
					return fmt.Errorf("running migrations: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				db, err := openForMigrate(*configPath)
				if err != nil {
					return err
				}
				defer db.Close()

				if err := db.MigrateDown(cmd.Context()); err != nil {
					return fmt.Errorf("rolling back migration: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migration rolled back")
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List applied and pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				db, err := openForMigrate(*configPath)
				if err != nil {
					return err
				}
				defer db.Close()

				applied, pending, err := db.MigrationStatus(cmd.Context())
				if err != nil {
					return fmt.Errorf("reading migration status: %w", err)
				}
				out := cmd.OutOrStdout()
				for _, m := range applied {
					fmt.Fprintf(out, "applied  %s  %s\n", m.Version, m.AppliedAt.Format(time.RFC3339))
				}
				for _, m := range pending {
					fmt.Fprintf(out, "pending  %s  %s\n", m.Version, m.Name)
				}
				return nil
			},
		},
	)
	return cmd
}

// openForMigrate opens the configured database without migrating it.
func openForMigrate(configPath string) (*database.DB, error) {
	cfg, err := config.Load(resolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

func newTokenCmd(configPath *string) *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token",
		Long: `Issue a bearer token signed with api.auth.jwt_secret.

Viewers can read status, settings, plans and the feed log. Admins can also
feed, change settings and plans, and run device actions.`,
		Example: `  plaf203 token --subject dashboard --role viewer
  plaf203 token --subject alice --role admin --ttl 720h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(resolveConfigPath(*configPath))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			tok, err := issueToken(cfg, subject, auth.Role(role), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Token subject, shown in audit logs (required)")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleViewer), "Role: admin or viewer")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default api.auth.token_ttl)")
	cmd.MarkFlagRequired("subject") //nolint:errcheck // flag is defined above
	return cmd
}

// issueToken signs a token with the configured secret. A zero ttl uses
// api.auth.token_ttl.
func issueToken(cfg *config.Config, subject string, role auth.Role, ttl time.Duration) (string, error) {
	if cfg.API.Auth.JWTSecret == "" {
		return "", errors.New("api.auth.jwt_secret is not set")
	}
	if ttl <= 0 {
		ttl = time.Duration(cfg.API.Auth.TokenTTL) * time.Minute
	}
	tok, err := auth.GenerateToken(subject, role, cfg.API.Auth.JWTSecret, ttl)
	if err != nil {
		return "", fmt.Errorf("issuing token: %w", err)
	}
	return tok, nil
}
