package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"proposal-review/internal/auth"
	"proposal-review/internal/config"
	"proposal-review/internal/models"
)

func reconcileCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute every cached reputation balance from completed work",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.ledger.ReconcileAll(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "checked=%d corrected=%d drift=%d\n", report.Checked, report.Corrected, report.Drift)
			return err
		},
	}
}

func reclaimCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "reclaim",
		Short: "Expire idle pending assignments and return their slots",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			expired, err := a.assignments.ReclaimExpired(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "reclaimed=%d\n", len(expired))
			return err
		},
	}
}

// tokenCommand mints a bearer token for local testing and operations
func tokenCommand(cfg *config.Config) *cobra.Command {
	var (
		email string
		role  string
		ttl   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <reviewer-id>",
		Short: "Issue a bearer token for a reviewer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid reviewer id: %w", err)
			}
			r := models.Role(role)
			if !r.Valid() {
				return fmt.Errorf("invalid role %q", role)
			}

			jwtCfg := cfg.JWT
			if ttl > 0 {
				jwtCfg.Expiration = ttl
			}
			token, err := auth.NewService(&jwtCfg).GenerateToken(id, email, r)
			if err != nil {
				return err
			}
			slog.Debug("Issued token", "reviewer_id", id, "role", r, "expires_in", jwtCfg.Expiration)
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email claim")
	cmd.Flags().StringVar(&role, "role", string(models.RoleReviewer), "Role claim (reviewer or admin)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime, defaults to JWT_EXPIRATION")
	return cmd
}

// keygenCommand prints a fresh ES256 signing key for JWT_SECRET
func keygenCommand() *cobra.Command {
	var outFile string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an ECDSA P-256 key for signing tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := auth.GenerateSigningKey()
			if err != nil {
				return err
			}
			if outFile != "" {
				if err := os.WriteFile(outFile, key, 0o600); err != nil {
					return fmt.Errorf("failed to write private key file: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Private key saved to %s\n", outFile)
				return nil
			}
			// single line with escaped newlines for .env files
			fmt.Fprintf(cmd.OutOrStdout(), "JWT_SECRET=%s\n", strings.ReplaceAll(string(key), "\n", `\n`))
			return nil
		},
	}
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "Write the PEM key to this file instead of stdout")
	return cmd
}
