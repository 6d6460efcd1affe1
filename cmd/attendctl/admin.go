package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var (
	adminID       string
	adminName     string
	adminEmail    string
	adminPassword string
)

var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Create an admin account or reset its password",
	Long:  `Creates the admin with the given id, or replaces its name, email and password when it already exists.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateAdminFlags(); err != nil {
			return err
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}

		const q = `
			INSERT INTO admins (id, name, email, password_hash)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				email = EXCLUDED.email,
				password_hash = EXCLUDED.password_hash,
				updated_at = now()`

		return withPool(cmd.Context(), func(pool *pgxpool.Pool) error {
			if _, err := pool.Exec(cmd.Context(), q, adminID, adminName, strings.ToLower(adminEmail), string(hash)); err != nil {
				return fmt.Errorf("save admin: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Admin %q saved\n", adminID)
			return nil
		})
	},
}

func validateAdminFlags() error {
	adminID = strings.TrimSpace(adminID)
	adminEmail = strings.TrimSpace(adminEmail)
	switch {
	case adminID == "":
		return errors.New("--id is required")
	case !strings.Contains(adminEmail, "@"):
		return errors.New("--email must be an email address")
	case len(adminPassword) < 8:
		return errors.New("--password must be at least 8 characters")
	}
	if adminName == "" {
		adminName = adminID
	}
	return nil
}

func init() {
	seedAdminCmd.Flags().StringVar(&adminID, "id", "admin", "Admin login id")
	seedAdminCmd.Flags().StringVar(&adminName, "name", "", "Display name (defaults to the id)")
	seedAdminCmd.Flags().StringVar(&adminEmail, "email", "", "Contact email")
	seedAdminCmd.Flags().StringVarP(&adminPassword, "password", "p", "", "Password, at least 8 characters")
	_ = seedAdminCmd.MarkFlagRequired("email")
	_ = seedAdminCmd.MarkFlagRequired("password")
}
