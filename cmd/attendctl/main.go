package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rrucricket/attendance/pkg/config"
	"github.com/rrucricket/attendance/pkg/database"
	"github.com/rrucricket/attendance/pkg/logger"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "attendctl",
	Short:         "Operator tools for the cricket attendance backend",
	Long:          `Applies the schema, manages admin accounts and grounds, and checks distances against a ground.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
		cfg = config.Load()
		logger.SetDefault(logger.New(os.Stderr, cfg.Log.Level, "text"))
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd, seedAdminCmd, groundsCmd, distanceCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// withPool opens the configured database for the duration of fn.
func withPool(ctx context.Context, fn func(*pgxpool.Pool) error) error {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(pool)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withPool(cmd.Context(), func(pool *pgxpool.Pool) error {
			applied, err := database.Migrate(cmd.Context(), pool)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
				return nil
			}
			for _, name := range applied {
				fmt.Fprintln(cmd.OutOrStdout(), "Applied", name)
			}
			return nil
		})
	},
}
