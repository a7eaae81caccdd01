package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/lost-found/internal/config"
	"github.com/kozaktomas/lost-found/internal/database/postgres"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().Bool("status", false, "Only list applied migrations")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pool.Close()

	ctx := context.Background()
	if !mustGetBool(cmd, "status") {
		applied, err := pool.Migrate(ctx)
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		if len(applied) == 0 {
			fmt.Println("No pending migrations")
		}
		for _, file := range applied {
			fmt.Printf("Applied %s\n", file)
		}
	}

	versions, err := pool.MigrationsApplied(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%d migrations applied:\n", len(versions))
	for _, v := range versions {
		fmt.Printf("  %s\n", v)
	}
	return nil
}
