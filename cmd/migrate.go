package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bwise1/sosedi/internal/db"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations to DSN",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return applyMigrations(cmd.Context())
	},
}

func applyMigrations(ctx context.Context) error {
	if cfg.Dsn == "" {
		return errors.New("DSN is not set")
	}
	database, err := db.New(cfg.Dsn)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		return err
	}
	slog.Info("migrations applied")
	return nil
}
