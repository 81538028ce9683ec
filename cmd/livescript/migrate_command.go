package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/livescript/livescript/internal/config"
	"github.com/livescript/livescript/internal/database"
	"github.com/spf13/cobra"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Store != config.StorePostgres {
				return errors.New("migrate needs the postgres store")
			}

			connectCtx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			db, err := database.Connect(connectCtx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("database connection failed: %w", err)
			}
			defer db.Close()

			if err := db.Migrate(cfg.DatabaseURL); err != nil {
				return fmt.Errorf("database migration failed: %w", err)
			}
			slog.Info("migrate: database migrations applied")
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
