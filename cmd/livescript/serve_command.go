package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/livescript/livescript/internal/config"
	"github.com/livescript/livescript/internal/database"
	"github.com/livescript/livescript/internal/docstore"
	"github.com/livescript/livescript/internal/importer"
	"github.com/livescript/livescript/internal/resolver"
	"github.com/livescript/livescript/internal/server"
	"github.com/spf13/cobra"
)

const demoID = "demo"

func newServeCommand(ctx *commandContext) *cobra.Command {
	var seedPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return errors.New("JWT_SECRET is required")
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(runCtx, cfg, seedPath)
		},
	}
	cmd.Flags().StringVar(&seedPath, "seed", "", "CSV imported into a \"demo\" conference at startup (memory store only)")
	return cmd
}

func runServer(ctx context.Context, cfg *config.Config, seedPath string) error {
	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	be, err := openBackend(startCtx, cfg)
	if err != nil {
		return err
	}
	defer be.Close()

	var pinger server.Pinger
	if be.db != nil {
		if err := be.db.Migrate(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("database migration failed: %w", err)
		}
		slog.Info("serve: database migrations applied")
		pinger = be.db

		listener := docstore.NewListener(be.pg, docstore.PgxDialer(database.DialListener(cfg.DatabaseURL)))
		go listener.Run(ctx)
	}

	st, err := openStorage(startCtx, cfg)
	if err != nil {
		return err
	}
	var blobs resolver.BlobResolver
	var uploader importer.Uploader
	if st != nil {
		blobs = st
		uploader = st
		slog.Info("serve: voice clips served from blob storage", "bucket", cfg.S3.Bucket)
	} else {
		slog.Warn("serve: no blob storage configured, voice clips are disabled")
	}

	if seedPath != "" {
		if be.db != nil {
			return errors.New("--seed is only supported with the memory store")
		}
		if err := seedDemo(startCtx, be.store, uploader, seedPath); err != nil {
			return err
		}
	}

	srv := server.New(server.Config{
		Store:                be.store,
		Blobs:                blobs,
		Pinger:               pinger,
		JWTSecret:            cfg.JWTSecret,
		OperatorPasswordHash: cfg.OperatorPasswordHash,
		BaseURL:              cfg.BaseURL,
		StorageEndpoint:      cfg.StorageEndpoint(),
		PlaybackRate:         cfg.PlaybackRate,
	})
	defer srv.Shutdown()

	if cfg.OperatorPasswordHash == "" {
		slog.Warn("serve: OPERATOR_PASSWORD_HASH not set, operators need a token from the token command")
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("serve: livescript listening", "addr", httpServer.Addr, "base_url", cfg.BaseURL, "store", cfg.Store)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	slog.Info("serve: shutting down")

	srv.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	slog.Info("serve: shutdown complete")
	return nil
}

// seedDemo loads a CSV into the "demo" conference so the memory store has
// something to show.
func seedDemo(ctx context.Context, store docstore.Store, uploader importer.Uploader, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open seed: %w", err)
	}
	defer f.Close()

	rows, err := importer.ParseCSV(f)
	if err != nil {
		return fmt.Errorf("parse seed %s: %w", path, err)
	}
	if err := store.PutGroup(ctx, docstore.Group{ID: demoID, Name: "Demo", PresentationSyncID: demoID}); err != nil {
		return err
	}
	res, err := importer.New(store, uploader).Import(ctx, rows, importer.Options{
		PresentationID: demoID,
		Title:          filepath.Base(path),
		GroupID:        demoID,
		VoiceDir:       filepath.Dir(path),
	})
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	slog.Info("serve: demo conference seeded", "group_id", demoID, "lines", res.Imported)
	return nil
}
