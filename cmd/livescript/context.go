package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/livescript/livescript/internal/config"
	"github.com/livescript/livescript/internal/database"
	"github.com/livescript/livescript/internal/docstore"
	"github.com/livescript/livescript/internal/storage"
)

type commandContext struct {
	configFlag *string
	storeFlag  *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, storeFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		storeFlag:  storeFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path, store string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		if c.storeFlag != nil {
			store = strings.TrimSpace(*c.storeFlag)
		}
		c.config, c.configErr = config.Load(path, config.WithStore(store))
	})
	return c.config, c.configErr
}

func setupLogger(cfg *config.Config, w io.Writer) error {
	level, err := cfg.Level()
	if err != nil {
		return err
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(w, opts)
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// backend is the opened document store plus the Postgres handles behind it,
// which are nil for the memory store.
type backend struct {
	store docstore.Store
	db    *database.DB
	pg    *docstore.PG
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	if cfg.Store == config.StoreMemory {
		slog.Warn("livescript: using the in-memory store, nothing is persisted")
		return &backend{store: docstore.NewMemory()}, nil
	}
	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	pg := docstore.NewPG(db.Pool)
	return &backend{store: pg, db: db, pg: pg}, nil
}

func (b *backend) Close() {
	if b.db != nil {
		b.db.Close()
	}
}

// openStorage returns nil when no S3 credentials are configured.
func openStorage(ctx context.Context, cfg *config.Config) (*storage.Storage, error) {
	if !cfg.StorageEnabled() {
		return nil, nil
	}
	st, err := storage.New(ctx, cfg.StorageConfig())
	if err != nil {
		return nil, fmt.Errorf("storage initialization failed: %w", err)
	}
	return st, nil
}
