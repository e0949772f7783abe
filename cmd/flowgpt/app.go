package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/rendis/flowgpt/internal/catalog"
	"github.com/rendis/flowgpt/internal/config"
	"github.com/rendis/flowgpt/internal/engine"
	"github.com/rendis/flowgpt/internal/logging"
	"github.com/rendis/flowgpt/internal/store"
	"github.com/rendis/flowgpt/internal/streaming"
	"github.com/rendis/flowgpt/internal/validation"
)

// app holds the components every command shares.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.SQLStore
	catalog  *catalog.Catalog
	hub      *streaming.MemoryHub
	executor *engine.Executor
}

// setup loads configuration, opens and migrates the store and wires the
// catalog and executor. Callers must Close the returned app.
func setup(ctx context.Context, configFile string, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logOut, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	s, err := store.Open(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	validator, err := validation.NewJSONSchemaValidator()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("init validator: %w", err)
	}

	hub := streaming.NewMemoryHub()
	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   s,
		catalog: catalog.New(s, validator, logger),
		hub:     hub,
		executor: engine.NewExecutor(s, engine.ExecutorConfig{
			Timeout: cfg.Execution.Timeout,
			Logger:  logger,
			Hub:     hub,
		}),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
