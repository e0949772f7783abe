package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rendis/flowgpt/internal/api"
	"github.com/rendis/flowgpt/internal/cache"
	"github.com/rendis/flowgpt/internal/scheduler"
	"github.com/rendis/flowgpt/pkg/mcp"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(configFile func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := setup(ctx, configFile(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()
			slog.SetDefault(a.logger)

			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	cfg := a.cfg

	var statusCache cache.StatusCache
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedisStatusCache(cache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			return err
		}
		defer rc.Close()
		statusCache = rc
		a.logger.Info("status cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.TTL)
	}
	statuses := cache.NewStatuses(a.store, statusCache, a.logger)

	if cfg.Maintenance.Retention > 0 {
		sched, err := scheduler.NewScheduler(a.store, scheduler.Config{
			Retention: cfg.Maintenance.Retention,
			Schedule:  cfg.Maintenance.Schedule,
			Forget:    statuses.Forget,
		}, a.logger)
		if err != nil {
			return err
		}
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer sched.Stop()
	}

	var mcpHandler http.Handler
	if cfg.MCP.Enabled {
		mcpHandler = mcp.NewFlowServer(mcp.FlowServerDeps{
			Runner:    a.executor,
			Statuses:  statuses,
			Pipelines: a.catalog,
			Diagrams:  a.store,
			Logger:    a.logger,
		}).SSEHandler(cfg.BaseURL(), "/mcp")
	}

	srv, err := api.NewServer(api.Deps{
		Store:    a.store,
		Catalog:  a.catalog,
		Executor: a.executor,
		Statuses: statuses,
		Hub:      a.hub,
		MCP:      mcpHandler,
		Logger:   a.logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", cfg.Server.Addr, "store", a.store.Driver(), "mcp", cfg.MCP.Enabled)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		httpServer.Close()
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	a.logger.Info("http server stopped")
	return nil
}
