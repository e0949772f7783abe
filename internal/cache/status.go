package cache

import (
	"context"
	"log/slog"

	"github.com/rendis/flowgpt/internal/engine"
	"github.com/rendis/flowgpt/internal/metrics"
)

// StatusCache is the storage side of the read-through lookup.
type StatusCache interface {
	Get(ctx context.Context, executionID int64) (*engine.Status, bool, error)
	Put(ctx context.Context, st *engine.Status) error
	Invalidate(ctx context.Context, executionID int64) error
}

var _ StatusCache = (*RedisStatusCache)(nil)

// Statuses serves execution statuses, consulting the cache first when one
// is configured. Cache failures degrade to a store read and are only logged.
type Statuses struct {
	store  engine.Store
	cache  StatusCache
	logger *slog.Logger
}

// NewStatuses builds a reader. c may be nil to disable caching.
func NewStatuses(s engine.Store, c StatusCache, logger *slog.Logger) *Statuses {
	if logger == nil {
		logger = slog.Default()
	}
	return &Statuses{store: s, cache: c, logger: logger}
}

func (r *Statuses) Get(ctx context.Context, executionID int64) (*engine.Status, error) {
	if r.cache == nil {
		return engine.BuildStatus(ctx, r.store, executionID)
	}

	st, ok, err := r.cache.Get(ctx, executionID)
	if err != nil {
		r.logger.WarnContext(ctx, "status cache read failed", "execution_id", executionID, "error", err)
	}
	metrics.RecordCacheLookup(ok)
	if ok {
		return st, nil
	}

	st, err = engine.BuildStatus(ctx, r.store, executionID)
	if err != nil {
		return nil, err
	}
	if err := r.cache.Put(ctx, st); err != nil {
		r.logger.WarnContext(ctx, "status cache write failed", "execution_id", executionID, "error", err)
	}
	return st, nil
}

// Forget drops executionIDs from the cache.
func (r *Statuses) Forget(ctx context.Context, executionIDs ...int64) {
	if r.cache == nil {
		return
	}
	for _, id := range executionIDs {
		if err := r.cache.Invalidate(ctx, id); err != nil {
			r.logger.WarnContext(ctx, "status cache invalidate failed", "execution_id", id, "error", err)
		}
	}
}
