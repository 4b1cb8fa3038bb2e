package cli

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/graphstate/pkg/observability"
)

type hooks interface {
	observability.GraphHooks
	observability.CacheHooks
}

// logHooks logs engine events at debug level and counts cache results, so
// commands can report whether a definition came from the cache.
type logHooks struct {
	logger *log.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

func newLogHooks(l *log.Logger) *logHooks {
	return &logHooks{logger: l}
}

func (h *logHooks) OnFlatten(_ context.Context, rootType string, nodes, leaves int, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("flatten failed", "root", rootType, "err", err)
		return
	}
	h.logger.Debug("flatten", "root", rootType, "nodes", nodes, "leaves", leaves, "took", d)
}

func (h *logHooks) OnUnflatten(_ context.Context, rootType string, nodes, leaves, reused int, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("unflatten failed", "root", rootType, "err", err)
		return
	}
	h.logger.Debug("unflatten", "root", rootType, "nodes", nodes, "leaves", leaves, "reused", reused, "took", d)
}

func (h *logHooks) OnContextEnter(_ context.Context, kind, tag, stage string) {
	h.logger.Debug("enter context", "kind", kind, "tag", tag, "stage", stage)
}

func (h *logHooks) OnContextExit(_ context.Context, kind, tag, stage string, err error) {
	if err != nil {
		h.logger.Debug("exit context", "kind", kind, "tag", tag, "stage", stage, "err", err)
		return
	}
	h.logger.Debug("exit context", "kind", kind, "tag", tag, "stage", stage)
}

func (h *logHooks) OnCacheHit(_ context.Context, keyType string) {
	h.hits.Add(1)
	h.logger.Debug("cache hit", "key", keyType)
}

func (h *logHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.misses.Add(1)
	h.logger.Debug("cache miss", "key", keyType)
}

func (h *logHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.logger.Debug("cache set", "key", keyType, "bytes", size)
}

func (h *logHooks) OnCacheError(_ context.Context, keyType string, err error) {
	h.logger.Warn("cache unavailable, rebuilding", "key", keyType, "err", err)
}

// teeHooks forwards every event to each of its members in order.
type teeHooks []hooks

func (t teeHooks) OnFlatten(ctx context.Context, rootType string, nodes, leaves int, d time.Duration, err error) {
	for _, h := range t {
		h.OnFlatten(ctx, rootType, nodes, leaves, d, err)
	}
}

func (t teeHooks) OnUnflatten(ctx context.Context, rootType string, nodes, leaves, reused int, d time.Duration, err error) {
	for _, h := range t {
		h.OnUnflatten(ctx, rootType, nodes, leaves, reused, d, err)
	}
}

func (t teeHooks) OnContextEnter(ctx context.Context, kind, tag, stage string) {
	for _, h := range t {
		h.OnContextEnter(ctx, kind, tag, stage)
	}
}

func (t teeHooks) OnContextExit(ctx context.Context, kind, tag, stage string, err error) {
	for _, h := range t {
		h.OnContextExit(ctx, kind, tag, stage, err)
	}
}

func (t teeHooks) OnCacheHit(ctx context.Context, keyType string) {
	for _, h := range t {
		h.OnCacheHit(ctx, keyType)
	}
}

func (t teeHooks) OnCacheMiss(ctx context.Context, keyType string) {
	for _, h := range t {
		h.OnCacheMiss(ctx, keyType)
	}
}

func (t teeHooks) OnCacheSet(ctx context.Context, keyType string, size int) {
	for _, h := range t {
		h.OnCacheSet(ctx, keyType, size)
	}
}

func (t teeHooks) OnCacheError(ctx context.Context, keyType string, err error) {
	for _, h := range t {
		h.OnCacheError(ctx, keyType, err)
	}
}
