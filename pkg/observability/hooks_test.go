package observability

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	g := NoopGraphHooks{}
	g.OnFlatten(ctx, "object", 3, 2, time.Millisecond, nil)
	g.OnUnflatten(ctx, "object", 3, 2, 1, time.Millisecond, errors.New("boom"))
	g.OnContextEnter(ctx, "split", "tag", "idle")
	g.OnContextExit(ctx, "split", "tag", "idle", nil)

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "graphdef")
	c.OnCacheMiss(ctx, "graphdef")
	c.OnCacheSet(ctx, "graphdef", 1024)
	c.OnCacheError(ctx, "graphdef", errors.New("down"))
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()

	if _, ok := Graph().(NoopGraphHooks); !ok {
		t.Error("Graph() should return NoopGraphHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}

	customGraph := &testGraphHooks{}
	SetGraphHooks(customGraph)
	if Graph() != customGraph {
		t.Error("SetGraphHooks should set custom hooks")
	}

	customCache := &testCacheHooks{}
	SetCacheHooks(customCache)
	if Cache() != customCache {
		t.Error("SetCacheHooks should set custom hooks")
	}

	Graph().OnFlatten(context.Background(), "object", 1, 0, 0, nil)
	if customGraph.flattens != 1 {
		t.Errorf("custom hook not called: %d", customGraph.flattens)
	}

	Reset()
	if _, ok := Graph().(NoopGraphHooks); !ok {
		t.Error("Reset() should restore NoopGraphHooks")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Reset() should restore NoopCacheHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()
	defer Reset()

	custom := &testGraphHooks{}
	SetGraphHooks(custom)
	SetGraphHooks(nil)

	if Graph() != custom {
		t.Error("SetGraphHooks(nil) should be ignored")
	}
}

// Test implementations
type testGraphHooks struct {
	NoopGraphHooks
	flattens int
}

func (h *testGraphHooks) OnFlatten(context.Context, string, int, int, time.Duration, error) {
	h.flattens++
}

type testCacheHooks struct{ NoopCacheHooks }
