package otelhooks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestHooks(t *testing.T) (*Hooks, *sdkmetric.ManualReader, *tracetest.SpanRecorder) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() {
		_ = mp.Shutdown(context.Background())
		_ = tp.Shutdown(context.Background())
	})

	h, err := New(mp, tp)
	require.NoError(t, err)
	return h, reader, sr
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sum(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	data, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "%s is %T", m.Name, m.Data)
	var total int64
	for _, dp := range data.DataPoints {
		total += dp.Value
	}
	return total
}

func TestGraphHooks(t *testing.T) {
	h, reader, sr := newTestHooks(t)
	ctx := context.Background()

	h.OnFlatten(ctx, "object", 4, 2, time.Millisecond, nil)
	h.OnUnflatten(ctx, "object", 4, 2, 3, time.Millisecond, nil)
	h.OnUnflatten(ctx, "object", 4, 2, 0, time.Millisecond, errors.New("mismatch"))
	h.OnContextEnter(ctx, "split", "t", "idle")
	h.OnContextExit(ctx, "split", "t", "idle", nil)

	metrics := collect(t, reader)
	assert.Equal(t, int64(3), sum(t, metrics["graphstate_operations_total"]))
	assert.Equal(t, int64(3), sum(t, metrics["graphstate_reused_objects_total"]))
	assert.Equal(t, int64(2), sum(t, metrics["graphstate_context_transitions_total"]))
	assert.Contains(t, metrics, "graphstate_flatten_duration_seconds")
	assert.Contains(t, metrics, "graphstate_unflatten_duration_seconds")

	spans := sr.Ended()
	require.Len(t, spans, 3)
	assert.Equal(t, "graph.Flatten", spans[0].Name())
	assert.Equal(t, "graph.Unflatten", spans[1].Name())
	assert.Equal(t, codes.Error, spans[2].Status().Code)
	assert.True(t, spans[0].EndTime().Sub(spans[0].StartTime()) >= time.Millisecond)
}

func TestCacheHooks(t *testing.T) {
	h, reader, _ := newTestHooks(t)
	ctx := context.Background()

	h.OnCacheMiss(ctx, "graphdef")
	h.OnCacheSet(ctx, "graphdef", 128)
	h.OnCacheHit(ctx, "graphdef")
	h.OnCacheError(ctx, "graphdef", errors.New("down"))

	metrics := collect(t, reader)
	assert.Equal(t, int64(4), sum(t, metrics["graphstate_cache_operations_total"]))
	assert.Equal(t, int64(128), sum(t, metrics["graphstate_cache_written_bytes_total"]))
}

func TestNewWithGlobalProviders(t *testing.T) {
	h, err := New(nil, nil)
	require.NoError(t, err)
	h.OnFlatten(context.Background(), "list", 1, 0, 0, nil)
}
