// Package otelhooks implements the observability hooks with OpenTelemetry
// metrics and spans.
//
//	h, err := otelhooks.New(nil, nil) // global providers
//	if err != nil { ... }
//	observability.SetGraphHooks(h)
//	observability.SetCacheHooks(h)
package otelhooks

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/matzehuels/graphstate/pkg/observability"
)

const scope = "github.com/matzehuels/graphstate"

// Hooks records graph and cache events as OpenTelemetry instruments.
// Flatten and unflatten calls additionally produce one span each.
type Hooks struct {
	tracer trace.Tracer

	flattenLatency   metric.Float64Histogram
	unflattenLatency metric.Float64Histogram
	opsTotal         metric.Int64Counter
	leaves           metric.Int64Histogram
	reused           metric.Int64Counter
	contexts         metric.Int64Counter
	cacheOps         metric.Int64Counter
	cacheBytes       metric.Int64Counter
}

// New creates the instruments. Nil providers fall back to the global ones.
func New(mp metric.MeterProvider, tp trace.TracerProvider) (*Hooks, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	meter := mp.Meter(scope)
	h := &Hooks{tracer: tp.Tracer(scope)}

	var err error
	if h.flattenLatency, err = meter.Float64Histogram(
		"graphstate_flatten_duration_seconds",
		metric.WithDescription("Duration of flatten calls"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if h.unflattenLatency, err = meter.Float64Histogram(
		"graphstate_unflatten_duration_seconds",
		metric.WithDescription("Duration of unflatten calls"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if h.opsTotal, err = meter.Int64Counter(
		"graphstate_operations_total",
		metric.WithDescription("Flatten and unflatten calls by outcome"),
	); err != nil {
		return nil, err
	}
	if h.leaves, err = meter.Int64Histogram(
		"graphstate_state_leaves",
		metric.WithDescription("State entries per flatten or unflatten call"),
	); err != nil {
		return nil, err
	}
	if h.reused, err = meter.Int64Counter(
		"graphstate_reused_objects_total",
		metric.WithDescription("Live outer objects updated in place by unflatten"),
	); err != nil {
		return nil, err
	}
	if h.contexts, err = meter.Int64Counter(
		"graphstate_context_transitions_total",
		metric.WithDescription("Split, merge and update context enters and exits"),
	); err != nil {
		return nil, err
	}
	if h.cacheOps, err = meter.Int64Counter(
		"graphstate_cache_operations_total",
		metric.WithDescription("Graph definition cache operations by result"),
	); err != nil {
		return nil, err
	}
	if h.cacheBytes, err = meter.Int64Counter(
		"graphstate_cache_written_bytes_total",
		metric.WithDescription("Bytes written to the graph definition cache"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	return h, nil
}

// OnFlatten implements observability.GraphHooks.
func (h *Hooks) OnFlatten(ctx context.Context, rootType string, nodes, leaves int, d time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("op", "flatten"),
		attribute.String("root_type", rootType),
		attribute.Bool("success", err == nil),
	}
	h.flattenLatency.Record(ctx, d.Seconds(), metric.WithAttributes(attrs...))
	h.opsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	if err == nil {
		h.leaves.Record(ctx, int64(leaves), metric.WithAttributes(attrs[0]))
	}
	h.span(ctx, "graph.Flatten", d, err,
		attribute.String("graph.root_type", rootType),
		attribute.Int("graph.nodes", nodes),
		attribute.Int("graph.leaves", leaves),
	)
}

// OnUnflatten implements observability.GraphHooks.
func (h *Hooks) OnUnflatten(ctx context.Context, rootType string, nodes, leaves, reused int, d time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("op", "unflatten"),
		attribute.String("root_type", rootType),
		attribute.Bool("success", err == nil),
	}
	h.unflattenLatency.Record(ctx, d.Seconds(), metric.WithAttributes(attrs...))
	h.opsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	if err == nil {
		h.leaves.Record(ctx, int64(leaves), metric.WithAttributes(attrs[0]))
		h.reused.Add(ctx, int64(reused))
	}
	h.span(ctx, "graph.Unflatten", d, err,
		attribute.String("graph.root_type", rootType),
		attribute.Int("graph.nodes", nodes),
		attribute.Int("graph.leaves", leaves),
		attribute.Int("graph.reused", reused),
	)
}

// OnContextEnter implements observability.GraphHooks.
func (h *Hooks) OnContextEnter(ctx context.Context, kind, tag, stage string) {
	h.contexts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("event", "enter"),
		attribute.String("stage", stage),
	))
	trace.SpanFromContext(ctx).AddEvent("context.enter", trace.WithAttributes(
		attribute.String("context.kind", kind),
		attribute.String("context.tag", tag),
		attribute.String("context.stage", stage),
	))
}

// OnContextExit implements observability.GraphHooks.
func (h *Hooks) OnContextExit(ctx context.Context, kind, tag, stage string, err error) {
	h.contexts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("event", "exit"),
		attribute.String("stage", stage),
		attribute.Bool("success", err == nil),
	))
	trace.SpanFromContext(ctx).AddEvent("context.exit", trace.WithAttributes(
		attribute.String("context.kind", kind),
		attribute.String("context.tag", tag),
		attribute.String("context.stage", stage),
	))
}

// OnCacheHit implements observability.CacheHooks.
func (h *Hooks) OnCacheHit(ctx context.Context, keyType string) {
	h.cacheOps.Add(ctx, 1, cacheAttrs(keyType, "hit"))
}

// OnCacheMiss implements observability.CacheHooks.
func (h *Hooks) OnCacheMiss(ctx context.Context, keyType string) {
	h.cacheOps.Add(ctx, 1, cacheAttrs(keyType, "miss"))
}

// OnCacheSet implements observability.CacheHooks.
func (h *Hooks) OnCacheSet(ctx context.Context, keyType string, size int) {
	h.cacheOps.Add(ctx, 1, cacheAttrs(keyType, "set"))
	h.cacheBytes.Add(ctx, int64(size), metric.WithAttributes(attribute.String("key_type", keyType)))
}

// OnCacheError implements observability.CacheHooks.
func (h *Hooks) OnCacheError(ctx context.Context, keyType string, err error) {
	h.cacheOps.Add(ctx, 1, cacheAttrs(keyType, "error"))
}

func cacheAttrs(keyType, result string) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("key_type", keyType),
		attribute.String("result", result),
	)
}

// span records a finished operation of duration d ending now.
func (h *Hooks) span(ctx context.Context, name string, d time.Duration, err error, attrs ...attribute.KeyValue) {
	end := time.Now()
	_, span := h.tracer.Start(ctx, name,
		trace.WithTimestamp(end.Add(-d)),
		trace.WithAttributes(attrs...),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End(trace.WithTimestamp(end))
}

var (
	_ observability.GraphHooks = (*Hooks)(nil)
	_ observability.CacheHooks = (*Hooks)(nil)
)
