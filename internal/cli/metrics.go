package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/matzehuels/graphstate/pkg/observability/otelhooks"
)

// metricsReader collects the OpenTelemetry instruments of one CLI run in
// memory and prints them when the command finishes.
type metricsReader struct {
	reader   *sdkmetric.ManualReader
	provider *sdkmetric.MeterProvider
}

func newMetricsReader() (*metricsReader, *otelhooks.Hooks, error) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	h, err := otelhooks.New(provider, nil)
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, nil, fmt.Errorf("create metrics: %w", err)
	}
	return &metricsReader{reader: reader, provider: provider}, h, nil
}

// collect returns one summary line per instrument, sorted by name.
func (m *metricsReader) collect(ctx context.Context) ([]string, error) {
	var rm metricdata.ResourceMetrics
	if err := m.reader.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("collect metrics: %w", err)
	}
	var lines []string
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			lines = append(lines, metric.Name+" "+summarize(metric.Data))
		}
	}
	slices.Sort(lines)
	return lines, nil
}

func summarize(data metricdata.Aggregation) string {
	switch d := data.(type) {
	case metricdata.Sum[int64]:
		var total int64
		for _, dp := range d.DataPoints {
			total += dp.Value
		}
		return fmt.Sprintf("%d", total)
	case metricdata.Histogram[int64]:
		var count uint64
		var sum int64
		for _, dp := range d.DataPoints {
			count += dp.Count
			sum += dp.Sum
		}
		return fmt.Sprintf("count=%d sum=%d", count, sum)
	case metricdata.Histogram[float64]:
		var count uint64
		var sum float64
		for _, dp := range d.DataPoints {
			count += dp.Count
			sum += dp.Sum
		}
		return fmt.Sprintf("count=%d sum=%.6f", count, sum)
	}
	return fmt.Sprintf("%T", data)
}

func (m *metricsReader) print(ctx context.Context) error {
	defer m.provider.Shutdown(context.Background())

	lines, err := m.collect(ctx)
	if err != nil {
		return err
	}
	printNewline()
	statusInfo.print("Metrics")
	for _, line := range lines {
		name, value, _ := strings.Cut(line, " ")
		printDetail("%-40s %s", name, value)
	}
	return nil
}
