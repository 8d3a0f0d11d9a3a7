package xcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMeterProvider 创建用于测试的 MeterProvider
func newTestMeterProvider() (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
	)
	return mp, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

// sumWith 返回带有指定属性的计数器数据点之和。
func sumWith(t *testing.T, data metricdata.Aggregation, kv ...attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum, got %T", data)

	var total int64
	for _, dp := range sum.DataPoints {
		match := true
		for _, want := range kv {
			got, found := dp.Attributes.Value(want.Key)
			if !found || got != want.Value {
				match = false
				break
			}
		}
		if match {
			total += dp.Value
		}
	}
	return total
}

func gaugeValue(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()
	g, ok := data.(metricdata.Gauge[int64])
	require.True(t, ok, "expected int64 gauge, got %T", data)
	require.Len(t, g.DataPoints, 1)
	return g.DataPoints[0].Value
}

func TestMetrics_Counters(t *testing.T) {
	mp, reader := newTestMeterProvider()
	defer func() { _ = mp.Shutdown(context.Background()) }()

	s, clock := newClockedStore(t, mbFor(2*77), 0, WithMeterProvider(mp))

	require.NoError(t, s.Set("a", "k1", tenBytes, NoExpiration))
	require.NoError(t, s.Set("a", "k2", tenBytes, time.Second))
	_, _ = s.Get("a", "k1")
	_, _ = s.Get("a", "nope")
	_, _ = s.Get("nope", "k1")

	require.NoError(t, s.Set("a", "k3", tenBytes, time.Second))
	clock.Advance(time.Second)
	_, _ = s.Get("a", "k3")
	assert.Equal(t, 1, s.Sweep())

	got := collect(t, reader)
	assert.Equal(t, int64(1), sumWith(t, got[metricRequests], attribute.String("result", "hit")))
	assert.Equal(t, int64(3), sumWith(t, got[metricRequests], attribute.String("result", "miss")))
	assert.Equal(t, int64(1), sumWith(t, got[metricEvictions]))
	assert.Equal(t, int64(1), sumWith(t, got[metricExpirations], attribute.String("reason", "lazy")))
	assert.Equal(t, int64(1), sumWith(t, got[metricExpirations], attribute.String("reason", "sweep")))
}

func TestMetrics_Gauges(t *testing.T) {
	mp, reader := newTestMeterProvider()
	defer func() { _ = mp.Shutdown(context.Background()) }()

	s := newTestStore(t, mbFor(10*77), 0, WithMeterProvider(mp))
	require.NoError(t, s.Set("a", "k1", tenBytes, NoExpiration))
	require.NoError(t, s.Set("b", "k1", tenBytes, NoExpiration))

	got := collect(t, reader)
	assert.Equal(t, int64(2*77), gaugeValue(t, got[metricMemoryUsed]))
	assert.Equal(t, int64(10*77), gaugeValue(t, got[metricMemoryLimit]))
	assert.Equal(t, int64(2), gaugeValue(t, got[metricNamespaces]))
	assert.Equal(t, int64(2), gaugeValue(t, got[metricEntries]))
}

func TestMetrics_StopUnregistersCallback(t *testing.T) {
	mp, reader := newTestMeterProvider()
	defer func() { _ = mp.Shutdown(context.Background()) }()

	s := newTestStore(t, 1, 0, WithMeterProvider(mp))
	require.NoError(t, s.Set("a", "k1", tenBytes, NoExpiration))
	s.Stop()

	// 回调已注销，采集不再读取 Store，同步计数器仍然可用
	_, _ = s.Get("a", "k1")
	got := collect(t, reader)
	assert.Equal(t, int64(1), sumWith(t, got[metricRequests], attribute.String("result", "hit")))
}
