package xcache

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	instrumentationName = "github.com/omeyang/nscache/pkg/storage/xcache"

	metricRequests    = "xcache.requests"
	metricEvictions   = "xcache.evictions"
	metricExpirations = "xcache.expirations"
	metricMemoryUsed  = "xcache.memory.used"
	metricMemoryLimit = "xcache.memory.limit"
	metricNamespaces  = "xcache.namespaces"
	metricEntries     = "xcache.entries"

	attrStoreID = "store.id"
)

type expireReason int

const (
	expireLazy expireReason = iota
	expireSweep
)

var (
	hitAttrs   = metric.WithAttributeSet(attribute.NewSet(attribute.String("result", "hit")))
	missAttrs  = metric.WithAttributeSet(attribute.NewSet(attribute.String("result", "miss")))
	lazyAttrs  = metric.WithAttributeSet(attribute.NewSet(attribute.String("reason", "lazy")))
	sweepAttrs = metric.WithAttributeSet(attribute.NewSet(attribute.String("reason", "sweep")))
)

// instruments 汇总 Store 的 OpenTelemetry 指标。
// 计数器在热路径上同步记录，内存与命名空间数量通过回调在采集时读取。
type instruments struct {
	requests    metric.Int64Counter
	evictions   metric.Int64Counter
	expirations metric.Int64Counter

	registration metric.Registration
}

func newInstruments(provider metric.MeterProvider, s *Store) (*instruments, error) {
	meter := provider.Meter(instrumentationName)

	requests, err := meter.Int64Counter(metricRequests,
		metric.WithDescription("cache lookups by result"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("xcache: create counter %s: %w", metricRequests, err)
	}
	evictions, err := meter.Int64Counter(metricEvictions,
		metric.WithDescription("entries evicted by the memory ceiling"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("xcache: create counter %s: %w", metricEvictions, err)
	}
	expirations, err := meter.Int64Counter(metricExpirations,
		metric.WithDescription("entries removed after their ttl elapsed"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("xcache: create counter %s: %w", metricExpirations, err)
	}

	used, err := meter.Int64ObservableGauge(metricMemoryUsed,
		metric.WithDescription("estimated bytes held by live entries"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("xcache: create gauge %s: %w", metricMemoryUsed, err)
	}
	limit, err := meter.Int64ObservableGauge(metricMemoryLimit,
		metric.WithDescription("memory ceiling in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("xcache: create gauge %s: %w", metricMemoryLimit, err)
	}
	namespaces, err := meter.Int64ObservableGauge(metricNamespaces,
		metric.WithDescription("namespace instances"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("xcache: create gauge %s: %w", metricNamespaces, err)
	}
	entries, err := meter.Int64ObservableGauge(metricEntries,
		metric.WithDescription("tracked entries including expired ones not yet reclaimed"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("xcache: create gauge %s: %w", metricEntries, err)
	}

	storeAttrs := metric.WithAttributes(attribute.String(attrStoreID, s.id))
	reg, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		u, m, n := s.acct.usage()
		o.ObserveInt64(used, u, storeAttrs)
		o.ObserveInt64(limit, m, storeAttrs)
		o.ObserveInt64(entries, int64(n), storeAttrs)
		o.ObserveInt64(namespaces, int64(s.reg.len()), storeAttrs)
		return nil
	}, used, limit, namespaces, entries)
	if err != nil {
		return nil, fmt.Errorf("xcache: register gauge callback: %w", err)
	}

	return &instruments{
		requests:     requests,
		evictions:    evictions,
		expirations:  expirations,
		registration: reg,
	}, nil
}

func (i *instruments) recordRequest(hit bool) {
	if hit {
		i.requests.Add(context.Background(), 1, hitAttrs)
		return
	}
	i.requests.Add(context.Background(), 1, missAttrs)
}

func (i *instruments) recordEviction() {
	i.evictions.Add(context.Background(), 1)
}

func (i *instruments) recordExpiration(reason expireReason) {
	if reason == expireSweep {
		i.expirations.Add(context.Background(), 1, sweepAttrs)
		return
	}
	i.expirations.Add(context.Background(), 1, lazyAttrs)
}

// unregister 注销采集回调，幂等由调用方 (Stop) 保证。
func (i *instruments) unregister() error {
	return i.registration.Unregister()
}
