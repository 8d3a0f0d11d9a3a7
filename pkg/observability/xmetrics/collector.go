package xmetrics

import (
	"fmt"
	"net/http"
	"regexp"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/omeyang/nscache/pkg/storage/xcache"
)

const (
	defaultNamespace = "nscache"
	labelStoreID     = "store_id"
	labelNamespace   = "cache_namespace"
)

var validName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// StatsSource 提供缓存统计快照，*xcache.Store 满足该接口。
type StatsSource interface {
	Stats() xcache.Stats
	InstanceStats(ns string) (xcache.InstanceStats, bool)
	NamespaceNames() []string
}

// Option 定义 StoreCollector 的配置选项。
type Option func(*collectorOptions)

type collectorOptions struct {
	namespace     string
	constLabels   prometheus.Labels
	perNamespace  bool
	maxNamespaces int
}

// WithNamespace 设置指标名前缀，默认 "nscache"。空字符串会被忽略。
func WithNamespace(ns string) Option {
	return func(o *collectorOptions) {
		if ns != "" {
			o.namespace = ns
		}
	}
}

// WithConstLabels 为所有指标追加常量标签。
func WithConstLabels(labels prometheus.Labels) Option {
	return func(o *collectorOptions) {
		if o.constLabels == nil {
			o.constLabels = prometheus.Labels{}
		}
		for k, v := range labels {
			o.constLabels[k] = v
		}
	}
}

// WithPerNamespace 开启按命名空间导出的指标。
func WithPerNamespace(enabled bool) Option {
	return func(o *collectorOptions) {
		o.perNamespace = enabled
	}
}

// WithMaxNamespaces 限制按命名空间导出的数量（按名称排序取前 n 个），n <= 0 表示不限制。
func WithMaxNamespaces(n int) Option {
	return func(o *collectorOptions) {
		o.maxNamespaces = n
	}
}

// StoreCollector 是读取 xcache 统计的 prometheus.Collector。
type StoreCollector struct {
	src  StatsSource
	opts collectorOptions

	keys        *prometheus.Desc
	namespaces  *prometheus.Desc
	hits        *prometheus.Desc
	misses      *prometheus.Desc
	hitRatio    *prometheus.Desc
	memUsed     *prometheus.Desc
	memLimit    *prometheus.Desc
	evictions   *prometheus.Desc
	expirations *prometheus.Desc

	nsKeys   *prometheus.Desc
	nsHits   *prometheus.Desc
	nsMisses *prometheus.Desc
	nsBytes  *prometheus.Desc
}

var _ prometheus.Collector = (*StoreCollector)(nil)

// NewStoreCollector 创建采集器。store_id 常量标签取自 src 当前的 StoreID。
func NewStoreCollector(src StatsSource, opts ...Option) (*StoreCollector, error) {
	if src == nil {
		return nil, ErrNilSource
	}
	o := collectorOptions{namespace: defaultNamespace}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if !validName.MatchString(o.namespace) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNamespace, o.namespace)
	}

	labels := prometheus.Labels{labelStoreID: src.Stats().StoreID}
	for k, v := range o.constLabels {
		labels[k] = v
	}

	desc := func(name, help string, variable ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(o.namespace, "", name), help, variable, labels)
	}

	return &StoreCollector{
		src:  src,
		opts: o,

		keys:        desc("keys", "Live (non-expired) keys across all namespaces."),
		namespaces:  desc("namespaces", "Namespace instances, including empty ones."),
		hits:        desc("hits_total", "Lookups that found a live entry."),
		misses:      desc("misses_total", "Lookups that found no live entry."),
		hitRatio:    desc("hit_ratio", "hits / (hits + misses), 0 when there were no lookups."),
		memUsed:     desc("memory_used_bytes", "Estimated bytes held by live entries."),
		memLimit:    desc("memory_limit_bytes", "Memory ceiling in bytes."),
		evictions:   desc("evictions_total", "Entries evicted by the memory ceiling."),
		expirations: desc("expirations_total", "Entries removed after their ttl elapsed."),

		nsKeys:   desc("namespace_keys", "Live keys per namespace.", labelNamespace),
		nsHits:   desc("namespace_hits_total", "Lookup hits per namespace.", labelNamespace),
		nsMisses: desc("namespace_misses_total", "Lookup misses per namespace.", labelNamespace),
		nsBytes:  desc("namespace_used_bytes", "Estimated bytes per namespace.", labelNamespace),
	}, nil
}

// Describe 实现 prometheus.Collector。
func (c *StoreCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.keys
	ch <- c.namespaces
	ch <- c.hits
	ch <- c.misses
	ch <- c.hitRatio
	ch <- c.memUsed
	ch <- c.memLimit
	ch <- c.evictions
	ch <- c.expirations
	if c.opts.perNamespace {
		ch <- c.nsKeys
		ch <- c.nsHits
		ch <- c.nsMisses
		ch <- c.nsBytes
	}
}

// Collect 实现 prometheus.Collector。
func (c *StoreCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.src.Stats()

	ch <- prometheus.MustNewConstMetric(c.keys, prometheus.GaugeValue, float64(st.TotalKeys))
	ch <- prometheus.MustNewConstMetric(c.namespaces, prometheus.GaugeValue, float64(st.Namespaces))
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(st.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(st.Misses))
	ch <- prometheus.MustNewConstMetric(c.hitRatio, prometheus.GaugeValue, st.HitRate)
	ch <- prometheus.MustNewConstMetric(c.memUsed, prometheus.GaugeValue, float64(st.UsedBytes))
	ch <- prometheus.MustNewConstMetric(c.memLimit, prometheus.GaugeValue, float64(st.MaxBytes))
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(st.Evictions))
	ch <- prometheus.MustNewConstMetric(c.expirations, prometheus.CounterValue, float64(st.Expirations))

	if !c.opts.perNamespace {
		return
	}
	names := c.src.NamespaceNames()
	slices.Sort(names)
	if n := c.opts.maxNamespaces; n > 0 && len(names) > n {
		names = names[:n]
	}
	for _, ns := range names {
		is, ok := c.src.InstanceStats(ns)
		if !ok {
			// 采集期间被清除
			continue
		}
		ch <- prometheus.MustNewConstMetric(c.nsKeys, prometheus.GaugeValue, float64(is.KeyCount), ns)
		ch <- prometheus.MustNewConstMetric(c.nsHits, prometheus.CounterValue, float64(is.Hits), ns)
		ch <- prometheus.MustNewConstMetric(c.nsMisses, prometheus.CounterValue, float64(is.Misses), ns)
		ch <- prometheus.MustNewConstMetric(c.nsBytes, prometheus.GaugeValue, float64(is.UsedBytes), ns)
	}
}

// NewRegistry 创建注册了 StoreCollector 以及 Go 运行时与进程采集器的 Registry。
func NewRegistry(src StatsSource, opts ...Option) (*prometheus.Registry, error) {
	c, err := NewStoreCollector(src, opts...)
	if err != nil {
		return nil, err
	}
	reg := prometheus.NewRegistry()
	for _, col := range []prometheus.Collector{
		c,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("xmetrics: register collector: %w", err)
		}
	}
	return reg, nil
}

// Handler 返回暴露 reg 中指标的 HTTP handler。
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
