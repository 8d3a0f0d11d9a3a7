package xcache

import (
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// TTL 约定值。
const (
	// NoExpiration 表示条目永不过期。
	NoExpiration time.Duration = 0

	// DefaultExpiration 表示使用 Store 的默认 TTL。
	DefaultExpiration time.Duration = -1
)

// 默认配置。
const (
	// DefaultMemoryMB 全局实例的默认内存上限（MB）。
	DefaultMemoryMB = 100

	// DefaultTTL 全局实例的默认 TTL。
	DefaultTTL = time.Hour

	// DefaultSweepInterval 后台清扫的默认间隔。
	DefaultSweepInterval = time.Second

	defaultShardCount       = 32
	maxShardCount           = 1 << 16
	defaultPatternCacheSize = 128
)

// Option 定义 Store 可选配置。
type Option func(*options)

type options struct {
	logger           *slog.Logger
	sweepInterval    time.Duration
	shardCount       int
	rejectOversize   bool
	meterProvider    metric.MeterProvider
	patternCacheSize int
	now              func() time.Time
}

func defaultOptions() *options {
	return &options{
		logger:           slog.Default(),
		sweepInterval:    DefaultSweepInterval,
		shardCount:       defaultShardCount,
		meterProvider:    otel.GetMeterProvider(),
		patternCacheSize: defaultPatternCacheSize,
		now:              time.Now,
	}
}

// WithLogger 设置日志记录器，nil 会被忽略。默认使用 slog.Default()。
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSweepInterval 设置后台清扫间隔。
// d <= 0 表示不启动后台清扫，过期条目只在访问时或调用 Sweep 时回收。
func WithSweepInterval(d time.Duration) Option {
	return func(o *options) {
		o.sweepInterval = d
	}
}

// WithShardCount 设置命名空间注册表的分片数。
// n 必须为 2 的幂且不超过 65536，否则 New 返回 ErrInvalidShardCount。默认 32。
func WithShardCount(n int) Option {
	return func(o *options) {
		o.shardCount = n
	}
}

// WithRejectOversize 设置是否拒绝超过整个内存上限的单个条目。
// 默认 false：照常写入并淘汰其余更旧的条目。
func WithRejectOversize(reject bool) Option {
	return func(o *options) {
		o.rejectOversize = reject
	}
}

// WithMeterProvider 设置 OpenTelemetry MeterProvider，nil 会被忽略。
// 默认使用 otel.GetMeterProvider()。
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(o *options) {
		if provider != nil {
			o.meterProvider = provider
		}
	}
}

// WithPatternCacheSize 设置 Keys 使用的模式编译缓存容量。
// n <= 0 时忽略，默认 128。
func WithPatternCacheSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.patternCacheSize = n
		}
	}
}

// withClock 替换时间源，仅供测试使用。
func withClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func (o *options) validate() error {
	sc := o.shardCount
	if sc <= 0 || sc > maxShardCount || sc&(sc-1) != 0 {
		return fmt.Errorf("%w: must be a positive power of 2 (max %d), got %d",
			ErrInvalidShardCount, maxShardCount, sc)
	}
	return nil
}
