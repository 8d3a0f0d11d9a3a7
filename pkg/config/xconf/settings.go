package xconf

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/omeyang/nscache/pkg/storage/xcache"
)

// Settings 是 nscache 进程的完整配置。
type Settings struct {
	Cache   CacheSettings   `koanf:"cache" json:"cache"`
	Log     LogSettings     `koanf:"log" json:"log"`
	Metrics MetricsSettings `koanf:"metrics" json:"metrics"`
}

// CacheSettings 对应 xcache.New 的参数与选项。
type CacheSettings struct {
	// MemoryMB 内存上限（MB），必须为正数。
	MemoryMB float64 `koanf:"memory_mb" split_words:"true" json:"memory_mb"`

	// DefaultTTL 默认 TTL，0 表示默认永不过期。
	DefaultTTL time.Duration `koanf:"default_ttl" split_words:"true" json:"default_ttl"`

	// SweepInterval 后台清扫间隔，0 使用 xcache 默认值，负数禁用后台清扫。
	SweepInterval time.Duration `koanf:"sweep_interval" split_words:"true" json:"sweep_interval"`

	// ShardCount 命名空间注册表分片数，0 使用默认值。
	ShardCount int `koanf:"shard_count" split_words:"true" json:"shard_count"`

	// RejectOversize 是否拒绝超过整个内存上限的单个条目。
	RejectOversize bool `koanf:"reject_oversize" split_words:"true" json:"reject_oversize"`

	// PatternCacheSize Keys 模式编译缓存容量，0 使用默认值。
	PatternCacheSize int `koanf:"pattern_cache_size" split_words:"true" json:"pattern_cache_size"`
}

// LogSettings 日志输出配置。File 为空时输出到 stderr。
type LogSettings struct {
	Level      string `koanf:"level" split_words:"true" json:"level"`
	Format     string `koanf:"format" split_words:"true" json:"format"`
	File       string `koanf:"file" split_words:"true" json:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb" split_words:"true" json:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups" split_words:"true" json:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days" split_words:"true" json:"max_age_days"`
	Compress   bool   `koanf:"compress" split_words:"true" json:"compress"`
}

// MetricsSettings 指标与周期统计配置。
type MetricsSettings struct {
	// Addr Prometheus /metrics 监听地址，空表示不启动。
	Addr string `koanf:"addr" split_words:"true" json:"addr"`

	// StatsCron 周期输出统计日志的 cron 表达式，空表示不启动。
	StatsCron string `koanf:"stats_cron" split_words:"true" json:"stats_cron"`
}

// 日志格式。
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Defaults 返回内置默认配置。
func Defaults() Settings {
	return Settings{
		Cache: CacheSettings{
			MemoryMB:   xcache.DefaultMemoryMB,
			DefaultTTL: xcache.DefaultTTL,
		},
		Log: LogSettings{
			Level:      "info",
			Format:     LogFormatText,
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
	}
}

// Validate 检查配置是否合法，返回的错误包含全部问题。
func (s *Settings) Validate() error {
	var errs []error
	if s.Cache.MemoryMB <= 0 {
		errs = append(errs, fmt.Errorf("cache.memory_mb must be positive, got %v", s.Cache.MemoryMB))
	}
	if s.Cache.DefaultTTL < 0 {
		errs = append(errs, fmt.Errorf("cache.default_ttl must not be negative, got %s", s.Cache.DefaultTTL))
	}
	if s.Cache.ShardCount < 0 {
		errs = append(errs, fmt.Errorf("cache.shard_count must not be negative, got %d", s.Cache.ShardCount))
	}
	if _, err := s.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(s.Log.Format) {
	case LogFormatText, LogFormatJSON:
	default:
		errs = append(errs, fmt.Errorf("log.format must be %q or %q, got %q", LogFormatText, LogFormatJSON, s.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, errors.Join(errs...))
	}
	return nil
}

// SlogLevel 解析日志级别（debug/info/warn/error，大小写不敏感，支持 "warn+2" 形式）。
func (l LogSettings) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// StoreOptions 把缓存配置转换为 xcache 选项，调用方可追加 WithLogger 等运行时选项。
func (c CacheSettings) StoreOptions() []xcache.Option {
	var opts []xcache.Option
	switch {
	case c.SweepInterval < 0:
		opts = append(opts, xcache.WithSweepInterval(0))
	case c.SweepInterval > 0:
		opts = append(opts, xcache.WithSweepInterval(c.SweepInterval))
	}
	if c.ShardCount > 0 {
		opts = append(opts, xcache.WithShardCount(c.ShardCount))
	}
	if c.RejectOversize {
		opts = append(opts, xcache.WithRejectOversize(true))
	}
	if c.PatternCacheSize > 0 {
		opts = append(opts, xcache.WithPatternCacheSize(c.PatternCacheSize))
	}
	return opts
}

// NewStore 按配置创建 Store，extra 在配置生成的选项之后应用。
func (c CacheSettings) NewStore(extra ...xcache.Option) (*xcache.Store, error) {
	return xcache.New(c.MemoryMB, c.DefaultTTL, append(c.StoreOptions(), extra...)...)
}
