package xcache

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric/noop"
)

// =============================================================================
// 全局 Store
//
// 定位：进程内只需一份缓存的简单场景。
// 在服务端推荐依赖注入（显式持有 *Store）。
// =============================================================================

// globalStore 全局 Store 实例（并发安全）
var globalStore atomic.Pointer[Store]

// globalMu 串行化全局实例的构造与重置
var globalMu sync.Mutex

// Default 返回全局 Store，首次调用时以 DefaultMemoryMB 与 DefaultTTL 构造。
//
// 设计决策: 默认参数不应失败；若按全局 MeterProvider 构造失败，
// 降级为不上报指标的实例，避免库代码 panic 终止宿主进程。
func Default() *Store {
	if s := globalStore.Load(); s != nil {
		return s
	}
	s, err := DefaultWith(DefaultMemoryMB, DefaultTTL)
	if err == nil {
		return s
	}
	slog.Default().Warn("xcache: build default store failed, metrics disabled", slog.Any("error", err))
	s, err = DefaultWith(DefaultMemoryMB, DefaultTTL, WithMeterProvider(noop.NewMeterProvider()))
	if err != nil {
		// 默认内存与 TTL 均合法，noop provider 不会返回错误
		panic(fmt.Sprintf("xcache: build fallback default store: %v", err))
	}
	return s
}

// DefaultWith 以给定参数构造全局 Store。
//
// 只有首次成功的调用会构造实例，之后的调用忽略参数直接返回已有实例。
// 构造失败时不保存任何实例，下次调用会重新尝试。
func DefaultWith(totalMemoryMB float64, defaultTTL time.Duration, opts ...Option) (*Store, error) {
	if s := globalStore.Load(); s != nil {
		return s, nil
	}

	globalMu.Lock()
	defer globalMu.Unlock()

	if s := globalStore.Load(); s != nil {
		return s, nil
	}
	s, err := New(totalMemoryMB, defaultTTL, opts...)
	if err != nil {
		return nil, err
	}
	globalStore.Store(s)
	return s, nil
}

// ResetDefault 停止并丢弃全局 Store，下次 Default / DefaultWith 会重新构造。
// 已持有旧实例的调用方仍可继续读写，但旧实例不再有后台清扫。
func ResetDefault() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if s := globalStore.Swap(nil); s != nil {
		s.Stop()
	}
}
