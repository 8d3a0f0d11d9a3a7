// Package xmetrics 把 xcache 的统计快照导出为 Prometheus 指标。
//
// # 设计理念
//
// xcache 的热路径计数使用原子变量与 OpenTelemetry，不感知 Prometheus。
// 本包以 prometheus.Collector 的形式在采集时读取 Stats() 快照，
// 不在写入路径上增加任何开销。
//
// # 使用示例
//
//	reg, err := xmetrics.NewRegistry(store)
//	if err != nil {
//	    return err
//	}
//	http.Handle("/metrics", xmetrics.Handler(reg))
//
// # 指标命名
//
// 全局指标（前缀默认 nscache）：
//   - nscache_keys / nscache_namespaces
//   - nscache_hits_total / nscache_misses_total / nscache_hit_ratio
//   - nscache_memory_used_bytes / nscache_memory_limit_bytes
//   - nscache_evictions_total / nscache_expirations_total
//
// 启用 WithPerNamespace 后额外导出带 cache_namespace 标签的
// nscache_namespace_keys / _hits_total / _misses_total / _used_bytes。
// 命名空间数量可能很大，使用 WithMaxNamespaces 限制标签基数。
//
// 所有指标携带 store_id 常量标签，区分同一进程内的多个 Store。
package xmetrics
