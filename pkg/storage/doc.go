// Package storage 提供数据存储相关的子包。
//
// 子包列表：
//   - xcache: 进程内命名空间缓存，支持 TTL、全局内存上限与按写入顺序淘汰
//
// 设计原则：
//   - 命名空间之间互不可见，但共享同一个内存上限
//   - 内置可观测性（OpenTelemetry 指标、统计快照）
package storage
