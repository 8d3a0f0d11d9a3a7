// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xmetrics: 把 xcache 统计导出为 Prometheus 指标
//   - xrotate: 按大小轮转的日志文件写入器（lumberjack）
//
// xcache 自身通过 OpenTelemetry metric API 上报计数与仪表，
// xmetrics 面向直接使用 Prometheus 拉取的部署。
package observability
