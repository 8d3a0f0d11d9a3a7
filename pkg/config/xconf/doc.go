// Package xconf 加载 nscache 的运行配置（缓存容量、日志、指标），基于 koanf 实现。
//
// # 加载顺序
//
// 后加载的来源覆盖先加载的来源：
//
//  1. Defaults() 内置默认值
//  2. 配置文件（YAML: .yaml/.yml，JSON: .json），通过 koanf rawbytes provider 解析
//  3. .env 文件（WithEnvFile），通过 godotenv 写入进程环境，已存在的环境变量不会被覆盖
//  4. 环境变量（默认前缀 NSCACHE），通过 envconfig 解析，例如 NSCACHE_CACHE_MEMORY_MB
//
// 加载完成后执行 Validate，无效配置返回 ErrInvalidSettings。
//
// # 配置文件示例
//
//	cache:
//	  memory_mb: 64
//	  default_ttl: 30m
//	  sweep_interval: 1s
//	log:
//	  level: info
//	  format: json
//	metrics:
//	  addr: ":9100"
//	  stats_cron: "@every 1m"
//
// # 配置监视
//
// Loader.Watch 基于 fsnotify 监视配置文件所在目录，内置防抖，
// 支持 vim/emacs 的原子写入。文件变更后重新执行完整加载流程并回调。
// Stop() 保证返回后不再有回调执行，在回调中调用 Stop() 不会死锁。
//
// 只有日志级别适合在运行中调整；缓存容量等参数只在启动时生效。
package xconf
