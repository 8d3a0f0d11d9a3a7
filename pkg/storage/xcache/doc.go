// Package xcache 提供进程内的命名空间隔离 KV 缓存，支持 TTL 过期和内存上限淘汰。
//
// # 核心组件
//
//   - Store：命名空间注册表与对外 API，命名空间在首次写入时惰性创建
//   - 命名空间：独立的 key 空间，拥有自己的读写锁和命中/未命中计数
//   - 内存记账：按条目估算字节数，全局与命名空间分别累计
//   - 淘汰策略：超出上限时按全局写入序号（seq）从最旧开始跨命名空间淘汰
//   - TTL 清扫：后台 goroutine 周期性清理过期条目，保证未被读取的过期 key 也会被回收
//   - 全局实例：Default / DefaultWith / ResetDefault 管理进程级单例
//
// # 快速开始
//
//	store, err := xcache.New(64, time.Hour)
//	if err != nil {
//	    return err
//	}
//	defer store.Stop()
//
//	_ = store.Set("sessions", "u:1001", []byte("token"), 30*time.Minute)
//	v, ok := store.Get("sessions", "u:1001")
//
// # TTL 约定
//
//   - NoExpiration (0)：永不过期
//   - DefaultExpiration (-1)：使用 Store 的默认 TTL
//   - 正数：写入时刻 + ttl 过期
//   - 其他负数：返回 ErrInvalidArgument
//
// 过期条目在读取时惰性删除并计为 miss，后台清扫负责回收从未被读取的过期条目。
//
// # 内存上限
//
// 条目估算大小为 len(namespace) + len(key) + len(value) + 固定开销。
// 每次写入后若总量超过上限，写入路径会同步淘汰全局最旧的条目直到回到上限以内。
//
// 设计决策: 单个条目超过整个上限时默认仍然写入，并淘汰其他所有更旧的条目
// （沿用既有行为）。需要拒绝此类写入时使用 WithRejectOversize(true)，
// 此时返回 ErrEntryTooLarge。
//
// # 并发
//
// 所有方法并发安全且同步完成。命名空间注册表按 xxhash 分片，
// 不同命名空间的操作互不阻塞；淘汰索引与总字节数由一把独立的锁保护。
// 加锁顺序固定为：命名空间锁 → 记账锁。
//
// # 统计
//
// 命中率 = hits / (hits + misses)，无请求时为 0。
// Has / Exists 不计入命中统计，只有 Get / MGet 计入。
package xcache
