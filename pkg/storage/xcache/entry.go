package xcache

import (
	"math"
	"time"
)

// entryOverhead 每个条目的固定记账开销（字节），覆盖 map 槽位、指针与元数据。
const entryOverhead = 64

// entry 是一个 key 的存储单元。
//
// value、size、ns、key 创建后不再变化；expiresAt 只在持有 ns.mu 写锁时修改；
// seq 与 index 只在持有 accountant.mu 时读写。
type entry struct {
	ns        *namespace
	key       string
	value     []byte
	expiresAt int64 // UnixNano，0 表示永不过期
	size      int64

	seq   uint64
	index int // 在淘汰堆中的下标，-1 表示不在堆中
}

func (e *entry) expired(now int64) bool {
	return e.expiresAt != 0 && now >= e.expiresAt
}

// remainingSeconds 返回剩余秒数（向上取整），永不过期返回 -1。
// 调用方需保证条目未过期。
func (e *entry) remainingSeconds(now int64) int64 {
	if e.expiresAt == 0 {
		return -1
	}
	remaining := e.expiresAt - now
	sec := int64(time.Second)
	secs := remaining / sec
	if remaining%sec != 0 {
		secs++
	}
	return secs
}

func estimateSize(ns, key string, value []byte) int64 {
	return int64(len(ns)+len(key)+len(value)) + entryOverhead
}

// expiryAt 计算绝对过期时间，ttl 为 0 时返回 0（永不过期）。
// 超出 int64 纳秒表示范围（约 2262 年）的过期时间截断为 math.MaxInt64。
func expiryAt(now time.Time, ttl time.Duration) int64 {
	if ttl == NoExpiration {
		return 0
	}
	n := now.UnixNano()
	if n > 0 && int64(ttl) > math.MaxInt64-n {
		return math.MaxInt64
	}
	return n + int64(ttl)
}
