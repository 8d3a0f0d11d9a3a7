package xcache

import (
	"sync"
	"sync/atomic"
)

// namespace 是一个隔离的 key 空间。
type namespace struct {
	id string

	mu      sync.RWMutex
	entries map[string]*entry
	bytes   int64 // 本命名空间条目的估算字节数
	dropped bool  // 已从注册表移除，写入方需重新获取实例

	hits   atomic.Uint64
	misses atomic.Uint64
}

func newNamespace(id string) *namespace {
	return &namespace{
		id:      id,
		entries: make(map[string]*entry),
	}
}

// putLocked 写入条目并返回被替换的旧条目。调用方持有 mu 写锁。
func (ns *namespace) putLocked(e *entry) *entry {
	old := ns.entries[e.key]
	ns.entries[e.key] = e
	ns.bytes += e.size
	if old != nil {
		ns.bytes -= old.size
	}
	return old
}

// removeLocked 删除条目。调用方持有 mu 写锁。
func (ns *namespace) removeLocked(e *entry) {
	delete(ns.entries, e.key)
	ns.bytes -= e.size
}

// liveCountLocked 统计未过期条目数。调用方至少持有 mu 读锁。
func (ns *namespace) liveCountLocked(now int64) int {
	n := 0
	for _, e := range ns.entries {
		if !e.expired(now) {
			n++
		}
	}
	return n
}
