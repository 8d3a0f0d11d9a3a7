package xcache

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// registry 按命名空间 id 分片保存命名空间实例。
type registry struct {
	shards []registryShard
	mask   uint64
}

type registryShard struct {
	mu         sync.RWMutex
	namespaces map[string]*namespace
}

// newRegistry 创建注册表，shardCount 已由 options.validate 校验为 2 的幂。
func newRegistry(shardCount int) *registry {
	shards := make([]registryShard, shardCount)
	for i := range shards {
		shards[i].namespaces = make(map[string]*namespace)
	}
	return &registry{
		shards: shards,
		mask:   uint64(shardCount - 1),
	}
}

func (r *registry) shard(id string) *registryShard {
	return &r.shards[xxhash.Sum64String(id)&r.mask]
}

func (r *registry) get(id string) *namespace {
	s := r.shard(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.namespaces[id]
}

// getOrCreate 返回命名空间实例，不存在时创建。created 表示本次调用创建了实例。
func (r *registry) getOrCreate(id string) (ns *namespace, created bool) {
	s := r.shard(id)
	s.mu.RLock()
	ns = s.namespaces[id]
	s.mu.RUnlock()
	if ns != nil {
		return ns, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ns = s.namespaces[id]; ns != nil {
		return ns, false
	}
	ns = newNamespace(id)
	s.namespaces[id] = ns
	return ns, true
}

// remove 从注册表移除命名空间并返回它，不存在时返回 nil。
func (r *registry) remove(id string) *namespace {
	s := r.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	ns := s.namespaces[id]
	if ns != nil {
		delete(s.namespaces, id)
	}
	return ns
}

// removeAll 清空注册表并返回被移除的全部命名空间。
func (r *registry) removeAll() []*namespace {
	var out []*namespace
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		for _, ns := range s.namespaces {
			out = append(out, ns)
		}
		s.namespaces = make(map[string]*namespace)
		s.mu.Unlock()
	}
	return out
}

// snapshot 返回当前全部命名空间，不保证跨分片原子性。
func (r *registry) snapshot() []*namespace {
	var out []*namespace
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		for _, ns := range s.namespaces {
			out = append(out, ns)
		}
		s.mu.RUnlock()
	}
	return out
}

func (r *registry) len() int {
	n := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		n += len(s.namespaces)
		s.mu.RUnlock()
	}
	return n
}
