package xcache

import (
	"bytes"
	"fmt"
	"time"
)

// Item 是 MSet 的单个写入项。TTL 约定与 Set 相同。
type Item struct {
	Key   string
	Value []byte
	TTL   time.Duration
}

// Lookup 是 MGet 的单个查询结果。
type Lookup struct {
	Key   string
	Value []byte
	Found bool
}

// MSet 批量写入，每一项的语义与 Set 相同。
//
// 所有项在写入前统一校验，任一项无效时不写入任何数据。
// 校验通过后逐项写入，不提供跨条目的事务性。
func (s *Store) MSet(ns string, items []Item) error {
	type prepared struct {
		item Item
		ttl  time.Duration
		size int64
	}
	batch := make([]prepared, 0, len(items))
	for i, it := range items {
		ttl, err := s.resolveTTL(it.TTL)
		if err != nil {
			return fmt.Errorf("item %d (key %q): %w", i, it.Key, err)
		}
		size := estimateSize(ns, it.Key, it.Value)
		if err := s.checkSize(ns, it.Key, size); err != nil {
			return fmt.Errorf("item %d (key %q): %w", i, it.Key, err)
		}
		batch = append(batch, prepared{item: it, ttl: ttl, size: size})
	}

	for _, p := range batch {
		e := s.insert(ns, p.item.Key, bytes.Clone(p.item.Value), p.ttl, p.size)
		s.evict(e)
	}
	return nil
}

// MGet 批量读取，按请求顺序为每个 key 返回一条结果，命名空间不存在时全部 Found 为 false。
// 每个 key 分别计入命中统计。
func (s *Store) MGet(ns string, keys []string) []Lookup {
	out := make([]Lookup, len(keys))
	inst := s.reg.get(ns)
	for i, k := range keys {
		out[i].Key = k
		if inst == nil {
			s.recordMiss(nil)
			continue
		}
		v, ok := s.lookup(inst, k, true)
		if ok {
			out[i].Value = v
			out[i].Found = true
			s.recordHit(inst)
		} else {
			s.recordMiss(inst)
		}
	}
	return out
}

// MDelete 批量删除，忽略不存在的 key，返回实际删除的数量。
func (s *Store) MDelete(ns string, keys []string) int {
	inst := s.reg.get(ns)
	if inst == nil {
		return 0
	}
	now := s.nowNano()
	inst.mu.Lock()
	defer inst.mu.Unlock()

	n := 0
	for _, k := range keys {
		if s.deleteLocked(inst, k, now) {
			n++
		}
	}
	return n
}
