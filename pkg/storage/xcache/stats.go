package xcache

// Stats 是 Store 的全局统计快照。
type Stats struct {
	// TotalKeys 全部命名空间的未过期 key 数。
	TotalKeys int `json:"total_keys"`

	// Namespaces 已创建的命名空间实例数（含空实例），与 TotalInstances 相同。
	Namespaces     int `json:"namespaces"`
	TotalInstances int `json:"total_instances"`

	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`

	UsedMemoryMB  float64 `json:"used_memory_mb"`
	TotalMemoryMB float64 `json:"total_memory_mb"`
	UsedBytes     int64   `json:"used_bytes"`
	MaxBytes      int64   `json:"max_bytes"`

	// Evictions 因内存上限被淘汰的条目累计数。
	Evictions uint64 `json:"evictions"`

	// Expirations 因过期被删除的条目累计数（访问时删除与后台清扫）。
	Expirations uint64 `json:"expirations"`

	StoreID string `json:"store_id"`
}

// InstanceStats 是单个命名空间的统计快照。
type InstanceStats struct {
	KeyCount   int    `json:"key_count"`
	Hits       uint64 `json:"hits"`
	Misses     uint64 `json:"misses"`
	InstanceID string `json:"instance_id"`
	UsedBytes  int64  `json:"used_bytes"`
}

func hitRate(hits, misses uint64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// Stats 返回全局统计快照。各字段分别读取，并发写入时不保证彼此一致。
func (s *Store) Stats() Stats {
	now := s.nowNano()
	instances := s.reg.snapshot()

	keys := 0
	for _, ns := range instances {
		ns.mu.RLock()
		keys += ns.liveCountLocked(now)
		ns.mu.RUnlock()
	}

	used, maxBytes, _ := s.acct.usage()
	hits, misses := s.hits.Load(), s.misses.Load()
	return Stats{
		TotalKeys:      keys,
		Namespaces:     len(instances),
		TotalInstances: len(instances),
		Hits:           hits,
		Misses:         misses,
		HitRate:        hitRate(hits, misses),
		UsedMemoryMB:   float64(used) / bytesPerMB,
		TotalMemoryMB:  s.totalMB,
		UsedBytes:      used,
		MaxBytes:       maxBytes,
		Evictions:      s.evictions.Load(),
		Expirations:    s.expirations.Load(),
		StoreID:        s.id,
	}
}

// InstanceStats 返回命名空间统计，命名空间不存在（或已被清除）时 ok 为 false。
func (s *Store) InstanceStats(ns string) (InstanceStats, bool) {
	inst := s.reg.get(ns)
	if inst == nil {
		return InstanceStats{}, false
	}
	now := s.nowNano()
	inst.mu.RLock()
	st := InstanceStats{
		KeyCount:   inst.liveCountLocked(now),
		InstanceID: inst.id,
		UsedBytes:  inst.bytes,
	}
	inst.mu.RUnlock()
	st.Hits = inst.hits.Load()
	st.Misses = inst.misses.Load()
	return st, true
}

// NamespaceNames 返回当前全部命名空间 id，顺序不确定。
func (s *Store) NamespaceNames() []string {
	instances := s.reg.snapshot()
	out := make([]string, 0, len(instances))
	for _, ns := range instances {
		out = append(out, ns.id)
	}
	return out
}
