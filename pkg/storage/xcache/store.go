package xcache

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/omeyang/nscache/pkg/util/xglob"
)

const bytesPerMB = 1024 * 1024

// Store 是命名空间隔离的进程内 KV 缓存。
//
// 所有方法并发安全。使用完毕后调用 Stop 停止后台清扫；
// Stop 之后数据操作仍然可用，只是不再有后台回收。
type Store struct {
	id         string
	opts       *options
	logger     *slog.Logger
	defaultTTL time.Duration
	totalMB    float64

	reg      *registry
	acct     *accountant
	patterns *xglob.Cache
	inst     *instruments

	hits        atomic.Uint64
	misses      atomic.Uint64
	evictions   atomic.Uint64
	expirations atomic.Uint64

	sweepCancel context.CancelFunc
	sweepDone   chan struct{}
	stopOnce    sync.Once
}

// New 创建 Store 并启动后台清扫。
//
// totalMemoryMB 为内存上限（MB），必须为正的有限数；
// defaultTTL 为 Set 使用 DefaultExpiration 时的 TTL，0 表示默认永不过期，不能为负。
func New(totalMemoryMB float64, defaultTTL time.Duration, opts ...Option) (*Store, error) {
	if totalMemoryMB <= 0 || math.IsNaN(totalMemoryMB) || math.IsInf(totalMemoryMB, 0) {
		return nil, fmt.Errorf("%w: memory ceiling must be positive, got %v MB", ErrInvalidArgument, totalMemoryMB)
	}
	if defaultTTL < 0 {
		return nil, fmt.Errorf("%w: default ttl must not be negative, got %s", ErrInvalidArgument, defaultTTL)
	}

	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	patterns, err := xglob.NewCache(o.patternCacheSize)
	if err != nil {
		return nil, fmt.Errorf("xcache: create pattern cache: %w", err)
	}

	maxBytes := max(int64(1), int64(totalMemoryMB*bytesPerMB))

	s := &Store{
		id:         uuid.NewString(),
		opts:       o,
		defaultTTL: defaultTTL,
		totalMB:    totalMemoryMB,
		reg:        newRegistry(o.shardCount),
		acct:       newAccountant(maxBytes),
		patterns:   patterns,
	}
	s.logger = o.logger.With(slog.String("store_id", s.id))

	inst, err := newInstruments(o.meterProvider, s)
	if err != nil {
		return nil, err
	}
	s.inst = inst

	s.startSweeper()

	s.logger.Debug("xcache: store created",
		slog.Float64("memory_mb", totalMemoryMB),
		slog.Int64("max_bytes", maxBytes),
		slog.Duration("default_ttl", defaultTTL),
		slog.Duration("sweep_interval", o.sweepInterval),
	)
	return s, nil
}

// ID 返回 Store 实例的唯一标识。
func (s *Store) ID() string { return s.id }

func (s *Store) nowNano() int64 { return s.opts.now().UnixNano() }

// resolveTTL 把 TTL 约定值换算为实际 TTL。
func (s *Store) resolveTTL(ttl time.Duration) (time.Duration, error) {
	switch {
	case ttl == DefaultExpiration:
		return s.defaultTTL, nil
	case ttl < 0:
		return 0, fmt.Errorf("%w: negative ttl %s", ErrInvalidArgument, ttl)
	default:
		return ttl, nil
	}
}

// checkSize 在写入前检查单条目是否超过整个内存上限。
func (s *Store) checkSize(nsID, key string, size int64) error {
	_, maxBytes, _ := s.acct.usage()
	if size <= maxBytes {
		return nil
	}
	if s.opts.rejectOversize {
		return fmt.Errorf("%w: %d bytes > %d bytes", ErrEntryTooLarge, size, maxBytes)
	}
	s.logger.Warn("xcache: entry exceeds memory ceiling, evicting all older entries",
		slog.String("namespace", nsID),
		slog.String("key", key),
		slog.Int64("size", size),
		slog.Int64("max_bytes", maxBytes),
	)
	return nil
}

// =============================================================================
// 单 key 操作
// =============================================================================

// Set 写入或覆盖条目。
//
// ttl 为 DefaultExpiration 时使用默认 TTL，NoExpiration 表示永不过期，
// 其他负数返回 ErrInvalidArgument。写入可能同步淘汰其他命名空间中更旧的条目。
func (s *Store) Set(ns, key string, value []byte, ttl time.Duration) error {
	resolved, err := s.resolveTTL(ttl)
	if err != nil {
		return err
	}
	size := estimateSize(ns, key, value)
	if err := s.checkSize(ns, key, size); err != nil {
		return err
	}
	e := s.insert(ns, key, bytes.Clone(value), resolved, size)
	s.evict(e)
	return nil
}

// insert 写入条目并登记记账，返回新条目。value 已由调用方复制。
func (s *Store) insert(nsID, key string, value []byte, ttl time.Duration, size int64) *entry {
	expiresAt := expiryAt(s.opts.now(), ttl)
	for {
		ns, created := s.reg.getOrCreate(nsID)
		ns.mu.Lock()
		if ns.dropped {
			// 与 ClearNamespace 竞争，重新获取新实例
			ns.mu.Unlock()
			continue
		}
		e := &entry{
			ns:        ns,
			key:       key,
			value:     value,
			expiresAt: expiresAt,
			size:      size,
			index:     -1,
		}
		old := ns.putLocked(e)
		s.acct.track(old, e)
		ns.mu.Unlock()

		if created {
			s.logger.Debug("xcache: namespace created", slog.String("namespace", nsID))
		}
		return e
	}
}

// evict 在总量超限时从全局最旧的条目开始淘汰，keep 不会被淘汰。
// 调用时不能持有任何命名空间锁。
func (s *Store) evict(keep *entry) {
	for {
		victim := s.acct.victim(keep)
		if victim == nil {
			return
		}
		ns := victim.ns
		ns.mu.Lock()
		// 取出 victim 后可能已被并发覆盖或删除，此时重新选取
		if ns.entries[victim.key] == victim {
			ns.removeLocked(victim)
			s.acct.untrack(victim)
			s.evictions.Add(1)
			s.inst.recordEviction()
		}
		ns.mu.Unlock()
	}
}

// Get 返回 key 对应值的副本。过期条目在访问时删除并计为 miss。
func (s *Store) Get(ns, key string) ([]byte, bool) {
	inst := s.reg.get(ns)
	if inst == nil {
		s.recordMiss(nil)
		return nil, false
	}
	v, ok := s.lookup(inst, key, true)
	if ok {
		s.recordHit(inst)
	} else {
		s.recordMiss(inst)
	}
	return v, ok
}

// lookup 查找未过期的条目，遇到过期条目时删除。clone 为 false 时不复制值。
func (s *Store) lookup(ns *namespace, key string, clone bool) ([]byte, bool) {
	now := s.nowNano()
	ns.mu.RLock()
	e, ok := ns.entries[key]
	if ok && !e.expired(now) {
		var v []byte
		if clone {
			v = bytes.Clone(e.value)
		}
		ns.mu.RUnlock()
		return v, true
	}
	ns.mu.RUnlock()

	if ok {
		s.purgeExpired(ns, key, now)
	}
	return nil, false
}

// purgeExpired 在写锁下再次确认后删除过期条目。
func (s *Store) purgeExpired(ns *namespace, key string, now int64) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if e, ok := ns.entries[key]; ok && e.expired(now) {
		s.removeExpiredLocked(ns, e, expireLazy)
	}
}

func (s *Store) removeExpiredLocked(ns *namespace, e *entry, reason expireReason) {
	ns.removeLocked(e)
	s.acct.untrack(e)
	s.expirations.Add(1)
	s.inst.recordExpiration(reason)
}

// Delete 删除条目，返回删除前 key 是否存在（未过期）。幂等。
func (s *Store) Delete(ns, key string) bool {
	inst := s.reg.get(ns)
	if inst == nil {
		return false
	}
	now := s.nowNano()
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return s.deleteLocked(inst, key, now)
}

func (s *Store) deleteLocked(ns *namespace, key string, now int64) bool {
	e, ok := ns.entries[key]
	if !ok {
		return false
	}
	if e.expired(now) {
		s.removeExpiredLocked(ns, e, expireLazy)
		return false
	}
	ns.removeLocked(e)
	s.acct.untrack(e)
	return true
}

// Has 判断 key 是否存在且未过期，不计入命中统计。
func (s *Store) Has(ns, key string) bool {
	inst := s.reg.get(ns)
	if inst == nil {
		return false
	}
	_, ok := s.lookup(inst, key, false)
	return ok
}

// Exists 与 Has 相同。
func (s *Store) Exists(ns, key string) bool {
	return s.Has(ns, key)
}

// TTL 返回剩余秒数（向上取整），永不过期返回 -1。
// key 不存在或已过期时 ok 为 false。
func (s *Store) TTL(ns, key string) (seconds int64, ok bool) {
	inst := s.reg.get(ns)
	if inst == nil {
		return 0, false
	}
	now := s.nowNano()
	inst.mu.RLock()
	e, found := inst.entries[key]
	if found && !e.expired(now) {
		seconds = e.remainingSeconds(now)
		inst.mu.RUnlock()
		return seconds, true
	}
	inst.mu.RUnlock()

	if found {
		s.purgeExpired(inst, key, now)
	}
	return 0, false
}

// Expire 重置已有 key 的过期时间。ttl 为 0 表示清除过期时间，负数返回 ErrInvalidArgument。
// key 不存在或已过期时返回 false。
//
// 重置过期时间不改变条目的写入序号，淘汰顺序不受影响。
func (s *Store) Expire(ns, key string, ttl time.Duration) (bool, error) {
	if ttl < 0 {
		return false, fmt.Errorf("%w: negative ttl %s", ErrInvalidArgument, ttl)
	}
	return s.setExpiry(ns, key, ttl), nil
}

// Persist 清除已有 key 的过期时间。key 不存在或已过期时返回 false。
func (s *Store) Persist(ns, key string) bool {
	return s.setExpiry(ns, key, NoExpiration)
}

func (s *Store) setExpiry(nsID, key string, ttl time.Duration) bool {
	inst := s.reg.get(nsID)
	if inst == nil {
		return false
	}
	now := s.opts.now()
	inst.mu.Lock()
	defer inst.mu.Unlock()

	e, ok := inst.entries[key]
	if !ok {
		return false
	}
	if e.expired(now.UnixNano()) {
		s.removeExpiredLocked(inst, e, expireLazy)
		return false
	}
	e.expiresAt = expiryAt(now, ttl)
	return true
}

// =============================================================================
// 枚举与管理
// =============================================================================

// Keys 返回命名空间内匹配 pattern 的未过期 key，按字典序排序。
//
// pattern 为空或 "*" 时返回全部 key。支持 *（任意长度，含空串）、
// ?（单个字符）与 \ 转义，整串匹配且区分大小写。
// 模式格式错误时返回 ErrInvalidPattern。命名空间不存在时返回空结果。
func (s *Store) Keys(ns, pattern string) ([]string, error) {
	var p *xglob.Pattern
	if pattern != "" {
		compiled, err := s.patterns.Get(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPattern, err)
		}
		p = compiled
	}

	inst := s.reg.get(ns)
	if inst == nil {
		return []string{}, nil
	}

	now := s.nowNano()
	inst.mu.RLock()
	keys := make([]string, 0, len(inst.entries))
	for k, e := range inst.entries {
		if e.expired(now) {
			continue
		}
		if p == nil || p.MatchAll() || p.Match(k) {
			keys = append(keys, k)
		}
	}
	inst.mu.RUnlock()

	slices.Sort(keys)
	return keys, nil
}

// ClearNamespace 删除命名空间实例（条目与计数器），返回实例是否存在。
func (s *Store) ClearNamespace(ns string) bool {
	inst := s.reg.remove(ns)
	if inst == nil {
		return false
	}
	s.dropNamespace(inst)
	s.logger.Debug("xcache: namespace cleared", slog.String("namespace", ns))
	return true
}

// Clear 删除全部命名空间并重置全局命中/未命中计数。
func (s *Store) Clear() {
	removed := s.reg.removeAll()
	for _, inst := range removed {
		s.dropNamespace(inst)
	}
	s.hits.Store(0)
	s.misses.Store(0)
	s.logger.Debug("xcache: store cleared", slog.Int("namespaces", len(removed)))
}

// ClearAll 与 Clear 相同。
func (s *Store) ClearAll() {
	s.Clear()
}

// dropNamespace 释放已从注册表移除的实例。
func (s *Store) dropNamespace(ns *namespace) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	ns.dropped = true
	s.acct.untrackAll(ns.entries)
	clear(ns.entries)
	ns.bytes = 0
	ns.hits.Store(0)
	ns.misses.Store(0)
}

// =============================================================================
// 统计计数
// =============================================================================

func (s *Store) recordHit(ns *namespace) {
	s.hits.Add(1)
	ns.hits.Add(1)
	s.inst.recordRequest(true)
}

// recordMiss 记录一次未命中，ns 为 nil 表示命名空间不存在。
func (s *Store) recordMiss(ns *namespace) {
	s.misses.Add(1)
	if ns != nil {
		ns.misses.Add(1)
	}
	s.inst.recordRequest(false)
}
