package xcache

import (
	"context"
	"log/slog"
	"time"
)

// startSweeper 启动后台清扫 goroutine，间隔 <= 0 时不启动。
func (s *Store) startSweeper() {
	interval := s.opts.sweepInterval
	if interval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.sweepCancel = cancel
	s.sweepDone = make(chan struct{})

	go s.sweepLoop(ctx, interval)
}

func (s *Store) sweepLoop(ctx context.Context, interval time.Duration) {
	defer close(s.sweepDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Debug("xcache: sweep reclaimed expired entries", slog.Int("removed", n))
			}
		}
	}
}

// Sweep 同步执行一轮清扫，删除全部命名空间中的过期条目，返回删除数量。
// 后台清扫器按间隔调用它；禁用后台清扫时可手动调用。
func (s *Store) Sweep() int {
	now := s.nowNano()
	removed := 0
	for _, ns := range s.reg.snapshot() {
		removed += s.sweepNamespace(ns, now)
	}
	return removed
}

func (s *Store) sweepNamespace(ns *namespace, now int64) int {
	// 读锁下先判断，避免无过期条目时阻塞写入
	ns.mu.RLock()
	pending := false
	for _, e := range ns.entries {
		if e.expired(now) {
			pending = true
			break
		}
	}
	ns.mu.RUnlock()
	if !pending {
		return 0
	}

	ns.mu.Lock()
	defer ns.mu.Unlock()
	n := 0
	for _, e := range ns.entries {
		if e.expired(now) {
			s.removeExpiredLocked(ns, e, expireSweep)
			n++
		}
	}
	return n
}

// Stop 停止后台清扫并注销指标回调，幂等。
// Stop 之后数据操作仍然可用，过期条目只在访问或手动 Sweep 时回收。
func (s *Store) Stop() {
	s.stopOnce.Do(func() {
		if s.sweepCancel != nil {
			s.sweepCancel()
			<-s.sweepDone
		}
		if err := s.inst.unregister(); err != nil {
			s.logger.Warn("xcache: unregister metric callback failed", slog.Any("error", err))
		}
		s.logger.Debug("xcache: store stopped")
	})
}
