package xcache

import (
	"container/heap"
	"fmt"
	"sync"
)

// evictionHeap 按 seq 排序的最小堆，堆顶是全局最旧的条目。
type evictionHeap []*entry

func (h evictionHeap) Len() int { return len(h) }

func (h evictionHeap) Less(i, j int) bool { return h[i].seq < h[j].seq }

func (h evictionHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *evictionHeap) Push(x any) {
	e := x.(*entry) //nolint:errcheck // 堆中只存放 *entry
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *evictionHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil // 避免内存泄漏
	e.index = -1
	*h = old[:n-1]
	return e
}

// accountant 维护跨命名空间的淘汰索引、全局写入序号与总字节数。
//
// 不变量：条目在堆中 ⇔ 条目是其命名空间 map 中 key 对应的当前值。
// 两者总是在同时持有 ns.mu 与 accountant.mu 时一起变更。
type accountant struct {
	mu       sync.Mutex
	heap     evictionHeap
	seq      uint64
	used     int64
	maxBytes int64
}

func newAccountant(maxBytes int64) *accountant {
	return &accountant{maxBytes: maxBytes}
}

// track 登记新条目并移除被替换的旧条目（可为 nil），同时分配新的 seq。
// 调用方必须持有 e.ns.mu 写锁。
func (a *accountant) track(old, e *entry) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if old != nil {
		a.untrackLocked(old)
	}
	a.seq++
	e.seq = a.seq
	heap.Push(&a.heap, e)
	a.used += e.size
}

// untrack 移除条目。调用方必须持有 e.ns.mu 写锁。
func (a *accountant) untrack(e *entry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.untrackLocked(e)
}

// untrackAll 批量移除一个命名空间的全部条目。调用方必须持有该命名空间写锁。
func (a *accountant) untrackAll(entries map[string]*entry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, e := range entries {
		a.untrackLocked(e)
	}
}

func (a *accountant) untrackLocked(e *entry) {
	if e.index < 0 {
		return
	}
	heap.Remove(&a.heap, e.index)
	a.used -= e.size
	if a.used < 0 {
		panic(fmt.Sprintf("xcache: negative memory accounting (used=%d)", a.used))
	}
}

// victim 在总量超出上限时返回全局最旧的条目，否则返回 nil。
// 堆顶恰为 keep 时也返回 nil：刚写入的条目不会被自身的写入路径淘汰。
func (a *accountant) victim(keep *entry) *entry {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.used <= a.maxBytes || len(a.heap) == 0 {
		return nil
	}
	if top := a.heap[0]; top != keep {
		return top
	}
	return nil
}

// usage 返回当前字节数、上限与条目数。
func (a *accountant) usage() (used, maxBytes int64, entries int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.used, a.maxBytes, len(a.heap)
}
