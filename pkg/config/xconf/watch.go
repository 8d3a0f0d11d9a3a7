package xconf

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce 默认防抖时间。
const DefaultDebounce = 100 * time.Millisecond

// WatchCallback 配置文件变更回调。
// err 非 nil 时 s 为 nil，Loader.Current 仍返回上一次成功的配置。
type WatchCallback func(s *Settings, err error)

// WatchOption 监视器配置选项。
type WatchOption func(*watchOptions)

type watchOptions struct {
	debounce time.Duration
}

// WithDebounce 设置防抖时间，在此时间内的多次变更只触发一次重载。
// d <= 0 时忽略，默认 100ms。
func WithDebounce(d time.Duration) WatchOption {
	return func(o *watchOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// Watcher 监视配置文件并在变更后重新加载。
type Watcher struct {
	loader   *Loader
	watcher  *fsnotify.Watcher
	callback WatchCallback
	debounce time.Duration
	ctx      context.Context
	cancel   context.CancelFunc

	mu      sync.Mutex
	running bool
	timer   *time.Timer // debounce 定时器，Stop() 时需要取消
	wg      sync.WaitGroup
}

// Watch 创建配置文件监视器，需要调用 Start 或 StartAsync 开始监视。
//
// 监视的是配置文件所在目录而非文件本身：
// 编辑器保存文件时可能先删除再创建，直接监视文件会丢失事件。
func (l *Loader) Watch(callback WatchCallback, opts ...WatchOption) (*Watcher, error) {
	if l.path == "" {
		return nil, fmt.Errorf("%w: nothing to watch", ErrEmptyPath)
	}

	o := &watchOptions{debounce: DefaultDebounce}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("xconf: failed to create watcher: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := fsWatcher.Add(dir); err != nil {
		closeErr := fsWatcher.Close()
		return nil, errors.Join(
			fmt.Errorf("xconf: failed to watch directory %s: %w", dir, err),
			closeErr,
		)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		loader:   l,
		watcher:  fsWatcher,
		callback: callback,
		debounce: o.debounce,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start 启动监视，阻塞直到 Stop 被调用。
func (w *Watcher) Start() {
	if !w.markRunning() {
		return
	}
	w.run()
}

// StartAsync 在后台 goroutine 中启动监视并立即返回。
func (w *Watcher) StartAsync() {
	if !w.markRunning() {
		return
	}
	go w.run()
}

func (w *Watcher) markRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running || w.ctx.Err() != nil {
		return false
	}
	w.running = true
	return true
}

// Stop 停止监视并释放 fsnotify 资源，幂等。
// 返回后不再有回调执行（正在执行的回调除外）。
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.ctx.Err() != nil {
		w.mu.Unlock()
		return nil
	}
	if w.timer != nil && w.timer.Stop() {
		// 定时器未触发，对应的 wg 计数由这里归还
		w.wg.Done()
	}
	w.timer = nil
	w.cancel()
	w.running = false
	w.mu.Unlock()

	return w.watcher.Close()
}

// Wait 等待已触发的重载回调执行完毕。
func (w *Watcher) Wait() {
	w.wg.Wait()
}

func (w *Watcher) run() {
	filename := filepath.Base(w.loader.path)

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event, filename)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if w.callback != nil {
				w.callback(nil, fmt.Errorf("xconf: watch error: %w", err))
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event, filename string) {
	if filepath.Base(event.Name) != filename {
		return
	}

	// Write: 直接修改；Create: 部分编辑器新建文件；Rename: 原子写入
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.ctx.Err() != nil {
		return
	}
	if w.timer != nil && w.timer.Stop() {
		w.wg.Done()
	}
	w.wg.Add(1)
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	defer w.wg.Done()

	select {
	case <-w.ctx.Done():
		return
	default:
	}

	s, err := w.loader.Load()
	if w.callback != nil {
		w.callback(s, err)
	}
}
