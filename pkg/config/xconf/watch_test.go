package xconf

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch_ReloadsOnChange(t *testing.T) {
	path := writeFile(t, "nscache.yaml", "log:\n  level: info\n")

	l, err := NewLoader(path, WithoutEnv())
	require.NoError(t, err)
	_, err = l.Load()
	require.NoError(t, err)

	var mu sync.Mutex
	var levels []string
	var lastErr error
	w, err := l.Watch(func(s *Settings, err error) {
		mu.Lock()
		defer mu.Unlock()
		lastErr = err
		if s != nil {
			levels = append(levels, s.Log.Level)
		}
	}, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	w.StartAsync()
	defer func() { _ = w.Stop() }()

	// 等待监视器启动
	time.Sleep(50 * time.Millisecond)
	writeOver(t, path, "log:\n  level: debug\n")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(levels) > 0 && levels[len(levels)-1] == "debug"
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.NoError(t, lastErr)
	mu.Unlock()
	assert.Equal(t, "debug", l.Current().Log.Level)
}

func TestWatch_InvalidContentKeepsCurrent(t *testing.T) {
	path := writeFile(t, "nscache.yaml", "log:\n  level: warn\n")

	l, err := NewLoader(path, WithoutEnv())
	require.NoError(t, err)
	_, err = l.Load()
	require.NoError(t, err)

	errCh := make(chan error, 8)
	w, err := l.Watch(func(_ *Settings, err error) {
		if err != nil {
			select {
			case errCh <- err:
			default:
			}
		}
	}, WithDebounce(10*time.Millisecond))
	require.NoError(t, err)
	w.StartAsync()
	defer func() { _ = w.Stop() }()

	time.Sleep(50 * time.Millisecond)
	writeOver(t, path, "log:\n  level: [\n")

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrParseFailed)
	case <-time.After(2 * time.Second):
		t.Fatal("expected reload error")
	}
	assert.Equal(t, "warn", l.Current().Log.Level)
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	path := writeFile(t, "nscache.yaml", "log:\n  level: info\n")
	l, err := NewLoader(path, WithoutEnv())
	require.NoError(t, err)

	var mu sync.Mutex
	calls := 0
	w, err := l.Watch(func(*Settings, error) {
		mu.Lock()
		calls++
		mu.Unlock()
	}, WithDebounce(10*time.Millisecond))
	require.NoError(t, err)
	w.StartAsync()
	defer func() { _ = w.Stop() }()

	time.Sleep(50 * time.Millisecond)
	writeOver(t, path+".bak", "anything")
	time.Sleep(100 * time.Millisecond)
	w.Wait()

	mu.Lock()
	assert.Zero(t, calls)
	mu.Unlock()
}

func TestWatch_NoPath(t *testing.T) {
	l, err := NewLoader("", WithoutEnv())
	require.NoError(t, err)

	_, err = l.Watch(nil)
	assert.ErrorIs(t, err, ErrEmptyPath)
}

func TestWatch_StopIdempotent(t *testing.T) {
	path := writeFile(t, "nscache.yaml", "")
	l, err := NewLoader(path, WithoutEnv())
	require.NoError(t, err)

	w, err := l.Watch(nil)
	require.NoError(t, err)
	w.StartAsync()
	w.StartAsync()

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	// 停止后不能再次启动
	w.StartAsync()
	w.Wait()
}

func TestWatch_StopInsideCallback(t *testing.T) {
	path := writeFile(t, "nscache.yaml", "log:\n  level: info\n")
	l, err := NewLoader(path, WithoutEnv())
	require.NoError(t, err)

	done := make(chan struct{})
	var w *Watcher
	var once sync.Once
	w, err = l.Watch(func(*Settings, error) {
		once.Do(func() {
			assert.NoError(t, w.Stop())
			close(done)
		})
	}, WithDebounce(10*time.Millisecond))
	require.NoError(t, err)
	w.StartAsync()

	time.Sleep(50 * time.Millisecond)
	writeOver(t, path, "log:\n  level: error\n")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		_ = w.Stop()
		t.Fatal("callback not invoked")
	}
	w.Wait()
}
