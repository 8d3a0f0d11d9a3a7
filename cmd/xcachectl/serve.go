package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/omeyang/nscache/pkg/config/xconf"
	"github.com/omeyang/nscache/pkg/observability/xmetrics"
	"github.com/omeyang/nscache/pkg/storage/xcache"
)

const (
	shutdownTimeout = 5 * time.Second

	// 按命名空间导出的指标上限，避免命名空间过多时标签基数失控
	maxMetricNamespaces = 100
)

func replCommand(std stdio) *cli.Command {
	return &cli.Command{
		Name:  "repl",
		Usage: "交互模式",
		Description: `从标准输入逐行读取命令并在进程内 Store 上执行，输入 help 查看命令列表。

配置了 --config 时监视配置文件，日志级别随文件修改即时生效
（命令行 --log-level 优先）。`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "stats-cron",
				Usage: "定期输出统计日志的 cron 表达式（如 '@every 30s'），覆盖配置",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Prometheus 指标监听地址（如 :9100），覆盖配置",
			},
			&cli.BoolFlag{
				Name:  "no-prompt",
				Usage: "不输出提示符（适合管道输入）",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, loader, err := resolveSettings(cmd)
			if err != nil {
				return err
			}
			if cmd.IsSet("stats-cron") {
				s.Metrics.StatsCron = cmd.String("stats-cron")
			}
			if cmd.IsSet("metrics-addr") {
				s.Metrics.Addr = cmd.String("metrics-addr")
			}
			prompt := "xcache> "
			if cmd.Bool("no-prompt") {
				prompt = ""
			}
			return serve(ctx, std, s, serveOptions{
				loader:      loader,
				prompt:      prompt,
				pinnedLevel: cmd.IsSet(flagLogLevel),
			})
		},
	}
}

type serveOptions struct {
	loader *xconf.Loader
	prompt string
	// pinnedLevel 为 true 时命令行指定了日志级别，配置文件变化不再调整
	pinnedLevel bool
	// onReady 在全部服务启动后调用，测试用于获取监听地址
	onReady func(metricsAddr net.Addr)
}

// serve 启动 Store 与附属服务（指标端点、定时统计、配置监视），运行 REPL 直到退出。
// 任一服务失败或 REPL 退出都会取消其他服务并等待它们结束。
func serve(ctx context.Context, std stdio, s *xconf.Settings, opts serveOptions) error {
	logger, err := newLogger(s.Log, std.err)
	if err != nil {
		return &usageError{err: err}
	}
	defer func() { _ = logger.Close() }()

	var statsSchedule cron.Schedule
	if s.Metrics.StatsCron != "" {
		statsSchedule, err = cron.ParseStandard(s.Metrics.StatsCron)
		if err != nil {
			return newUsageError("invalid stats cron %q: %v", s.Metrics.StatsCron, err)
		}
	}

	var ln net.Listener
	if s.Metrics.Addr != "" {
		ln, err = net.Listen("tcp", s.Metrics.Addr)
		if err != nil {
			return fmt.Errorf("listen metrics %s: %w", s.Metrics.Addr, err)
		}
	}

	store, err := s.Cache.NewStore(xcache.WithLogger(logger.Logger))
	if err != nil {
		if ln != nil {
			_ = ln.Close()
		}
		return &usageError{err: err}
	}
	defer store.Stop()

	logger.Info("store started",
		slog.String("store_id", store.ID()),
		slog.Float64("memory_mb", s.Cache.MemoryMB),
		slog.Duration("default_ttl", s.Cache.DefaultTTL))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if ln != nil {
		handler, err := metricsHandler(store)
		if err != nil {
			_ = ln.Close()
			return err
		}
		srv := &http.Server{Handler: handler, ReadHeaderTimeout: 5 * time.Second}
		logger.Info("metrics endpoint listening", slog.String("addr", ln.Addr().String()))
		g.Go(func() error { return serveHTTP(gctx, srv, ln) })
	}

	if statsSchedule != nil {
		c := newStatsCron(store, logger.Logger, statsSchedule)
		g.Go(func() error {
			c.Start()
			<-gctx.Done()
			<-c.Stop().Done()
			return nil
		})
	}

	if opts.loader != nil && opts.loader.Path() != "" {
		w, err := opts.loader.Watch(func(next *xconf.Settings, err error) {
			if err != nil {
				logger.Warn("config reload failed, keeping previous settings", slog.Any("error", err))
				return
			}
			if opts.pinnedLevel {
				return
			}
			if logger.SetLevel(next.Log) {
				logger.Info("log level changed", slog.String("level", next.Log.Level))
			}
		})
		if err != nil {
			logger.Warn("config watch disabled", slog.Any("error", err))
		} else {
			w.StartAsync()
			g.Go(func() error {
				<-gctx.Done()
				err := w.Stop()
				w.Wait()
				return err
			})
		}
	}

	if opts.onReady != nil {
		var addr net.Addr
		if ln != nil {
			addr = ln.Addr()
		}
		opts.onReady(addr)
	}

	r := &repl{sess: newSession(store), in: std.in, out: std.out, errOut: std.err, prompt: opts.prompt}
	g.Go(func() error {
		// REPL 结束（quit 或输入结束）即整体退出
		defer cancel()
		return r.run(gctx)
	})

	err = g.Wait()
	logger.Info("store stopped", slog.String("store_id", store.ID()))
	return err
}

func metricsHandler(store *xcache.Store) (http.Handler, error) {
	reg, err := xmetrics.NewRegistry(store,
		xmetrics.WithPerNamespace(true),
		xmetrics.WithMaxNamespaces(maxMetricNamespaces),
	)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", xmetrics.Handler(reg))
	return mux, nil
}

// serveHTTP 在 ln 上运行 srv，ctx 取消时优雅关闭。
func serveHTTP(ctx context.Context, srv *http.Server, ln net.Listener) error {
	shutdownErrCh := make(chan error, 1)
	// serveDone 通知关闭 goroutine: Serve 已返回，避免启动失败时 goroutine 永久阻塞
	serveDone := make(chan struct{})

	go func() {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			shutdownErrCh <- srv.Shutdown(shutdownCtx)
		case <-serveDone:
		}
	}()

	err := srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return <-shutdownErrCh
	}
	close(serveDone)
	return fmt.Errorf("metrics server: %w", err)
}

// ============================================================================
// 定时统计
// ============================================================================

// cronLogger 把 cron 内部日志转发给 slog。
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append([]any{slog.Any("error", err)}, keysAndValues...)...)
}

// newStatsCron 创建按 schedule 输出 Store 统计日志的调度器（未启动）。
func newStatsCron(store *xcache.Store, logger *slog.Logger, schedule cron.Schedule) *cron.Cron {
	cl := cronLogger{l: logger.With("job", "stats")}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	c.Schedule(schedule, cron.FuncJob(func() { logStats(logger, store.Stats()) }))
	return c
}

func logStats(logger *slog.Logger, st xcache.Stats) {
	logger.Info("cache stats",
		slog.Int("keys", st.TotalKeys),
		slog.Int("namespaces", st.Namespaces),
		slog.Uint64("hits", st.Hits),
		slog.Uint64("misses", st.Misses),
		slog.Float64("hit_rate", st.HitRate),
		slog.Int64("used_bytes", st.UsedBytes),
		slog.Int64("max_bytes", st.MaxBytes),
		slog.Uint64("evictions", st.Evictions),
		slog.Uint64("expirations", st.Expirations),
	)
}
