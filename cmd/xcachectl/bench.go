package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/nscache/pkg/config/xconf"
	"github.com/omeyang/nscache/pkg/storage/xcache"
)

// benchReport 是 bench 命令的输出。
type benchReport struct {
	Count      int           `json:"count"`
	ValueSize  int           `json:"value_size"`
	Namespaces int           `json:"namespaces"`
	Elapsed    time.Duration `json:"elapsed_ns"`
	OpsPerSec  float64       `json:"ops_per_sec"`
	Retained   int           `json:"retained"`
	Stats      xcache.Stats  `json:"stats"`
}

func benchCommand(std stdio) *cli.Command {
	return &cli.Command{
		Name:  "bench",
		Usage: "写入大量数据并输出统计",
		Description: `按轮转顺序向 M 个命名空间写入 N 个 S 字节的值，随后读回全部 key，
最后以 JSON 输出耗时与 Store 统计。内存上限较小时可观察全局最旧淘汰。`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"n"},
				Value:   10000,
				Usage:   "写入数量",
			},
			&cli.IntFlag{
				Name:  "size",
				Value: 256,
				Usage: "每个值的字节数",
			},
			&cli.IntFlag{
				Name:  "namespaces",
				Value: 4,
				Usage: "命名空间数量",
			},
			&cli.DurationFlag{
				Name:  "ttl",
				Value: 0,
				Usage: "写入 TTL，0 使用默认 TTL",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			count, size, namespaces := cmd.Int("count"), cmd.Int("size"), cmd.Int("namespaces")
			if count <= 0 || size < 0 || namespaces <= 0 {
				return newUsageError("count and namespaces must be positive and size must not be negative")
			}
			ttl := cmd.Duration("ttl")
			if ttl < 0 {
				return newUsageError("ttl must not be negative, got %s", ttl)
			}
			if ttl == 0 {
				ttl = xcache.DefaultExpiration
			}

			s, _, err := resolveSettings(cmd)
			if err != nil {
				return err
			}
			logger, err := newLogger(s.Log, std.err)
			if err != nil {
				return &usageError{err: err}
			}
			defer func() { _ = logger.Close() }()

			store, err := s.Cache.NewStore(xcache.WithLogger(logger.Logger))
			if err != nil {
				return &usageError{err: err}
			}
			defer store.Stop()

			report, err := runBench(store, count, size, namespaces, ttl)
			if err != nil {
				return err
			}
			logger.Debug("bench finished", slog.Duration("elapsed", report.Elapsed))

			enc := json.NewEncoder(std.out)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}

// runBench 执行写入与回读，返回报告。
func runBench(store *xcache.Store, count, size, namespaces int, ttl time.Duration) (benchReport, error) {
	value := make([]byte, size)
	for i := range value {
		value[i] = byte('a' + i%26)
	}
	nsNames := make([]string, namespaces)
	for i := range nsNames {
		nsNames[i] = "bench-" + strconv.Itoa(i)
	}

	start := time.Now()
	for i := range count {
		if err := store.Set(nsNames[i%namespaces], "key-"+strconv.Itoa(i), value, ttl); err != nil {
			return benchReport{}, fmt.Errorf("set #%d: %w", i, err)
		}
	}
	retained := 0
	for i := range count {
		if _, ok := store.Get(nsNames[i%namespaces], "key-"+strconv.Itoa(i)); ok {
			retained++
		}
	}
	elapsed := time.Since(start)

	var opsPerSec float64
	if secs := elapsed.Seconds(); secs > 0 {
		opsPerSec = float64(2*count) / secs
	}
	return benchReport{
		Count:      count,
		ValueSize:  size,
		Namespaces: namespaces,
		Elapsed:    elapsed,
		OpsPerSec:  opsPerSec,
		Retained:   retained,
		Stats:      store.Stats(),
	}, nil
}

func statsCommand(std stdio) *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "输出按当前配置创建的空 Store 的统计（JSON）",
		Action: func(_ context.Context, cmd *cli.Command) error {
			s, _, err := resolveSettings(cmd)
			if err != nil {
				return err
			}
			store, err := s.Cache.NewStore(
				xcache.WithLogger(slog.New(slog.DiscardHandler)),
				xcache.WithSweepInterval(0),
			)
			if err != nil {
				return &usageError{err: err}
			}
			defer store.Stop()

			out := struct {
				Settings *xconf.Settings `json:"settings"`
				Stats    xcache.Stats    `json:"stats"`
			}{
				Settings: s,
				Stats:    store.Stats(),
			}
			enc := json.NewEncoder(std.out)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}
