// xcachectl 在进程内托管一个 xcache.Store，用于交互调试、压测与配置自检。
//
// 用法:
//
//	xcachectl [全局选项] <命令> [命令参数]
//
// 全局选项:
//
//	-c, --config       配置文件路径（.yaml/.yml/.json）
//	    --env-file     加载 .env 文件（不覆盖已有环境变量）
//	    --memory-mb    内存上限（MB），覆盖配置
//	    --default-ttl  默认 TTL，覆盖配置
//	    --log-level    日志级别 (debug/info/warn/error)
//	    --log-format   日志格式 (text/json)
//	    --log-file     日志文件，按大小轮转；为空时输出到 stderr
//
// 命令:
//
//	repl      交互模式：set/get/del/keys/mget/stats 等
//	bench     写入大量数据并输出统计（观察淘汰行为）
//	stats     输出按当前配置创建的空 Store 的统计（JSON）
//	version   显示版本信息
//
// 优先级：命令行选项 > 环境变量 (NSCACHE_*) > .env 文件 > 配置文件 > 默认值。
//
// 退出码:
//
//	0: 执行成功
//	1: 执行失败
//	2: 参数错误（未知命令、无效选项、配置不合法等）
//
// 示例:
//
//	xcachectl repl                                   # 使用默认配置进入交互模式
//	xcachectl -c nscache.yaml repl --metrics-addr :9100
//	xcachectl --memory-mb 1 bench --count 50000      # 观察小上限下的淘汰
//	xcachectl --env-file .env stats
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// 版本信息（可通过 -ldflags 注入，例如:
//
//	go build -ldflags "-X main.Version=1.0.0 -X main.GitCommit=$(git rev-parse --short HEAD) -X main.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// ）。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// 退出码。
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// stdio 汇总命令使用的输入输出，测试中替换为内存缓冲。
type stdio struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	setupSignalHandler(cancel)

	code := run(ctx, os.Args, stdio{in: os.Stdin, out: os.Stdout, err: os.Stderr})
	cancel()
	os.Exit(code)
}

// run 执行 CLI 并把错误映射为退出码。
func run(ctx context.Context, args []string, std stdio) int {
	app := createApp(std)

	if err := app.Run(ctx, args); err != nil {
		var usageErr *usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(std.err, "参数错误: %v\n", usageErr)
			return exitUsage
		}
		fmt.Fprintf(std.err, "错误: %v\n", err)
		return exitFailure
	}
	return exitOK
}

// setupSignalHandler 设置信号处理。
// 设计决策: 第一次信号优雅取消，第二次信号强制退出（退出码 130 = 128 + SIGINT）。
// 当命令阻塞时，用户可通过再次 Ctrl+C 强制退出。
func setupSignalHandler(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()

		<-sigCh
		signal.Stop(sigCh)
		os.Exit(130)
	}()
}
