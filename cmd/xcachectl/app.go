package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/nscache/pkg/config/xconf"
)

// usageError 表示调用方式错误，run 将其映射为退出码 2。
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }

func (e *usageError) Unwrap() error { return e.err }

func newUsageError(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// onUsageError 把 CLI 选项解析错误统一标记为 usageError。
func onUsageError(_ context.Context, _ *cli.Command, err error, _ bool) error {
	return &usageError{err: err}
}

// 全局选项名。
const (
	flagConfig     = "config"
	flagEnvFile    = "env-file"
	flagMemoryMB   = "memory-mb"
	flagDefaultTTL = "default-ttl"
	flagLogLevel   = "log-level"
	flagLogFormat  = "log-format"
	flagLogFile    = "log-file"
)

func createApp(std stdio) *cli.Command {
	app := &cli.Command{
		Name:    "xcachectl",
		Usage:   "命名空间内存缓存调试工具",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Description: `xcachectl 在进程内托管一个命名空间缓存，用于交互调试、压测与配置自检。

配置优先级：命令行选项 > 环境变量 (NSCACHE_*) > .env 文件 > 配置文件 > 默认值。`,
		Reader:    std.in,
		Writer:    std.out,
		ErrWriter: std.err,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "配置文件路径（.yaml/.yml/.json）",
			},
			&cli.StringFlag{
				Name:  flagEnvFile,
				Usage: "加载 .env 文件（不覆盖已有环境变量）",
			},
			&cli.FloatFlag{
				Name:  flagMemoryMB,
				Usage: "内存上限（MB），覆盖配置",
			},
			&cli.DurationFlag{
				Name:  flagDefaultTTL,
				Usage: "默认 TTL（0 表示永不过期），覆盖配置",
			},
			&cli.StringFlag{
				Name:  flagLogLevel,
				Usage: "日志级别 (debug/info/warn/error)",
			},
			&cli.StringFlag{
				Name:  flagLogFormat,
				Usage: "日志格式 (text/json)",
			},
			&cli.StringFlag{
				Name:  flagLogFile,
				Usage: "日志文件路径，按大小轮转；为空时输出到 stderr",
			},
		},
		Commands: []*cli.Command{
			replCommand(std),
			benchCommand(std),
			statsCommand(std),
			versionCommand(std),
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			if cmd.Args().Present() {
				return newUsageError("unknown command %q, run 'xcachectl --help' for usage", cmd.Args().First())
			}
			return newUsageError("missing command, run 'xcachectl --help' for usage")
		},
		OnUsageError: onUsageError,
		// 错误统一由 run 输出，避免重复打印
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
	}
	for _, sub := range app.Commands {
		sub.OnUsageError = onUsageError
	}
	return app
}

func versionCommand(std stdio) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "显示版本信息",
		Action: func(context.Context, *cli.Command) error {
			fmt.Fprintf(std.out, "xcachectl %s\n", Version)
			fmt.Fprintf(std.out, "  commit: %s\n", GitCommit)
			fmt.Fprintf(std.out, "  built:  %s\n", BuildTime)
			return nil
		},
	}
}

// resolveSettings 加载配置文件、.env 与环境变量，再应用命令行覆盖。
// 返回的 Loader 供 repl 监视配置文件变化。
func resolveSettings(cmd *cli.Command) (*xconf.Settings, *xconf.Loader, error) {
	var opts []xconf.Option
	if f := cmd.String(flagEnvFile); f != "" {
		opts = append(opts, xconf.WithEnvFile(f))
	}

	loader, err := xconf.NewLoader(cmd.String(flagConfig), opts...)
	if err != nil {
		return nil, nil, classifyConfigError(err)
	}
	loaded, err := loader.Load()
	if err != nil {
		return nil, nil, classifyConfigError(err)
	}

	s := *loaded
	applyFlagOverrides(cmd, &s)
	if err := s.Validate(); err != nil {
		return nil, nil, &usageError{err: err}
	}
	return &s, loader, nil
}

// applyFlagOverrides 仅覆盖命令行显式设置的选项。
func applyFlagOverrides(cmd *cli.Command, s *xconf.Settings) {
	if cmd.IsSet(flagMemoryMB) {
		s.Cache.MemoryMB = cmd.Float(flagMemoryMB)
	}
	if cmd.IsSet(flagDefaultTTL) {
		s.Cache.DefaultTTL = cmd.Duration(flagDefaultTTL)
	}
	if cmd.IsSet(flagLogLevel) {
		s.Log.Level = cmd.String(flagLogLevel)
	}
	if cmd.IsSet(flagLogFormat) {
		s.Log.Format = strings.ToLower(cmd.String(flagLogFormat))
	}
	if cmd.IsSet(flagLogFile) {
		s.Log.File = cmd.String(flagLogFile)
	}
}

// classifyConfigError 区分调用方式错误（格式、取值）与运行时错误（文件读取）。
func classifyConfigError(err error) error {
	switch {
	case errors.Is(err, xconf.ErrUnsupportedFormat),
		errors.Is(err, xconf.ErrInvalidSettings),
		errors.Is(err, xconf.ErrEnvFailed):
		return &usageError{err: err}
	default:
		return err
	}
}
