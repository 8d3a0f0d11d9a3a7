package main

import (
	"io"
	"log/slog"
	"strings"

	"github.com/omeyang/nscache/pkg/config/xconf"
	"github.com/omeyang/nscache/pkg/observability/xrotate"
)

// cliLogger 持有命令使用的日志器及其动态级别。
type cliLogger struct {
	*slog.Logger
	level  *slog.LevelVar
	closer io.Closer
}

// newLogger 按日志配置创建日志器。File 非空时写入按大小轮转的文件，否则写 stderr。
func newLogger(ls xconf.LogSettings, stderr io.Writer) (*cliLogger, error) {
	lvl, err := ls.SlogLevel()
	if err != nil {
		return nil, err
	}
	level := new(slog.LevelVar)
	level.Set(lvl)

	var (
		w      = stderr
		closer io.Closer
	)
	if ls.File != "" {
		rotator, err := xrotate.NewLumberjack(ls.File,
			xrotate.WithMaxSize(ls.MaxSizeMB),
			xrotate.WithMaxBackups(ls.MaxBackups),
			xrotate.WithMaxAge(ls.MaxAgeDays),
			xrotate.WithCompress(ls.Compress),
			xrotate.WithLocalTime(true),
		)
		if err != nil {
			return nil, err
		}
		w, closer = rotator, rotator
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(ls.Format, xconf.LogFormatJSON) {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return &cliLogger{
		Logger: slog.New(handler).With("component", "xcachectl"),
		level:  level,
		closer: closer,
	}, nil
}

// SetLevel 修改日志级别，解析失败时保留原级别。
func (l *cliLogger) SetLevel(ls xconf.LogSettings) bool {
	lvl, err := ls.SlogLevel()
	if err != nil {
		return false
	}
	if l.level.Level() == lvl {
		return false
	}
	l.level.Set(lvl)
	return true
}

// Close 关闭日志文件（如有）。
func (l *cliLogger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
