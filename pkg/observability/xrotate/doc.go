// Package xrotate 提供按大小轮转的日志文件写入器。
//
// [Rotator] 是 io.WriteCloser 加上手动 Rotate，所有实现并发安全。
// 当前唯一实现 [NewLumberjack] 基于 lumberjack v2：
// 文件超过 MaxSizeMB 时轮转，按数量与天数清理备份，可选 gzip 压缩。
//
// xcachectl 把它作为 slog handler 的输出目标：
//
//	w, err := xrotate.NewLumberjack("/var/log/xcachectl.log", xrotate.WithMaxSize(100))
//	if err != nil { ... }
//	defer w.Close()
//	logger := slog.New(slog.NewJSONHandler(w, nil))
package xrotate
