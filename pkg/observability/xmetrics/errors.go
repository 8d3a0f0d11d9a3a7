package xmetrics

import "errors"

var (
	// ErrNilSource 表示没有提供统计来源。
	ErrNilSource = errors.New("xmetrics: nil stats source")

	// ErrInvalidNamespace 表示指标前缀不是合法的 Prometheus 名称。
	ErrInvalidNamespace = errors.New("xmetrics: invalid metric namespace")
)
