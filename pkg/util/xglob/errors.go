package xglob

import "errors"

var (
	// ErrMalformedPattern 表示模式格式错误（如末尾存在未配对的转义符）。
	ErrMalformedPattern = errors.New("xglob: malformed pattern")

	// ErrInvalidCacheSize 表示编译缓存容量无效。
	ErrInvalidCacheSize = errors.New("xglob: cache size must be greater than 0")
)
