package xcache

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument 表示参数无效（如负数 TTL、非正的内存上限）。
	ErrInvalidArgument = errors.New("xcache: invalid argument")

	// ErrInvalidPattern 表示 key 枚举模式格式错误。
	// errors.Is(err, ErrInvalidArgument) 同样成立。
	ErrInvalidPattern = fmt.Errorf("%w: malformed key pattern", ErrInvalidArgument)

	// ErrInvalidShardCount 表示分片数不是 2 的幂或超出上限。
	ErrInvalidShardCount = fmt.Errorf("%w: invalid shard count", ErrInvalidArgument)

	// ErrEntryTooLarge 表示单个条目的估算大小超过整个内存上限。
	// 仅在启用 WithRejectOversize 时返回。
	ErrEntryTooLarge = errors.New("xcache: entry exceeds memory ceiling")
)
