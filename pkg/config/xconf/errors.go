package xconf

import "errors"

// 配置加载和解析相关错误。
var (
	// ErrEmptyPath 表示需要配置文件的操作没有提供路径。
	ErrEmptyPath = errors.New("xconf: empty config path")

	// ErrUnsupportedFormat 表示不支持的配置格式。
	ErrUnsupportedFormat = errors.New("xconf: unsupported config format")

	// ErrLoadFailed 表示配置文件或 .env 文件读取失败。
	ErrLoadFailed = errors.New("xconf: failed to load config")

	// ErrParseFailed 表示配置解析失败。
	ErrParseFailed = errors.New("xconf: failed to parse config")

	// ErrUnmarshalFailed 表示配置反序列化失败。
	ErrUnmarshalFailed = errors.New("xconf: failed to unmarshal config")

	// ErrEnvFailed 表示环境变量覆盖失败（如数值格式错误）。
	ErrEnvFailed = errors.New("xconf: failed to apply environment overrides")

	// ErrInvalidSettings 表示加载后的配置不合法。
	ErrInvalidSettings = errors.New("xconf: invalid settings")
)
