package xconf

import (
	"fmt"
	"os"
	"sync"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix 环境变量覆盖的默认前缀。
const DefaultEnvPrefix = "NSCACHE"

// Option 定义配置加载选项。
type Option func(*options)

type options struct {
	delim     string
	tag       string
	envPrefix string
	useEnv    bool
	envFile   string
}

func defaultOptions() *options {
	return &options{
		delim:     ".",
		tag:       "koanf",
		envPrefix: DefaultEnvPrefix,
		useEnv:    true,
	}
}

// WithDelim 设置配置键分隔符，默认为 "."，空字符串会被忽略。
func WithDelim(delim string) Option {
	return func(o *options) {
		if delim != "" {
			o.delim = delim
		}
	}
}

// WithTag 设置反序列化使用的结构体标签名，默认为 "koanf"，空字符串会被忽略。
func WithTag(tag string) Option {
	return func(o *options) {
		if tag != "" {
			o.tag = tag
		}
	}
}

// WithEnvPrefix 设置环境变量前缀，默认为 "NSCACHE"。
func WithEnvPrefix(prefix string) Option {
	return func(o *options) {
		o.envPrefix = prefix
	}
}

// WithoutEnv 关闭环境变量覆盖。
func WithoutEnv() Option {
	return func(o *options) {
		o.useEnv = false
	}
}

// WithEnvFile 在应用环境变量覆盖前加载 .env 文件。
// 文件中的变量不会覆盖进程中已存在的同名环境变量。
func WithEnvFile(path string) Option {
	return func(o *options) {
		o.envFile = path
	}
}

// Loader 按固定顺序合并默认值、配置文件、.env 文件与环境变量。
//
// 并发安全：Load 可在 Watcher 回调与调用方之间并发执行，
// 最近一次成功的结果可通过 Current 读取。
type Loader struct {
	path   string
	format Format
	opts   *options

	// loadMu 串行化 Load，避免旧结果覆盖新结果
	loadMu  sync.Mutex
	mu      sync.RWMutex
	current *Settings
}

// NewLoader 创建 Loader。path 为空时只使用默认值与环境变量。
// 根据文件扩展名检测格式（.yaml/.yml 或 .json）。
func NewLoader(path string, opts ...Option) (*Loader, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	l := &Loader{path: path, opts: o}
	if path != "" {
		format, err := DetectFormat(path)
		if err != nil {
			return nil, err
		}
		l.format = format
	}
	return l, nil
}

// Load 从默认值开始合并全部来源、校验并保存结果。
func Load(path string, opts ...Option) (*Settings, error) {
	l, err := NewLoader(path, opts...)
	if err != nil {
		return nil, err
	}
	return l.Load()
}

// LoadBytes 从字节数据加载配置，需要显式指定格式。空数据等同于没有配置文件。
func LoadBytes(data []byte, format Format, opts ...Option) (*Settings, error) {
	if !isValidFormat(format) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	l, err := NewLoader("", opts...)
	if err != nil {
		return nil, err
	}
	return l.load(data, format)
}

// Path 返回配置文件路径。
func (l *Loader) Path() string { return l.path }

// Current 返回最近一次成功加载的配置，尚未成功加载时返回 nil。
func (l *Loader) Current() *Settings {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// Load 重新读取全部来源。失败时保留上一次成功的结果。
func (l *Loader) Load() (*Settings, error) {
	l.loadMu.Lock()
	defer l.loadMu.Unlock()

	var data []byte
	if l.path != "" {
		b, err := os.ReadFile(l.path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
		}
		data = b
	}

	s, err := l.load(data, l.format)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.current = s
	l.mu.Unlock()
	return s, nil
}

func (l *Loader) load(data []byte, format Format) (*Settings, error) {
	s := Defaults()

	if len(data) > 0 {
		k := koanf.New(l.opts.delim)
		if err := loadData(k, data, format); err != nil {
			return nil, err
		}
		// mapstructure 只覆盖出现在配置中的字段，其余保留默认值
		if err := k.UnmarshalWithConf("", &s, koanf.UnmarshalConf{Tag: l.opts.tag}); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnmarshalFailed, err)
		}
	}

	if l.opts.envFile != "" {
		if err := godotenv.Load(l.opts.envFile); err != nil {
			return nil, fmt.Errorf("%w: env file %s: %w", ErrLoadFailed, l.opts.envFile, err)
		}
	}

	if l.opts.useEnv {
		if err := envconfig.Process(l.opts.envPrefix, &s); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEnvFailed, err)
		}
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}
