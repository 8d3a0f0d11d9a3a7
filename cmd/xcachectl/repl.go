package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/omeyang/nscache/pkg/storage/xcache"
)

// 交互命令的错误。
var (
	errUnknownCommand = errors.New("unknown command")
	errArgCount       = errors.New("wrong number of arguments")
	errInvalidTTL     = errors.New("invalid ttl")
)

const nilReply = "(nil)"

// maxTTLSeconds 是可表示为 time.Duration 的最大秒数。
const maxTTLSeconds = math.MaxInt64 / int64(time.Second)

// replCmd 描述一个交互命令。maxArgs 为 -1 表示不限。
type replCmd struct {
	usage   string
	summary string
	minArgs int
	maxArgs int
	run     func(s *session, args []string) (string, error)
}

// session 在一个 Store 上执行交互命令。
type session struct {
	store    *xcache.Store
	commands map[string]replCmd
}

func newSession(store *xcache.Store) *session {
	s := &session{store: store}
	s.commands = map[string]replCmd{
		"set":     {"set <ns> <key> <value> [ttl]", "写入，ttl 为秒数或时长（如 30s）", 3, 4, (*session).set},
		"get":     {"get <ns> <key>", "读取", 2, 2, (*session).get},
		"del":     {"del <ns> <key>", "删除，返回 1 表示删除了未过期的 key", 2, 2, (*session).del},
		"has":     {"has <ns> <key>", "检查存在（不计入命中统计）", 2, 2, (*session).has},
		"exists":  {"exists <ns> <key>", "同 has", 2, 2, (*session).has},
		"ttl":     {"ttl <ns> <key>", "剩余秒数，-1 表示永不过期", 2, 2, (*session).ttl},
		"expire":  {"expire <ns> <key> <ttl>", "重设过期时间，0 表示永不过期", 3, 3, (*session).expire},
		"persist": {"persist <ns> <key>", "移除过期时间", 2, 2, (*session).persist},
		"keys":    {"keys <ns> [pattern]", "按通配符列出 key（默认 *）", 1, 2, (*session).keys},
		"mget":    {"mget <ns> <key>...", "批量读取", 2, -1, (*session).mget},
		"mdel":    {"mdel <ns> <key>...", "批量删除，返回删除数量", 2, -1, (*session).mdel},
		"clear":   {"clear [ns]", "清空命名空间或全部数据", 0, 1, (*session).clear},
		"stats":   {"stats [ns]", "全局或命名空间统计（JSON）", 0, 1, (*session).stats},
		"sweep":   {"sweep", "立即清扫过期 key，返回清理数量", 0, 0, (*session).sweep},
		"help":    {"help", "显示帮助", 0, 0, (*session).help},
	}
	return s
}

// exec 执行一条已分词的命令。
func (s *session) exec(parts []string) (string, error) {
	name := strings.ToLower(parts[0])
	c, ok := s.commands[name]
	if !ok {
		return "", fmt.Errorf("%w %q, type 'help' for a list", errUnknownCommand, parts[0])
	}
	args := parts[1:]
	if len(args) < c.minArgs || (c.maxArgs >= 0 && len(args) > c.maxArgs) {
		return "", fmt.Errorf("%w, usage: %s", errArgCount, c.usage)
	}
	return c.run(s, args)
}

func (s *session) set(args []string) (string, error) {
	ttl := xcache.DefaultExpiration
	if len(args) == 4 {
		d, err := parseTTL(args[3])
		if err != nil {
			return "", err
		}
		ttl = d
	}
	if err := s.store.Set(args[0], args[1], []byte(args[2]), ttl); err != nil {
		return "", err
	}
	return "OK", nil
}

func (s *session) get(args []string) (string, error) {
	v, ok := s.store.Get(args[0], args[1])
	if !ok {
		return nilReply, nil
	}
	return string(v), nil
}

func (s *session) del(args []string) (string, error) {
	return boolReply(s.store.Delete(args[0], args[1])), nil
}

func (s *session) has(args []string) (string, error) {
	return boolReply(s.store.Has(args[0], args[1])), nil
}

func (s *session) ttl(args []string) (string, error) {
	secs, ok := s.store.TTL(args[0], args[1])
	if !ok {
		return nilReply, nil
	}
	return strconv.FormatInt(secs, 10), nil
}

func (s *session) expire(args []string) (string, error) {
	d, err := parseTTL(args[2])
	if err != nil {
		return "", err
	}
	ok, err := s.store.Expire(args[0], args[1], d)
	if err != nil {
		return "", err
	}
	return boolReply(ok), nil
}

func (s *session) persist(args []string) (string, error) {
	return boolReply(s.store.Persist(args[0], args[1])), nil
}

func (s *session) keys(args []string) (string, error) {
	pattern := "*"
	if len(args) == 2 {
		pattern = args[1]
	}
	keys, err := s.store.Keys(args[0], pattern)
	if err != nil {
		return "", err
	}
	if len(keys) == 0 {
		return "(empty)", nil
	}
	return strings.Join(keys, "\n"), nil
}

func (s *session) mget(args []string) (string, error) {
	results := s.store.MGet(args[0], args[1:])
	lines := make([]string, 0, len(results))
	for _, r := range results {
		v := nilReply
		if r.Found {
			v = string(r.Value)
		}
		lines = append(lines, r.Key+": "+v)
	}
	return strings.Join(lines, "\n"), nil
}

func (s *session) mdel(args []string) (string, error) {
	return strconv.Itoa(s.store.MDelete(args[0], args[1:])), nil
}

func (s *session) clear(args []string) (string, error) {
	if len(args) == 1 {
		return boolReply(s.store.ClearNamespace(args[0])), nil
	}
	s.store.Clear()
	return "OK", nil
}

func (s *session) stats(args []string) (string, error) {
	var v any
	if len(args) == 1 {
		st, ok := s.store.InstanceStats(args[0])
		if !ok {
			return nilReply, nil
		}
		v = st
	} else {
		v = s.store.Stats()
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *session) sweep([]string) (string, error) {
	return strconv.Itoa(s.store.Sweep()), nil
}

func (s *session) help([]string) (string, error) {
	names := make([]string, 0, len(s.commands))
	for name := range s.commands {
		names = append(names, name)
	}
	slices.Sort(names)

	var b strings.Builder
	b.WriteString("可用命令:\n")
	for _, name := range names {
		c := s.commands[name]
		fmt.Fprintf(&b, "  %-32s %s\n", c.usage, c.summary)
	}
	b.WriteString("  quit | exit                      退出")
	return b.String(), nil
}

func boolReply(ok bool) string {
	if ok {
		return "1"
	}
	return "0"
}

// parseTTL 解析 TTL：纯整数按秒计算，否则按 time.ParseDuration 解析。
// 负值原样交给 Store 校验，超出 time.Duration 范围的秒数视为无效。
func parseTTL(s string) (time.Duration, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	switch {
	case err == nil && n >= -maxTTLSeconds && n <= maxTTLSeconds:
		return time.Duration(n) * time.Second, nil
	case err == nil, errors.Is(err, strconv.ErrRange):
		return 0, fmt.Errorf("%w %q: at most %d seconds", errInvalidTTL, s, maxTTLSeconds)
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w %q: use seconds or a duration like 1m30s", errInvalidTTL, s)
	}
	return d, nil
}

// ============================================================================
// REPL 循环
// ============================================================================

// repl 把输入行分派给 session，结果写 out，错误写 errOut。
type repl struct {
	sess   *session
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	prompt string
}

// startInputReader 启动输入读取 goroutine。
// 设计决策: inputCh 无缓冲，使用 select 保护发送，
// 防止 context 取消后 goroutine 在 inputCh 发送端永久阻塞。
func startInputReader(ctx context.Context, in io.Reader) (<-chan string, <-chan error) {
	inputCh := make(chan string)
	errCh := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(in)
		// 允许较大的 value
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			select {
			case inputCh <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case errCh <- err:
			default:
			}
		}
		close(inputCh)
	}()

	return inputCh, errCh
}

// run 运行 REPL 循环，直到 quit、输入结束或 ctx 取消。
// 使用 goroutine + channel 实现可取消的输入读取，确保 Ctrl+C 能立即退出。
func (r *repl) run(ctx context.Context) error {
	inputCh, errCh := startInputReader(ctx, r.in)

	for {
		if r.prompt != "" {
			fmt.Fprint(r.out, r.prompt)
		}

		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return fmt.Errorf("读取输入错误: %w", err)
		case line, ok := <-inputCh:
			if !ok {
				return nil
			}
			if r.processLine(strings.TrimSpace(line)) {
				return nil
			}
		}
	}
}

// processLine 处理单行输入，返回 true 表示应该退出。
func (r *repl) processLine(line string) bool {
	if line == "" || strings.HasPrefix(line, "#") {
		return false
	}
	if line == "quit" || line == "exit" {
		return true
	}

	parts := parseCommandLine(line)
	if len(parts) == 0 {
		return false
	}

	out, err := r.sess.exec(parts)
	if err != nil {
		fmt.Fprintf(r.errOut, "(error) %v\n", err)
		return false
	}
	fmt.Fprintln(r.out, out)
	return false
}

// parseCommandLine 解析命令行，支持引号和反斜杠转义。
func parseCommandLine(line string) []string {
	var (
		parts     []string
		current   strings.Builder
		inQuote   bool
		quoteChar rune
		escaped   bool
		// quoted 记录当前词是否来自引号，使 "" 产生空字符串参数
		quoted bool
	)

	flush := func() {
		if current.Len() > 0 || quoted {
			parts = append(parts, current.String())
			current.Reset()
		}
		quoted = false
	}

	for _, r := range line {
		if escaped {
			current.WriteRune(r)
			escaped = false
			continue
		}

		if r == '\\' {
			escaped = true
			continue
		}

		switch {
		case isQuoteStart(r, inQuote):
			inQuote = true
			quoted = true
			quoteChar = r
		case isQuoteEnd(r, quoteChar, inQuote):
			inQuote = false
			quoteChar = 0
		case isWordSeparator(r, inQuote):
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()

	return parts
}

func isQuoteStart(r rune, inQuote bool) bool {
	return (r == '"' || r == '\'') && !inQuote
}

func isQuoteEnd(r, quoteChar rune, inQuote bool) bool {
	return r == quoteChar && inQuote
}

// 设计决策: 仅空格作为分词符，Tab 保留为 value 的一部分。
func isWordSeparator(r rune, inQuote bool) bool {
	return r == ' ' && !inQuote
}
