package xglob

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

type tokenKind uint8

const (
	tokLiteral tokenKind = iota
	tokAny               // ?
	tokStar              // *
)

// token 的 lit 保存一个字符单元的原始字节：合法 UTF-8 序列按 rune 切分，
// 非法字节各自成为一个单元，因此任意字节的 key 都能精确匹配。
type token struct {
	kind tokenKind
	lit  string
}

// unitLen 返回 s 开头一个字符单元的字节数，非法 UTF-8 字节计为 1。
func unitLen(s string) int {
	_, size := utf8.DecodeRuneInString(s)
	return size
}

// Pattern 是编译后的 glob 模式，可被多个 goroutine 并发使用。
type Pattern struct {
	raw    string
	tokens []token

	// isLiteral 标记模式不含通配符，此时直接做字符串比较。
	isLiteral bool
	literal   string

	// matchAll 标记模式仅由 '*' 组成。
	matchAll bool
}

// Compile 编译 glob 模式。
// 连续的 '*' 会被折叠为一个。
func Compile(pattern string) (*Pattern, error) {
	p := &Pattern{raw: pattern}
	var lit strings.Builder
	wild := false

	for i := 0; i < len(pattern); {
		size := unitLen(pattern[i:])
		unit := pattern[i : i+size]
		i += size
		switch unit {
		case "\\":
			if i >= len(pattern) {
				return nil, fmt.Errorf("%w: trailing escape in %q", ErrMalformedPattern, pattern)
			}
			n := unitLen(pattern[i:])
			next := pattern[i : i+n]
			i += n
			p.tokens = append(p.tokens, token{kind: tokLiteral, lit: next})
			lit.WriteString(next)
		case "*":
			wild = true
			if len(p.tokens) > 0 && p.tokens[len(p.tokens)-1].kind == tokStar {
				continue
			}
			p.tokens = append(p.tokens, token{kind: tokStar})
		case "?":
			wild = true
			p.tokens = append(p.tokens, token{kind: tokAny})
		default:
			p.tokens = append(p.tokens, token{kind: tokLiteral, lit: unit})
			lit.WriteString(unit)
		}
	}

	if !wild {
		p.isLiteral = true
		p.literal = lit.String()
	}
	p.matchAll = len(p.tokens) == 1 && p.tokens[0].kind == tokStar
	return p, nil
}

// MustCompile 与 Compile 相同，但失败时 panic。
// 仅用于包级变量等模式为常量的场景。
func MustCompile(pattern string) *Pattern {
	p, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

// Match 编译 pattern 并匹配 s。
// 需要反复匹配同一模式时应使用 [Compile] 或 [Cache]。
func Match(pattern, s string) (bool, error) {
	p, err := Compile(pattern)
	if err != nil {
		return false, err
	}
	return p.Match(s), nil
}

// String 返回原始模式字符串。
func (p *Pattern) String() string {
	return p.raw
}

// MatchAll 报告模式是否匹配任意输入。
func (p *Pattern) MatchAll() bool {
	return p.matchAll
}

// Match 报告 s 是否完整匹配模式。
//
// 采用单星号回溯算法：遇到 '*' 时记录回溯点，后续失配时让该 '*'
// 多吞一个字符再继续，时间复杂度 O(len(s) * len(tokens))，无递归。
func (p *Pattern) Match(s string) bool {
	if p.matchAll {
		return true
	}
	if p.isLiteral {
		return s == p.literal
	}

	ti, si := 0, 0
	starTi, starSi := -1, 0
	for si < len(s) {
		size := unitLen(s[si:])
		if ti < len(p.tokens) {
			t := p.tokens[ti]
			if t.kind == tokStar {
				starTi, starSi = ti, si
				ti++
				continue
			}
			if t.kind == tokAny || t.lit == s[si:si+size] {
				ti++
				si += size
				continue
			}
		}
		if starTi < 0 {
			return false
		}
		starSi += unitLen(s[starSi:])
		si = starSi
		ti = starTi + 1
	}

	for ti < len(p.tokens) && p.tokens[ti].kind == tokStar {
		ti++
	}
	return ti == len(p.tokens)
}
