// Package xglob 提供 key 枚举使用的 glob 模式匹配。
//
// # 语法
//
//   - *：匹配任意长度（含空）的字符序列，包括 '/' 和 ':'
//   - ?：匹配恰好一个字符（按 rune 计）
//   - \：转义下一个字符，使其按字面量匹配
//
// 其他字符均按字面量匹配，大小写敏感，且必须匹配整个输入。
// 字符按 UTF-8 rune 计；非法 UTF-8 字节各自算一个字符，并按原始字节比较。
// 末尾未配对的 '\' 视为格式错误，[Compile] 返回 [ErrMalformedPattern]。
//
// # 与 path.Match 的区别
//
// path.Match / filepath.Match 的 '*' 不匹配路径分隔符，并且支持字符类 [...]。
// 缓存 key 通常形如 "user:1001" 或 "tenant/a/b"，'*' 需要跨越任意字符，
// 字符类则不在支持范围内（'[' 按字面量处理）。
//
// # 编译缓存
//
// [Cache] 基于 hashicorp/golang-lru/v2 缓存编译后的 [Pattern]，
// 适合同一模式被反复用于枚举的场景。编译失败的模式不会被缓存。
package xglob
