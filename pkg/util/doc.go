// Package util 提供通用工具相关的子包。
//
// 子包列表：
//   - xglob: Redis KEYS 风格的通配符匹配（* ? [...] 与反斜杠转义），带编译结果 LRU 缓存
package util
