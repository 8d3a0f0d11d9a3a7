package xglob

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache 缓存编译后的模式，并发安全。
type Cache struct {
	lru *lru.Cache[string, *Pattern]
}

// NewCache 创建容量为 size 的编译缓存。
// size <= 0 时返回 ErrInvalidCacheSize。
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		return nil, ErrInvalidCacheSize
	}
	l, err := lru.New[string, *Pattern](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: l}, nil
}

// Get 返回 pattern 的编译结果，未命中时编译并写入缓存。
func (c *Cache) Get(pattern string) (*Pattern, error) {
	if p, ok := c.lru.Get(pattern); ok {
		return p, nil
	}
	p, err := Compile(pattern)
	if err != nil {
		return nil, err
	}
	c.lru.Add(pattern, p)
	return p, nil
}

// Len 返回已缓存的模式数量。
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Purge 清空缓存。
func (c *Cache) Purge() {
	c.lru.Purge()
}
