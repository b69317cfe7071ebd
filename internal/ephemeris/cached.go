package ephemeris

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cached memoises an expensive provider by exact evaluation time.
// Safe for concurrent use when the wrapped provider is.
type Cached struct {
	inner Provider
	cache *lru.Cache[float64, State]
}

// NewCached wraps p with an LRU of the given size.
func NewCached(p Provider, size int) (*Cached, error) {
	c, err := lru.New[float64, State](size)
	if err != nil {
		return nil, fmt.Errorf("ephemeris cache: %w", err)
	}
	return &Cached{inner: p, cache: c}, nil
}

// StateAt returns a cached state or evaluates and stores it. Non-finite
// states are not cached.
func (c *Cached) StateAt(t float64) State {
	if s, ok := c.cache.Get(t); ok {
		return s
	}
	s := c.inner.StateAt(t)
	if s.IsFinite() {
		c.cache.Add(t, s)
	}
	return s
}

// Len reports how many states are cached.
func (c *Cached) Len() int {
	return c.cache.Len()
}
