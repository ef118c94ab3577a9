package memory

import (
	"container/list"
	"context"
	"sync"

	"chartfeed/internal/application/port"
	"chartfeed/internal/domain/model"
)

// DefaultCapacity bounds the number of symbols kept by LastBarCache.
const DefaultCapacity = 1024

// LastBarCache is a bounded LRU of the latest bar per full symbol name.
type LastBarCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recently used
	items    map[string]*list.Element
}

type entry struct {
	key string
	bar model.Bar
}

func NewLastBarCache(capacity int) *LastBarCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &LastBarCache{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

func (c *LastBarCache) Set(_ context.Context, fullName string, bar model.Bar) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[fullName]; ok {
		el.Value.(*entry).bar = bar
		c.order.MoveToFront(el)
		return nil
	}

	c.items[fullName] = c.order.PushFront(&entry{key: fullName, bar: bar})
	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*entry).key)
	}
	return nil
}

func (c *LastBarCache) Get(_ context.Context, fullName string) (model.Bar, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[fullName]
	if !ok {
		return model.Bar{}, false, nil
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry).bar, true, nil
}

// Len returns the number of cached symbols.
func (c *LastBarCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

var _ port.LastBarStore = (*LastBarCache)(nil)
