package sieve

import "iter"

var _ Cache[any] = &SimpleCache[any]{}

func newSimpleCache[T any]() *SimpleCache[T] {
	return &SimpleCache[T]{
		itemIndices: make(map[string]int),
	}
}

func (c *SimpleCache[T]) GetIndex(key string) (int, bool) {
	index, ok := c.itemIndices[key]
	return index, ok
}

func (c *SimpleCache[T]) GetItem(index int) *T {
	return &c.items[index].item
}

// Register stores item under key, reusing the slot of a removed item when
// one is free.
func (c *SimpleCache[T]) Register(key string, item T) (int, error) {
	if _, exists := c.itemIndices[key]; exists {
		return -1, CacheKeyExistsError{Key: key}
	}
	var idx int
	if n := len(c.free); n > 0 {
		idx = c.free[n-1]
		c.free = c.free[:n-1]
		c.items[idx] = cacheSlot[T]{item: item, live: true}
	} else {
		idx = len(c.items)
		c.items = append(c.items, cacheSlot[T]{item: item, live: true})
	}
	c.itemIndices[key] = idx
	return idx, nil
}

func (c *SimpleCache[T]) Remove(key string) (T, bool) {
	var zero T
	idx, ok := c.itemIndices[key]
	if !ok {
		return zero, false
	}
	item := c.items[idx].item
	c.items[idx] = cacheSlot[T]{}
	c.free = append(c.free, idx)
	delete(c.itemIndices, key)
	return item, true
}

// Items yields live items in slot order.
func (c *SimpleCache[T]) Items() iter.Seq[T] {
	return func(yield func(T) bool) {
		for i := range c.items {
			if !c.items[i].live {
				continue
			}
			if !yield(c.items[i].item) {
				return
			}
		}
	}
}

func (c *SimpleCache[T]) Len() int {
	return len(c.itemIndices)
}

func (c *SimpleCache[T]) Clear() {
	c.items = nil
	c.free = nil
	c.itemIndices = make(map[string]int)
}
