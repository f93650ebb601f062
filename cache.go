package stockroom

import (
	"fmt"
	"iter"
)

var _ Cache[any] = &SimpleCache[any]{}

func (c *SimpleCache[T]) GetIndex(key string) (int, bool) {
	index, ok := c.itemIndices[key]
	return index, ok
}

func (c *SimpleCache[T]) GetItem(index int) *T {
	return &c.items[index]
}

func (c *SimpleCache[T]) GetItem32(index uint32) *T {
	return &c.items[index]
}

// Register stores item under key and returns its index. Indices stay valid
// until Clear.
func (c *SimpleCache[T]) Register(key string, item T) (int, error) {
	if idx, ok := c.itemIndices[key]; ok {
		c.items[idx] = item
		return idx, nil
	}
	if len(c.itemIndices) >= c.maxCapacity {
		return -1, fmt.Errorf("cache at maximum capacity (%d)", c.maxCapacity)
	}

	idx := len(c.items)
	c.itemIndices[key] = idx
	c.items = append(c.items, item)
	return idx, nil
}

// All yields every cached item in registration order.
func (c *SimpleCache[T]) All() iter.Seq2[int, *T] {
	return func(yield func(int, *T) bool) {
		for i := range c.items {
			if !yield(i, &c.items[i]) {
				return
			}
		}
	}
}

func (c *SimpleCache[T]) Len() int {
	return len(c.items)
}

func (c *SimpleCache[T]) Clear() {
	clear(c.items)
	c.items = c.items[:0]
	clear(c.itemIndices)
}
