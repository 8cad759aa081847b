package utils

// Cycle hands out the elements of a fixed list one at a time, starting over
// after the last element.
type Cycle[T any] struct {
	items []T
	idx   int
}

// NewCycle creates a cycle over a copy of items.
func NewCycle[T any](items []T) *Cycle[T] {
	c := &Cycle[T]{items: make([]T, len(items))}
	copy(c.items, items)
	return c
}

// Next returns the current element and advances the cursor. An empty cycle
// returns the zero value and false.
func (c *Cycle[T]) Next() (T, bool) {
	if len(c.items) == 0 {
		var zero T
		return zero, false
	}
	v := c.items[c.idx]
	c.idx = (c.idx + 1) % len(c.items)
	return v, true
}

// Len returns the number of elements in one full cycle.
func (c *Cycle[T]) Len() int {
	return len(c.items)
}

// Reset moves the cursor back to the first element.
func (c *Cycle[T]) Reset() {
	c.idx = 0
}
