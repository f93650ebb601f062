package stockroom

import (
	"iter"
)

var _ iCursor = &Cursor{}

func newCursor(query QueryNode, adm *Admin) *Cursor {
	return &Cursor{
		query: query,
		admin: adm,
		row:   -1,
	}
}

// Next advances to the next matching row. Once it returns false the cursor
// has been reset and the admin unlocked.
func (c *Cursor) Next() bool {
	if !c.initialized {
		c.initialize()
	}
	for c.archIndex < len(c.matched) {
		c.current = c.matched[c.archIndex]
		if c.row+1 < c.current.Len() {
			c.row++
			return true
		}
		c.archIndex++
		c.row = -1
	}
	c.Reset()
	return false
}

// Entities yields each matching entity along with its row in the current
// archetype. Breaking out of the loop resets the cursor.
func (c *Cursor) Entities() iter.Seq2[int, EntityID] {
	return func(yield func(int, EntityID) bool) {
		for c.Next() {
			if !yield(c.row, c.current.entities[c.row]) {
				c.Reset()
				return
			}
		}
	}
}

func (c *Cursor) initialize() {
	if c.initialized {
		return
	}
	c.matched = c.matched[:0]
	for _, arch := range c.admin.archetypes {
		if arch.Len() > 0 && c.query.Evaluate(arch) {
			c.matched = append(c.matched, arch)
		}
	}
	c.archIndex = 0
	c.row = -1
	c.current = nil
	if !c.locked {
		c.admin.Lock()
		c.locked = true
	}
	c.initialized = true
}

// Reset rewinds the cursor and releases its lock on the admin. Operations
// queued during iteration are applied here; their first error is kept for
// Err.
func (c *Cursor) Reset() {
	c.archIndex = 0
	c.row = -1
	c.current = nil
	c.matched = c.matched[:0]
	c.initialized = false
	if c.locked {
		c.locked = false
		if err := c.admin.Unlock(); err != nil && c.err == nil {
			c.err = err
		}
	}
}

// Err returns the first error raised while flushing queued operations.
func (c *Cursor) Err() error {
	return c.err
}

// CurrentEntity returns the entity under the cursor and its row.
func (c *Cursor) CurrentEntity() (EntityID, int) {
	if c.current == nil || c.row < 0 {
		return NullEntity, -1
	}
	return c.current.entities[c.row], c.row
}

// CurrentArchetype returns the archetype under the cursor, or nil.
func (c *Cursor) CurrentArchetype() Archetype {
	if c.current == nil {
		return nil
	}
	return c.current
}

func (c *Cursor) RemainingInArchetype() int {
	if c.current == nil {
		return 0
	}
	return c.current.Len() - c.row - 1
}

func (c *Cursor) TotalMatched() int {
	if !c.initialized {
		c.initialize()
	}
	total := 0
	for _, arch := range c.matched {
		total += arch.Len()
	}
	return total
}
