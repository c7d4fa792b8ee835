package sieve

import (
	"iter"
)

var _ iCursor = &Cursor{}

// NewCursor registers the query for terms and returns a cursor over it.
func (w *World) NewCursor(terms ...any) (*Cursor, error) {
	q, err := w.RegisterQuery(terms...)
	if err != nil {
		return nil, err
	}
	return newCursor(w, q), nil
}

func newCursor(w *World, q *Query) *Cursor {
	return &Cursor{
		world: w,
		query: q,
	}
}

// Next advances to the following entity. The first call of a pass commits
// pending removals, so entities removed mid-pass are still visited.
func (c *Cursor) Next() bool {
	if !c.initialized {
		c.initialize()
	}
	if c.index < c.query.dense.len() {
		c.index++
		return true
	}
	c.Reset()
	return false
}

// Entity returns the entity under the cursor after a successful Next.
func (c *Cursor) Entity() EID {
	return c.query.dense.dense[c.index-1]
}

func (c *Cursor) Entities() iter.Seq2[int, EID] {
	return func(yield func(int, EID) bool) {
		c.initialize()
		for c.index < c.query.dense.len() {
			eid := c.query.dense.dense[c.index]
			c.index++
			if !yield(c.index-1, eid) {
				c.Reset()
				return
			}
		}
		c.Reset()
	}
}

func (c *Cursor) initialize() {
	if c.initialized {
		return
	}
	c.world.CommitRemovals()
	c.index = 0
	c.remaining = c.query.dense.len()
	c.initialized = true
}

func (c *Cursor) Reset() {
	c.index = 0
	c.remaining = 0
	c.initialized = false
}

// RemainingInQuery counts entities not yet visited in this pass.
func (c *Cursor) RemainingInQuery() int {
	if !c.initialized {
		return c.query.dense.len()
	}
	return c.query.dense.len() - c.index
}

func (c *Cursor) TotalMatched() int {
	if !c.initialized {
		c.initialize()
	}
	return c.remaining
}
