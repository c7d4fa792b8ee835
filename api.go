package sieve

import (
	"iter"
)

// EID is an opaque entity handle. With versioning enabled the upper bits
// carry the version of a recycled id.
type EID uint32

// Component is any comparable value used as a component token. The world never
// looks inside it; identity is value equality (pointers are the usual choice).
type Component any

// Target is the right-hand side of a pair: an entity or a relation.
type Target interface {
	relationTarget()
}

func (EID) relationTarget()       {}
func (*Relation) relationTarget() {}

// Observer is called for hook notifications. data is the value passed to
// SetComponent for OnSet hooks and nil otherwise. The return value is only
// read for OnGet hooks.
type Observer func(eid EID, data any) any

type iCursor interface {
	Entities() iter.Seq2[int, EID]
	Next() bool
}

type Cache[T any] interface {
	GetIndex(string) (int, bool)
	GetItem(int) *T
	Register(string, T) (int, error)
	Remove(string) (T, bool)
	Items() iter.Seq[T]
	Len() int
}

// Cursor walks the committed result of a single query.
type Cursor struct {
	world *World
	query *Query

	// Current iteration state
	index     int
	remaining int

	initialized bool
}

type SimpleCache[T any] struct {
	items       []cacheSlot[T]
	itemIndices map[string]int
	free        []int
}

type cacheSlot[T any] struct {
	item T
	live bool
}
