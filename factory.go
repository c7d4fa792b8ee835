package sieve

import "github.com/TheBitDrifter/table"

type factory struct{}

var Factory factory

// NewWorld creates a world with its own entity index. Without a config the
// world uses DefaultConfig.
func (f factory) NewWorld(cfg ...Config) *World {
	c := resolveConfig(cfg)
	return newWorld(newEntityIndex(c.Versioning, c.VersionBits), true, c)
}

// NewWorldSharingIndex creates a world that allocates ids from index, so
// entity ids stay unique across every world sharing it. Resetting such a world
// leaves the index alone.
func (f factory) NewWorldSharingIndex(index *EntityIndex, cfg ...Config) *World {
	return newWorld(index, false, resolveConfig(cfg))
}

func (f factory) NewEntityIndex(versioning bool, versionBits uint) *EntityIndex {
	return newEntityIndex(versioning, versionBits)
}

// NewStorage builds one table holding a column per component and binds the
// components to w through their hooks.
func (f factory) NewStorage(w *World, components ...StorableComponent) (*Storage, error) {
	return newStorage(w, components...)
}

func (f factory) NewCursor(w *World, q *Query) *Cursor {
	return newCursor(w, q)
}

func FactoryNewComponent[T any]() *AccessibleComponent[T] {
	iden := table.FactoryNewElementType[T]()
	return &AccessibleComponent[T]{
		element:  iden,
		accessor: table.FactoryNewAccessor[T](iden),
	}
}

func FactoryNewCache[T any]() Cache[T] {
	return newSimpleCache[T]()
}

func resolveConfig(cfg []Config) Config {
	if len(cfg) == 0 {
		return DefaultConfig()
	}
	return cfg[0]
}
