package sieve

import (
	"context"

	"github.com/TheBitDrifter/mask"
	"github.com/TheBitDrifter/table"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// StorableComponent is a component that owns a column in a Storage. It is
// implemented by *AccessibleComponent.
type StorableComponent interface {
	elementType() table.ElementType
	attach(s *Storage) ([]func(), error)
	detach()
}

// AccessibleComponent is a component token backed by a typed table column.
// The world only sees the pointer; values flow through its set, get and
// remove hooks once the component is bound to a Storage.
type AccessibleComponent[T any] struct {
	element  table.ElementType
	accessor table.Accessor[T]
	storage  *Storage
}

var _ StorableComponent = &AccessibleComponent[struct{}]{}

// Storage holds the column data of a fixed set of components, one table row
// per entity id. Rows are allocated the first time an entity is written.
type Storage struct {
	world      *World
	schema     table.Schema
	tbl        table.Table
	rows       []table.Entry
	components []StorableComponent

	changed    []mask.Mask
	changedSet *sparseSet

	unsubscribe []func()
}

func newStorage(w *World, components ...StorableComponent) (*Storage, error) {
	schema := table.Factory.NewSchema()
	elements := make([]table.ElementType, len(components))
	for i, c := range components {
		if c == nil {
			return nil, NullComponentError{}
		}
		elements[i] = c.elementType()
		schema.Register(elements[i])
	}
	tbl, err := table.NewTableBuilder().
		WithSchema(schema).
		WithEntryIndex(table.Factory.NewEntryIndex()).
		WithElementTypes(elements...).
		Build()
	if err != nil {
		return nil, eris.Wrap(err, "build storage table")
	}
	s := &Storage{
		world:      w,
		schema:     schema,
		tbl:        tbl,
		components: components,
		changedSet: newSparseSet(w.index.idMask),
	}
	for i, c := range components {
		unsubscribe, err := c.attach(s)
		if err != nil {
			for _, unsubscribe := range s.unsubscribe {
				unsubscribe()
			}
			for _, bound := range components[:i] {
				bound.detach()
			}
			return nil, eris.Wrap(err, "bind storage component")
		}
		s.unsubscribe = append(s.unsubscribe, unsubscribe...)
	}
	return s, nil
}

// Close unsubscribes every hook and releases the components so they can be
// bound to another storage.
func (s *Storage) Close() {
	for _, unsubscribe := range s.unsubscribe {
		unsubscribe()
	}
	s.unsubscribe = nil
	for _, c := range s.components {
		c.detach()
	}
}

func (s *Storage) Len() int {
	return s.tbl.Length()
}

func (s *Storage) row(eid EID) (table.Entry, bool) {
	raw := s.world.index.ID(eid)
	if int(raw) >= len(s.rows) {
		return nil, false
	}
	entry := s.rows[raw]
	return entry, entry != nil
}

// ensureRows allocates rows for every entity that has none yet, in one call
// to the table.
func (s *Storage) ensureRows(eids ...EID) error {
	var missing []uint32
	for _, eid := range eids {
		raw := s.world.index.ID(eid)
		if int(raw) >= len(s.rows) {
			s.rows = extendSlice(s.rows, int(raw)+1-len(s.rows))
			s.changed = extendSlice(s.changed, int(raw)+1-len(s.changed))
		}
		if s.rows[raw] == nil {
			missing = append(missing, raw)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	entries, err := s.tbl.NewEntries(len(missing))
	if err != nil {
		return eris.Wrapf(err, "allocate %d storage rows", len(missing))
	}
	for i, raw := range missing {
		s.rows[raw] = entries[i]
	}
	return nil
}

func (s *Storage) markChanged(eid EID, element table.ElementType) {
	raw := s.world.index.ID(eid)
	s.changed[raw].Mark(s.schema.RowIndexFor(element))
	s.changedSet.add(eid)
}

// Changed reports whether c was written for eid since the last DrainChanges.
func (s *Storage) Changed(eid EID, c StorableComponent) bool {
	raw := s.world.index.ID(eid)
	if int(raw) >= len(s.changed) || !s.changedSet.has(eid) {
		return false
	}
	var bit mask.Mask
	bit.Mark(s.schema.RowIndexFor(c.elementType()))
	return s.changed[raw].ContainsAll(bit)
}

// DrainChanges calls fn once per entity with writes since the last drain,
// listing the components written, then clears the change set.
func (s *Storage) DrainChanges(fn func(eid EID, written []Component)) {
	for _, eid := range s.changedSet.dense {
		raw := s.world.index.ID(eid)
		var written []Component
		for _, c := range s.components {
			var bit mask.Mask
			bit.Mark(s.schema.RowIndexFor(c.elementType()))
			if s.changed[raw].ContainsAll(bit) {
				written = append(written, c)
			}
		}
		s.changed[raw] = mask.Mask{}
		if len(written) > 0 && s.world.EntityExists(eid) {
			fn(eid, written)
		}
	}
	s.changedSet.clear()
}

func (c *AccessibleComponent[T]) elementType() table.ElementType {
	return c.element
}

func (c *AccessibleComponent[T]) attach(s *Storage) ([]func(), error) {
	if c.storage != nil {
		return nil, StorageBindingError{Component: c}
	}
	w := s.world
	onSet, err := w.Observe(OnSet(c), func(eid EID, data any) any {
		var value T
		switch v := data.(type) {
		case T:
			value = v
		case *T:
			if v == nil {
				return nil
			}
			value = *v
		default:
			w.log.Error("storage: unexpected value type",
				zap.Uint32("entity", uint32(eid)),
				zap.Any("value", data),
			)
			return nil
		}
		if err := s.ensureRows(eid); err != nil {
			w.log.Error("storage: write failed", zap.Uint32("entity", uint32(eid)), zap.Error(err))
			return nil
		}
		*c.at(s, eid) = value
		s.markChanged(eid, c.element)
		return nil
	})
	if err != nil {
		return nil, err
	}
	onGet, err := w.Observe(OnGet(c), func(eid EID, _ any) any {
		if _, ok := s.row(eid); !ok {
			return nil
		}
		return *c.at(s, eid)
	})
	if err != nil {
		onSet()
		return nil, err
	}
	reset := func(eid EID, _ any) any {
		c.reset(s, eid)
		return nil
	}
	onRemove, err := w.Observe(OnRemove(c), reset)
	if err != nil {
		onSet()
		onGet()
		return nil, err
	}
	// Prefabs only match queries that name Prefab.
	onRemovePrefab, err := w.Observe(OnRemove(c, Prefab), reset)
	if err != nil {
		onSet()
		onGet()
		onRemove()
		return nil, err
	}
	c.storage = s
	return []func(){onSet, onGet, onRemove, onRemovePrefab}, nil
}

func (c *AccessibleComponent[T]) detach() {
	c.storage = nil
}

func (c *AccessibleComponent[T]) at(s *Storage, eid EID) *T {
	entry, _ := s.row(eid)
	return c.accessor.Get(entry.Index(), s.tbl)
}

func (c *AccessibleComponent[T]) reset(s *Storage, eid EID) {
	if _, ok := s.row(eid); !ok {
		return
	}
	var zero T
	*c.at(s, eid) = zero
}

// Get returns eid's value, or nil if eid does not hold the component or the
// component is not bound to a storage.
func (c *AccessibleComponent[T]) Get(eid EID) *T {
	s := c.storage
	if s == nil || !s.world.HasComponent(eid, c) {
		return nil
	}
	if err := s.ensureRows(eid); err != nil {
		return nil
	}
	return c.at(s, eid)
}

// Set adds the component to eid if needed and stores v.
func (c *AccessibleComponent[T]) Set(eid EID, v T) error {
	if c.storage == nil {
		return eris.Wrap(StorageBindingError{Component: c}, "set unbound component")
	}
	return c.storage.world.SetComponent(eid, c, v)
}

// Reset zeroes eid's value without removing the component.
func (c *AccessibleComponent[T]) Reset(eid EID) {
	if c.storage != nil {
		c.reset(c.storage, eid)
	}
}

// ParallelUpdate runs fn over eids on up to workers goroutines, each owning a
// contiguous share of eids. Rows are allocated before any worker starts and
// change marks are applied after all of them finish. Only the column data is
// shared between workers; fn must not touch the world.
func (c *AccessibleComponent[T]) ParallelUpdate(ctx context.Context, eids []EID, workers int, fn func(eid EID, value *T) error) error {
	s := c.storage
	if s == nil {
		return eris.Wrap(StorageBindingError{Component: c}, "parallel update of unbound component")
	}
	for _, eid := range eids {
		if !s.world.HasComponent(eid, c) {
			return eris.Wrapf(EntityNotFoundError{Entity: eid}, "parallel update")
		}
	}
	if err := s.ensureRows(eids...); err != nil {
		return err
	}
	values := make([]*T, len(eids))
	for i, eid := range eids {
		values[i] = c.at(s, eid)
	}

	workers = max(1, min(workers, len(eids)))
	g, ctx := errgroup.WithContext(ctx)
	chunk := (len(eids) + workers - 1) / workers
	for lo := 0; lo < len(eids); lo += chunk {
		hi := min(lo+chunk, len(eids))
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := fn(eids[i], values[i]); err != nil {
					return eris.Wrapf(err, "update entity %d", eids[i])
				}
			}
			return nil
		})
	}
	err := g.Wait()
	for _, eid := range eids {
		s.markChanged(eid, c.element)
	}
	return err
}
