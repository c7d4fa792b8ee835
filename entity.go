package sieve

import (
	"slices"

	"github.com/rotisserie/eris"
)

// AddEntity allocates an entity in this world. The new entity is matched
// against every query a component-less entity can satisfy.
func (w *World) AddEntity() EID {
	return w.addEntity(false)
}

// AddPrefab allocates an entity tagged with Prefab and adds cs to it.
func (w *World) AddPrefab(cs ...Component) (EID, error) {
	for _, c := range cs {
		if err := validateComponent(c); err != nil {
			return 0, eris.Wrap(err, "add prefab")
		}
	}
	eid := w.addEntity(true)
	if err := w.AddComponent(eid, cs...); err != nil {
		w.RemoveEntity(eid)
		return 0, eris.Wrap(err, "add prefab")
	}
	return eid, nil
}

func (w *World) addEntity(prefab bool) EID {
	eid := w.index.Add()
	raw := w.index.ID(eid)
	w.ensureEntity(raw)
	w.entityComponents[raw] = w.entityComponents[raw][:0]
	w.members.add(eid)

	if prefab {
		w.entityMasks[w.prefab.GenerationID][raw] |= w.prefab.Bitflag
		w.entityComponents[raw] = append(w.entityComponents[raw], Prefab)
		w.prefab.count++
		for _, q := range w.prefab.queries {
			w.updateQuery(q, eid)
		}
	}
	for _, q := range w.notQueries {
		w.updateQuery(q, eid)
	}
	for _, h := range w.hierarchies {
		h.updateDepth(eid, 0)
	}
	return eid
}

// RemoveEntity removes eid along with everything its relations cascade to.
// Removing a dead entity is a no-op. Calls made while a removal is in
// progress, from OnRemove observers for instance, join the running batch.
func (w *World) RemoveEntity(eid EID) {
	if !w.EntityExists(eid) {
		return
	}
	if !w.opQueue.enqueueDestroy(eid) {
		return
	}
	if w.opQueue.draining {
		return
	}
	w.processOperationQueue()
}

// EntityExists reports whether eid is alive and was added through this world.
func (w *World) EntityExists(eid EID) bool {
	return w.index.IsAlive(eid) && w.members.has(eid)
}

// GetEntityComponents returns a copy of the components eid holds, in the
// order they were added.
func (w *World) GetEntityComponents(eid EID) ([]Component, error) {
	if !w.EntityExists(eid) {
		return nil, eris.Wrapf(EntityNotFoundError{Entity: eid}, "get components of entity %d", eid)
	}
	return slices.Clone(w.entityComponents[w.index.ID(eid)]), nil
}

// GetAllEntities returns a copy of every live entity of this world.
func (w *World) GetAllEntities() []EID {
	return slices.Clone(w.members.dense)
}

// freeEntity leaves every query first, so each query sees exactly one removal,
// then strips the components without re-evaluating queries. Relation cleanup
// still runs for every pair the entity held.
func (w *World) freeEntity(eid EID) {
	raw := w.index.ID(eid)
	w.dying.add(eid)
	for q := range w.queries.Items() {
		w.queryRemove(q, eid)
	}

	held := slices.Clone(w.entityComponents[raw])
	for i := len(held) - 1; i >= 0; i-- {
		w.removeComponent(eid, held[i])
	}
	for g := range w.entityMasks {
		w.entityMasks[g][raw] = 0
	}
	clear(w.entityComponents[raw])
	w.entityComponents[raw] = w.entityComponents[raw][:0]

	for _, h := range w.hierarchies {
		h.forget(w, eid)
	}
	delete(w.subjects, eid)
	w.dying.remove(eid)
	w.members.remove(eid)
	w.index.Remove(eid)
}
