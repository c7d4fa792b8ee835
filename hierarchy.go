package sieve

import (
	"cmp"
	"math"
	"slices"

	"go.uber.org/zap"
)

const invalidDepth = math.MaxUint32

// hierarchyData caches the depth of every entity along one relation.
type hierarchyData struct {
	relation        *Relation
	depths          []uint32
	dirty           *sparseSet
	depthToEntities []*sparseSet
	maxDepth        int
	idMask          uint32

	// children holds the per-parent queries this cache registered itself.
	children map[EID]struct{}
}

func (w *World) ensureHierarchy(r *Relation) *hierarchyData {
	if h, ok := w.hierarchies[r]; ok {
		return h
	}
	h := &hierarchyData{
		relation: r,
		dirty:    newSparseSet(w.index.idMask),
		idMask:   w.index.idMask,
		children: make(map[EID]struct{}),
	}
	w.hierarchies[r] = h
	for _, eid := range w.members.dense {
		h.depthOf(w, eid, make(map[EID]struct{}))
	}
	w.log.Debug("tracking hierarchy",
		zap.Stringer("relation", r),
		zap.Int("entities", w.members.len()),
		zap.Int("max_depth", h.maxDepth),
	)
	return h
}

func (h *hierarchyData) grow(raw uint32) {
	if need := int(raw) + 1; need > len(h.depths) {
		old := len(h.depths)
		h.depths = extendSlice(h.depths, need-old)
		for i := old; i < need; i++ {
			h.depths[i] = invalidDepth
		}
	}
}

func (h *hierarchyData) depthSet(depth uint32) *sparseSet {
	for int(depth) >= len(h.depthToEntities) {
		h.depthToEntities = append(h.depthToEntities, newSparseSet(h.idMask))
	}
	return h.depthToEntities[depth]
}

func (h *hierarchyData) updateDepth(eid EID, depth uint32) {
	raw := uint32(eid) & h.idMask
	h.grow(raw)
	if old := h.depths[raw]; old != invalidDepth && int(old) < len(h.depthToEntities) {
		h.depthToEntities[old].remove(eid)
	}
	h.depths[raw] = depth
	h.depthSet(depth).add(eid)
	h.maxDepth = max(h.maxDepth, int(depth))
}

func (h *hierarchyData) invalidate(eid EID) {
	raw := uint32(eid) & h.idMask
	h.grow(raw)
	if old := h.depths[raw]; old != invalidDepth && int(old) < len(h.depthToEntities) {
		h.depthToEntities[old].remove(eid)
	}
	h.depths[raw] = invalidDepth
}

// depthOf returns the cached depth of eid or computes it from the shallowest
// parent. An entity reached twice in one walk counts as a root.
func (h *hierarchyData) depthOf(w *World, eid EID, visited map[EID]struct{}) uint32 {
	raw := uint32(eid) & h.idMask
	h.grow(raw)
	if d := h.depths[raw]; d != invalidDepth {
		return d
	}
	depth := h.calculateDepth(w, eid, visited)
	h.updateDepth(eid, depth)
	return depth
}

func (h *hierarchyData) calculateDepth(w *World, eid EID, visited map[EID]struct{}) uint32 {
	if _, seen := visited[eid]; seen {
		return 0
	}
	visited[eid] = struct{}{}

	best := uint32(invalidDepth)
	for parent := range w.relationTargets(eid, h.relation) {
		if !w.EntityExists(parent) {
			continue
		}
		best = min(best, h.depthOf(w, parent, visited))
	}
	if best == invalidDepth {
		return 0
	}
	return best + 1
}

// markDirty invalidates eid and every descendant reachable through the
// relation.
func (h *hierarchyData) markDirty(w *World, eid EID) {
	h.markDirtyVisited(w, eid, make(map[EID]struct{}))
}

func (h *hierarchyData) markDirtyVisited(w *World, eid EID, visited map[EID]struct{}) {
	if _, seen := visited[eid]; seen {
		return
	}
	visited[eid] = struct{}{}
	h.invalidate(eid)
	h.dirty.add(eid)

	if !w.HasComponent(eid, Wildcard.Pair(h.relation)) {
		return
	}
	childPair := h.relation.Pair(eid)
	if _, existed := w.lookupQuery(childPair); !existed {
		h.children[eid] = struct{}{}
	}
	for _, child := range slices.Clone(w.InnerQuery(childPair)) {
		if w.HasComponent(child, childPair) {
			h.markDirtyVisited(w, child, visited)
		}
	}
}

// flush recomputes every dirty depth and trims maxDepth.
func (h *hierarchyData) flush(w *World) {
	for _, eid := range slices.Clone(h.dirty.dense) {
		if w.EntityExists(eid) {
			h.depthOf(w, eid, make(map[EID]struct{}))
		}
	}
	h.dirty.clear()
	for h.maxDepth > 0 && h.depthSet(uint32(h.maxDepth)).len() == 0 {
		h.maxDepth--
	}
}

func (h *hierarchyData) forget(w *World, eid EID) {
	h.invalidate(eid)
	h.dirty.remove(eid)
	if _, owned := h.children[eid]; owned {
		delete(h.children, eid)
		w.RemoveQuery(h.relation.Pair(eid))
	}
}

// GetHierarchyDepth returns the number of r hops from eid to a root, or -1
// for entities that do not exist.
func (w *World) GetHierarchyDepth(eid EID, r *Relation) int {
	if !w.EntityExists(eid) {
		return -1
	}
	h := w.ensureHierarchy(r)
	return int(h.depthOf(w, eid, make(map[EID]struct{})))
}

func (w *World) GetMaxHierarchyDepth(r *Relation) int {
	h := w.ensureHierarchy(r)
	h.flush(w)
	return h.maxDepth
}

// QueryHierarchy returns the committed result of terms ordered by depth
// along r, roots first. Entities at equal depth keep query order.
func (w *World) QueryHierarchy(r *Relation, terms ...any) []EID {
	h := w.ensureHierarchy(r)
	h.flush(w)
	result := slices.Clone(w.Query(terms...))
	slices.SortStableFunc(result, func(a, b EID) int {
		return cmp.Compare(h.depths[uint32(a)&h.idMask], h.depths[uint32(b)&h.idMask])
	})
	return result
}

// QueryHierarchyDepth returns the entities at exactly depth along r.
func (w *World) QueryHierarchyDepth(r *Relation, depth int) []EID {
	h := w.ensureHierarchy(r)
	h.flush(w)
	if depth < 0 || depth >= len(h.depthToEntities) {
		return nil
	}
	return slices.Clone(h.depthToEntities[depth].dense)
}
