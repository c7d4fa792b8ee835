package sieve

// inherit copies prefab's components onto eid and follows the prefab's own
// IsA targets. Components eid already holds keep their value, so the first
// declared ancestor wins.
func (w *World) inherit(eid, prefab EID) {
	if !w.EntityExists(prefab) {
		return
	}
	outermost := w.inheritVisited == nil
	if outermost {
		w.inheritVisited = make(map[EID]struct{})
		defer func() { w.inheritVisited = nil }()
	}
	if _, seen := w.inheritVisited[prefab]; seen {
		return
	}
	w.inheritVisited[prefab] = struct{}{}

	held := append([]Component(nil), w.entityComponents[w.index.ID(prefab)]...)
	for _, c := range held {
		if c == Prefab {
			continue
		}
		if pc, ok := c.(*PairComponent); ok && (!pc.concrete() || pc.relation == IsA) {
			continue
		}
		if w.HasComponent(eid, c) {
			continue
		}
		data := w.components[c]
		if value := data.getObservable.notify(prefab, nil); value != nil {
			w.addComponent(eid, c, value, true)
		} else {
			w.addComponent(eid, c, nil, false)
		}
	}

	for _, grand := range w.GetRelationTargets(prefab, IsA) {
		if grand != eid {
			w.addComponent(eid, IsA.Pair(grand), nil, false)
		}
	}
}
