package sieve

import (
	"fmt"
	"iter"
	"slices"

	iter_util "github.com/TheBitDrifter/util/iter"
	"go.uber.org/zap"
)

// Relation is a component family parametrized by a target. Pair returns the
// one PairComponent for each target, creating it on first use. Pairs are
// shared by every world that uses the relation.
type Relation struct {
	name              string
	pairs             map[Target]*PairComponent
	initStore         func(target Target) any
	exclusive         bool
	autoRemoveSubject bool
	onTargetRemoved   func(w *World, subject, target EID)
}

type RelationOption func(*Relation)

// WithStore attaches data to each pair, built from the pair's target.
func WithStore(init func(target Target) any) RelationOption {
	return func(r *Relation) { r.initStore = init }
}

// Exclusive limits a subject to one concrete target of the relation.
func Exclusive() RelationOption {
	return func(r *Relation) { r.exclusive = true }
}

// AutoRemoveSubject removes the subject when its target is removed.
func AutoRemoveSubject() RelationOption {
	return func(r *Relation) { r.autoRemoveSubject = true }
}

// OnTargetRemoved runs fn for every subject that lost a pair because its
// target was removed. Callbacks run once the whole removal batch is done.
func OnTargetRemoved(fn func(w *World, subject, target EID)) RelationOption {
	return func(r *Relation) { r.onTargetRemoved = fn }
}

// WithName labels the relation in logs and String output.
func WithName(name string) RelationOption {
	return func(r *Relation) { r.name = name }
}

func NewRelation(opts ...RelationOption) *Relation {
	r := &Relation{pairs: make(map[Target]*PairComponent)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var (
	// Wildcard stands for any relation or any target inside a pair.
	Wildcard = NewRelation(WithName("Wildcard"))
	// IsA makes the subject inherit the target's components.
	IsA = NewRelation(WithName("IsA"))
)

func (r *Relation) String() string {
	if r.name != "" {
		return r.name
	}
	return fmt.Sprintf("relation(%p)", r)
}

func (r *Relation) Exclusive() bool {
	return r.exclusive
}

// Pair returns the component for (r, target).
func (r *Relation) Pair(target Target) *PairComponent {
	if pc, ok := r.pairs[target]; ok {
		return pc
	}
	pc := &PairComponent{relation: r, target: target}
	if r.initStore != nil {
		pc.store = r.initStore(target)
	}
	r.pairs[target] = pc
	return pc
}

func Pair(r *Relation, target Target) *PairComponent {
	return r.Pair(target)
}

// PairComponent is the component of one (relation, target) combination.
type PairComponent struct {
	relation *Relation
	target   Target
	store    any
}

func (p *PairComponent) Relation() *Relation { return p.relation }
func (p *PairComponent) Target() Target      { return p.target }

// Store returns the data built by the relation's WithStore option.
func (p *PairComponent) Store() any { return p.store }

func (p *PairComponent) String() string {
	return fmt.Sprintf("%s(%v)", p.relation, p.target)
}

// concrete reports whether the pair is a real edge rather than a wildcard
// marker.
func (p *PairComponent) concrete() bool {
	return p.relation != Wildcard && p.target != Target(Wildcard)
}

// relationTargets yields the concrete entity targets of r held by eid.
func (w *World) relationTargets(eid EID, r *Relation) iter.Seq[EID] {
	return func(yield func(EID) bool) {
		if !w.EntityExists(eid) {
			return
		}
		for _, c := range w.entityComponents[w.index.ID(eid)] {
			pc, ok := c.(*PairComponent)
			if !ok || pc.relation != r {
				continue
			}
			target, ok := pc.target.(EID)
			if !ok {
				continue
			}
			if !yield(target) {
				return
			}
		}
	}
}

// GetRelationTargets lists the entities eid points at through r, in the
// order the pairs were added.
func (w *World) GetRelationTargets(eid EID, r *Relation) []EID {
	return iter_util.Collect(w.relationTargets(eid, r))
}

func (w *World) onPairAdded(eid EID, pc *PairComponent) {
	rel := pc.relation
	w.addComponent(eid, rel.Pair(Wildcard), nil, false)
	w.addComponent(eid, Wildcard.Pair(pc.target), nil, false)

	if target, ok := pc.target.(EID); ok {
		w.addComponent(target, Wildcard.Pair(rel), nil, false)
		set, ok := w.subjects[target]
		if !ok {
			set = newSparseSet(w.index.idMask)
			w.subjects[target] = set
		}
		set.add(eid)
	}

	if rel.exclusive {
		var stale []*PairComponent
		for _, c := range w.entityComponents[w.index.ID(eid)] {
			other, ok := c.(*PairComponent)
			if ok && other != pc && other.relation == rel && other.target != Target(Wildcard) {
				stale = append(stale, other)
			}
		}
		for _, other := range stale {
			if ce := w.log.Check(zap.DebugLevel, "replaced exclusive target"); ce != nil {
				ce.Write(
					zap.Uint32("subject", uint32(eid)),
					zap.Stringer("relation", rel),
					zap.Any("old", other.target),
					zap.Any("new", pc.target),
				)
			}
			w.removeComponent(eid, other)
		}
	}

	if rel == IsA {
		if prefab, ok := pc.target.(EID); ok {
			w.inherit(eid, prefab)
		}
	}

	if h, ok := w.hierarchies[rel]; ok {
		h.markDirty(w, eid)
	}
}

func (w *World) onPairRemoved(eid EID, pc *PairComponent) {
	rel := pc.relation
	raw := w.index.ID(eid)

	if !slices.ContainsFunc(w.entityComponents[raw], func(c Component) bool {
		other, ok := c.(*PairComponent)
		return ok && other.concrete() && other.target == pc.target
	}) {
		w.removeComponent(eid, Wildcard.Pair(pc.target))
		if target, ok := pc.target.(EID); ok {
			w.forgetSubject(target, eid)
		}
	}
	if !slices.ContainsFunc(w.entityComponents[raw], func(c Component) bool {
		other, ok := c.(*PairComponent)
		return ok && other.concrete() && other.relation == rel
	}) {
		w.removeComponent(eid, rel.Pair(Wildcard))
	}

	if target, ok := pc.target.(EID); ok && w.EntityExists(target) && w.components[pc].count == 0 {
		w.removeComponent(target, Wildcard.Pair(rel))
	}

	if h, ok := w.hierarchies[rel]; ok {
		h.markDirty(w, eid)
	}
}

func (w *World) forgetSubject(target, subject EID) {
	set, ok := w.subjects[target]
	if !ok {
		return
	}
	set.remove(subject)
	if set.len() == 0 {
		delete(w.subjects, target)
	}
}
