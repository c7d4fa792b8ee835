package sieve

import (
	"slices"

	"go.uber.org/zap"
)

type operation struct {
	typ      operationType
	entity   EID
	comp     Component
	target   EID
	relation *Relation
}

type operationType int

const (
	opDestroy operationType = iota
	opRemoveComponent
	opTargetRemoved
)

type opKey struct {
	entity EID
}

// opQueue batches the cascade of one RemoveEntity call. Destroys discovered
// while draining are appended and handled in the same pass; target removed
// callbacks are held back until the pass ends.
type opQueue struct {
	componentOps   []operation
	destroyOps     []operation
	callbackOps    []operation
	pendingDestroy map[opKey]struct{}
	draining       bool
}

func newOpQueue() opQueue {
	return opQueue{
		pendingDestroy: make(map[opKey]struct{}),
	}
}

// enqueueDestroy reports false if eid is already part of the batch.
func (q *opQueue) enqueueDestroy(eid EID) bool {
	key := opKey{entity: eid}
	if _, exists := q.pendingDestroy[key]; exists {
		return false
	}
	q.pendingDestroy[key] = struct{}{}
	q.destroyOps = append(q.destroyOps, operation{typ: opDestroy, entity: eid})
	return true
}

func (q *opQueue) enqueueComponentOp(eid EID, c Component) {
	// Entities pending destroy lose every component anyway.
	if _, isDestroyed := q.pendingDestroy[opKey{entity: eid}]; isDestroyed {
		return
	}
	q.componentOps = append(q.componentOps, operation{
		typ:    opRemoveComponent,
		entity: eid,
		comp:   c,
	})
}

func (q *opQueue) enqueueCallback(rel *Relation, subject, target EID) {
	q.callbackOps = append(q.callbackOps, operation{
		typ:      opTargetRemoved,
		entity:   subject,
		target:   target,
		relation: rel,
	})
}

func (w *World) processOperationQueue() {
	q := &w.opQueue
	q.draining = true

	removed, componentOps := 0, 0
	for i := 0; i < len(q.destroyOps); i++ {
		eid := q.destroyOps[i].entity
		if !w.EntityExists(eid) {
			continue
		}
		w.collectRelationOps(eid)

		for _, op := range q.componentOps {
			if _, isDestroyed := q.pendingDestroy[opKey{entity: op.entity}]; isDestroyed && op.entity != eid {
				continue
			}
			if w.EntityExists(op.entity) {
				w.removeComponent(op.entity, op.comp)
			}
		}
		componentOps += len(q.componentOps)
		clear(q.componentOps)
		q.componentOps = q.componentOps[:0]

		w.freeEntity(eid)
		removed++
	}

	callbacks := slices.Clone(q.callbackOps)
	clear(q.destroyOps)
	q.destroyOps = q.destroyOps[:0]
	clear(q.callbackOps)
	q.callbackOps = q.callbackOps[:0]
	clear(q.pendingDestroy)
	q.draining = false

	if removed > 1 || len(callbacks) > 0 {
		if ce := w.log.Check(zap.DebugLevel, "cascaded entity removal"); ce != nil {
			ce.Write(
				zap.Int("entities", removed),
				zap.Int("component_ops", componentOps),
				zap.Int("callbacks", len(callbacks)),
			)
		}
	}

	for _, op := range callbacks {
		op.relation.onTargetRemoved(w, op.entity, op.target)
	}
}

// collectRelationOps queues the removal of every pair pointing at target,
// and the subjects and callbacks those pairs cascade to.
func (w *World) collectRelationOps(target EID) {
	set, ok := w.subjects[target]
	if !ok {
		return
	}
	delete(w.subjects, target)

	for _, subject := range slices.Clone(set.dense) {
		if !w.EntityExists(subject) {
			continue
		}
		for _, c := range w.entityComponents[w.index.ID(subject)] {
			pc, ok := c.(*PairComponent)
			if !ok || !pc.concrete() || pc.target != Target(target) {
				continue
			}
			w.opQueue.enqueueComponentOp(subject, pc)
			if pc.relation.autoRemoveSubject {
				w.opQueue.enqueueDestroy(subject)
			}
			if pc.relation.onTargetRemoved != nil {
				w.opQueue.enqueueCallback(pc.relation, subject, target)
			}
		}
	}
}
