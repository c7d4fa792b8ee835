/*
Package sieve provides an entity/component engine with incrementally
maintained queries, typed relations and hierarchy tracking.

Entities are opaque ids. Components are comparable tokens, usually pointers,
whose presence is tracked per entity in multi-word bitmasks: each registered
component gets a (generation, bit) address and a generation word holds 31 of
them. A query compiles its terms into per-generation masks once and keeps its
result set up to date on every mutation, so reading it never scans entities.

Core Concepts:

  - World: owns entities, component masks, queries and relation bookkeeping.
  - Query: a predicate built from components and the And, Or and Not operators.
  - Relation: a component family with one PairComponent per target entity.
  - Wildcard: matches any relation or any target inside a pair.
  - IsA: inherits every component of a prefab entity.
  - Storage: typed table-backed columns bound to components through hooks.

Removals from a query are deferred: an entity that stops matching is queued and
dropped from the result on the next commit. Query commits first, InnerQuery does
not.

Basic Usage:

	world := sieve.Factory.NewWorld()

	position := sieve.FactoryNewComponent[Position]()
	velocity := sieve.FactoryNewComponent[Velocity]()
	storage, _ := sieve.Factory.NewStorage(world, position, velocity)
	defer storage.Close()

	eid := world.AddEntity()
	_ = position.Set(eid, Position{})
	_ = velocity.Set(eid, Velocity{X: 1})

	for _, eid := range world.Query(position, velocity) {
		pos, vel := position.Get(eid), velocity.Get(eid)
		pos.X += vel.X
		pos.Y += vel.Y
	}

	childOf := sieve.NewRelation(sieve.AutoRemoveSubject())
	parent, child := world.AddEntity(), world.AddEntity()
	_ = world.AddComponent(child, childOf.Pair(parent))
	world.RemoveEntity(parent) // child is removed too

A World is not safe for concurrent use. AccessibleComponent.ParallelUpdate
hands disjoint slices of one column to worker goroutines.
*/
package sieve
