package sieve

import (
	"go.uber.org/zap"
)

// World owns every per-world index: entity masks, the enumerable component
// mirror, the component and query registries, relation bookkeeping and the
// hierarchy caches. A World is not safe for concurrent use.
type World struct {
	config    Config
	log       *zap.Logger
	index     *EntityIndex
	ownsIndex bool
	members   *sparseSet

	// entityMasks[generation][rawID] holds 31 component bits per word.
	entityMasks      [][]uint32
	entityComponents [][]Component

	components    map[Component]*ComponentData
	componentList []*ComponentData
	bitflag       uint32
	prefab        *ComponentData

	queries      *SimpleCache[*Query]
	notQueries   []*Query
	dirtyQueries []*Query

	// subjects maps a target entity to the entities holding a concrete pair
	// that points at it.
	subjects       map[EID]*sparseSet
	hierarchies    map[*Relation]*hierarchyData
	inheritVisited map[EID]struct{}

	// dying holds entities being freed; queries no longer track them.
	dying *sparseSet

	opQueue opQueue
}

func newWorld(index *EntityIndex, owns bool, cfg Config) *World {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &World{
		config:    cfg,
		log:       logger,
		index:     index,
		ownsIndex: owns,
		opQueue:   newOpQueue(),
	}
	w.reset()
	return w
}

func (w *World) reset() {
	capacity := max(w.config.InitialCapacity, 1)
	w.entityMasks = [][]uint32{make([]uint32, 0, capacity)}
	w.entityComponents = make([][]Component, 0, capacity)
	w.members = newSparseSet(w.index.idMask)
	w.components = make(map[Component]*ComponentData)
	w.componentList = nil
	w.bitflag = 1
	w.queries = newSimpleCache[*Query]()
	w.notQueries = nil
	w.dirtyQueries = nil
	w.subjects = make(map[EID]*sparseSet)
	w.dying = newSparseSet(w.index.idMask)
	w.hierarchies = make(map[*Relation]*hierarchyData)
	w.inheritVisited = nil
	w.opQueue = newOpQueue()
	w.prefab = w.registerComponent(Prefab)
	w.ensureEntity(w.index.MaxID())
}

// Reset drops all entities, components, queries and hierarchy caches. An
// index shared with other worlds keeps its ids.
func (w *World) Reset() {
	if w.ownsIndex {
		w.index.Reset()
	}
	w.reset()
	w.log.Debug("world reset", zap.Bool("owns_index", w.ownsIndex))
}

// EntityIndex exposes the allocator backing this world.
func (w *World) EntityIndex() *EntityIndex {
	return w.index
}

func (w *World) Logger() *zap.Logger {
	return w.log
}

// Components lists every component registered in this world, in
// registration order.
func (w *World) Components() []Component {
	out := make([]Component, len(w.componentList))
	for i, data := range w.componentList {
		out[i] = data.Ref
	}
	return out
}

// ensureEntity grows every per-entity array so raw is addressable.
func (w *World) ensureEntity(raw uint32) {
	need := int(raw) + 1
	if need <= len(w.entityComponents) {
		return
	}
	grow := need - len(w.entityComponents)
	w.entityComponents = extendSlice(w.entityComponents, grow)
	for g := range w.entityMasks {
		w.entityMasks[g] = extendSlice(w.entityMasks[g], need-len(w.entityMasks[g]))
	}
}
