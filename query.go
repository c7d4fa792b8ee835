package sieve

import (
	"slices"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Operation is the boolean combinator of an operator term.
type Operation int

const (
	OpAnd Operation = iota
	OpOr
	OpNot
)

func (o Operation) String() string {
	switch o {
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	case OpNot:
		return "not"
	}
	return "op(" + strconv.Itoa(int(o)) + ")"
}

// OpTerm wraps components in a query operator. A bare component in a term
// list behaves like And.
type OpTerm struct {
	Op         Operation
	Components []Component
}

func And(cs ...Component) OpTerm { return OpTerm{Op: OpAnd, Components: cs} }

// Or matches entities holding at least one of cs. Every Or term is its own
// any-of group.
func Or(cs ...Component) OpTerm { return OpTerm{Op: OpOr, Components: cs} }

func Not(cs ...Component) OpTerm { return OpTerm{Op: OpNot, Components: cs} }

func All(cs ...Component) OpTerm  { return And(cs...) }
func Any(cs ...Component) OpTerm  { return Or(cs...) }
func None(cs ...Component) OpTerm { return Not(cs...) }

// Query is a compiled predicate over component membership together with its
// incrementally maintained result set. dense may still hold entities queued in
// toRemove until the world commits removals.
type Query struct {
	hash string

	components    []*ComponentData
	orComponents  [][]*ComponentData
	notComponents []*ComponentData
	allComponents []*ComponentData

	// masks, notMasks and each orMasks entry are aligned with generations.
	generations []int
	masks       []uint32
	notMasks    []uint32
	orMasks     [][]uint32
	prefab      bool

	dense    *sparseSet
	toRemove *sparseSet
	dirty    bool
	removed  bool

	addObservable    *observable
	removeObservable *observable
}

func (q *Query) Hash() string {
	return q.hash
}

// Len counts the entities physically present, including pending removals.
func (q *Query) Len() int {
	return q.dense.len()
}

type compiledTerms struct {
	and  [][]*ComponentData
	or   [][]*ComponentData
	not  [][]*ComponentData
	hash string
}

func termComponents(term any) (Operation, []Component) {
	if t, ok := term.(OpTerm); ok {
		return t.Op, t.Components
	}
	return OpAnd, []Component{term}
}

func validateTerms(terms []any) error {
	for _, term := range terms {
		if t, ok := term.(OpTerm); ok && t.Op != OpAnd && t.Op != OpOr && t.Op != OpNot {
			return InvalidComponentError{Component: term}
		}
		_, cs := termComponents(term)
		for _, c := range cs {
			if err := validateComponent(c); err != nil {
				return err
			}
		}
	}
	return nil
}

// compileTerms validates every term before it registers anything.
func (w *World) compileTerms(terms []any) (compiledTerms, error) {
	if err := validateTerms(terms); err != nil {
		return compiledTerms{}, err
	}
	var ct compiledTerms
	for _, term := range terms {
		op, cs := termComponents(term)
		group := make([]*ComponentData, len(cs))
		for i, c := range cs {
			group[i] = w.ensureComponent(c)
		}
		switch op {
		case OpAnd:
			ct.and = append(ct.and, group)
		case OpOr:
			ct.or = append(ct.or, group)
		case OpNot:
			ct.not = append(ct.not, group)
		}
	}
	ct.hash, _ = w.queryHash(terms)
	return ct, nil
}

// queryHash canonicalizes terms: bare components join the And group, every
// Not term folds into one group, ids are sorted and deduplicated inside each
// group and the group strings are sorted and joined. It reports false when a
// component is not registered, in which case no query can exist for terms.
func (w *World) queryHash(terms []any) (string, bool) {
	var and, not []int
	var parts []string
	for _, term := range terms {
		op, cs := termComponents(term)
		ids := make([]int, len(cs))
		for i, c := range cs {
			data, ok := w.components[c]
			if !ok {
				return "", false
			}
			ids[i] = data.ID
		}
		switch op {
		case OpAnd:
			and = append(and, ids...)
		case OpNot:
			not = append(not, ids...)
		case OpOr:
			parts = append(parts, hashGroup(OpOr, ids))
		}
	}
	if len(and) > 0 {
		parts = append(parts, hashGroup(OpAnd, and))
	}
	if len(not) > 0 {
		parts = append(parts, hashGroup(OpNot, not))
	}
	slices.Sort(parts)
	return strings.Join(slices.Compact(parts), "-"), true
}

func hashGroup(op Operation, ids []int) string {
	slices.Sort(ids)
	ids = slices.Compact(ids)
	var b strings.Builder
	b.WriteString(op.String())
	b.WriteByte('(')
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(id))
	}
	b.WriteByte(')')
	return b.String()
}

// RegisterQuery returns the cached query for terms, building and populating
// it on first use. Terms are components or OpTerm values.
func (w *World) RegisterQuery(terms ...any) (*Query, error) {
	ct, err := w.compileTerms(terms)
	if err != nil {
		return nil, eris.Wrap(err, "register query")
	}
	hash := ct.hash
	if idx, ok := w.queries.GetIndex(hash); ok {
		return *w.queries.GetItem(idx), nil
	}

	q := newQuery(w, hash, ct)
	if _, err := w.queries.Register(hash, q); err != nil {
		return nil, eris.Wrap(err, "register query")
	}
	for _, data := range q.allComponents {
		data.queries = append(data.queries, q)
	}
	if len(q.notComponents) > 0 || (len(q.components) == 0 && len(q.orMasks) == 0) {
		w.notQueries = append(w.notQueries, q)
	}
	for _, eid := range w.members.dense {
		if !w.dying.has(eid) && w.queryCheckEntity(q, eid) {
			w.queryAdd(q, eid)
		}
	}
	if ce := w.log.Check(zap.DebugLevel, "registered query"); ce != nil {
		ce.Write(zap.String("hash", hash), zap.Int("matches", q.dense.len()))
	}
	return q, nil
}

func newQuery(w *World, hash string, ct compiledTerms) *Query {
	q := &Query{
		hash:             hash,
		dense:            newSparseSet(w.index.idMask),
		toRemove:         newSparseSet(w.index.idMask),
		addObservable:    newObservable(),
		removeObservable: newObservable(),
	}
	seen := make(map[*ComponentData]bool)
	note := func(data *ComponentData) {
		if !seen[data] {
			seen[data] = true
			q.allComponents = append(q.allComponents, data)
			if !slices.Contains(q.generations, data.GenerationID) {
				q.generations = append(q.generations, data.GenerationID)
			}
		}
	}
	for _, group := range ct.and {
		for _, data := range group {
			note(data)
			q.components = append(q.components, data)
			q.prefab = q.prefab || data == w.prefab
		}
	}
	for _, group := range ct.or {
		for _, data := range group {
			note(data)
			q.prefab = q.prefab || data == w.prefab
		}
		if len(group) > 0 {
			q.orComponents = append(q.orComponents, group)
		}
	}
	for _, group := range ct.not {
		for _, data := range group {
			note(data)
			q.notComponents = append(q.notComponents, data)
		}
	}
	slices.Sort(q.generations)

	genIndex := func(g int) int {
		i, _ := slices.BinarySearch(q.generations, g)
		return i
	}
	q.masks = make([]uint32, len(q.generations))
	q.notMasks = make([]uint32, len(q.generations))
	for _, data := range q.components {
		q.masks[genIndex(data.GenerationID)] |= data.Bitflag
	}
	for _, data := range q.notComponents {
		q.notMasks[genIndex(data.GenerationID)] |= data.Bitflag
	}
	for _, group := range q.orComponents {
		orMask := make([]uint32, len(q.generations))
		for _, data := range group {
			orMask[genIndex(data.GenerationID)] |= data.Bitflag
		}
		q.orMasks = append(q.orMasks, orMask)
	}
	return q
}

func (w *World) mustQuery(terms []any) *Query {
	q, err := w.RegisterQuery(terms...)
	if err != nil {
		panic(err)
	}
	return q
}

// Query commits pending removals and returns the entities matching terms.
// The slice is owned by the query and is valid until the next commit. It
// panics if terms are invalid; use RegisterQuery to get the error instead.
func (w *World) Query(terms ...any) []EID {
	q := w.mustQuery(terms)
	w.CommitRemovals()
	return q.dense.dense
}

// InnerQuery returns the physical result without committing, so entities
// pending removal may still be present.
func (w *World) InnerQuery(terms ...any) []EID {
	return w.mustQuery(terms).dense.dense
}

// Entities commits pending removals and returns q's result.
func (w *World) Entities(q *Query) []EID {
	w.CommitRemovals()
	return q.dense.dense
}

// RemoveQuery drops the cached query for terms along with its observers.
func (w *World) RemoveQuery(terms ...any) {
	if q, ok := w.lookupQuery(terms...); ok {
		w.removeQuery(q.hash)
	}
}

func (w *World) removeQuery(hash string) {
	q, ok := w.queries.Remove(hash)
	if !ok {
		return
	}
	q.removed = true
	// Mutations may be ranging over these slices, so they are replaced rather
	// than compacted in place.
	isQuery := func(other *Query) bool { return other == q }
	for _, data := range q.allComponents {
		data.queries = slices.DeleteFunc(slices.Clone(data.queries), isQuery)
	}
	w.notQueries = slices.DeleteFunc(slices.Clone(w.notQueries), isQuery)
	if q.dirty {
		w.dirtyQueries = slices.DeleteFunc(w.dirtyQueries, func(other *Query) bool { return other == q })
	}
	if ce := w.log.Check(zap.DebugLevel, "removed query"); ce != nil {
		ce.Write(zap.String("hash", hash))
	}
}

// lookupQuery finds the cached query for terms without registering anything.
func (w *World) lookupQuery(terms ...any) (*Query, bool) {
	if validateTerms(terms) != nil {
		return nil, false
	}
	hash, ok := w.queryHash(terms)
	if !ok {
		return nil, false
	}
	idx, ok := w.queries.GetIndex(hash)
	if !ok {
		return nil, false
	}
	return *w.queries.GetItem(idx), true
}

// CommitRemovals compacts every query with pending removals.
func (w *World) CommitRemovals() {
	if len(w.dirtyQueries) == 0 {
		return
	}
	for _, q := range w.dirtyQueries {
		for _, eid := range q.toRemove.dense {
			q.dense.remove(eid)
		}
		q.toRemove.clear()
		q.dirty = false
	}
	clear(w.dirtyQueries)
	w.dirtyQueries = w.dirtyQueries[:0]
}

// QueryCheckEntity evaluates q's predicate against eid's current masks.
func (w *World) QueryCheckEntity(q *Query, eid EID) bool {
	if !w.EntityExists(eid) {
		return false
	}
	return w.queryCheckEntity(q, eid)
}

func (w *World) queryCheckEntity(q *Query, eid EID) bool {
	raw := w.index.ID(eid)
	for i, g := range q.generations {
		em := w.entityMasks[g][raw]
		if em&q.notMasks[i] != 0 {
			return false
		}
		if em&q.masks[i] != q.masks[i] {
			return false
		}
	}
	for _, orMask := range q.orMasks {
		hit := false
		for i, g := range q.generations {
			if w.entityMasks[g][raw]&orMask[i] != 0 {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	if !q.prefab && w.entityMasks[w.prefab.GenerationID][raw]&w.prefab.Bitflag != 0 {
		return false
	}
	return true
}

func (w *World) updateQuery(q *Query, eid EID) {
	if q.removed || w.dying.has(eid) {
		return
	}
	match := w.queryCheckEntity(q, eid)
	member := q.dense.has(eid) && !q.toRemove.has(eid)
	switch {
	case match && !member:
		w.queryAdd(q, eid)
	case !match && member:
		w.queryRemove(q, eid)
	}
}

// refreshQueries re-evaluates eid against every registered query.
func (w *World) refreshQueries(eid EID) {
	for q := range w.queries.Items() {
		w.updateQuery(q, eid)
	}
}

func (w *World) queryAdd(q *Query, eid EID) {
	if q.dense.has(eid) && !q.toRemove.hasKey(eid) {
		return
	}
	q.toRemove.remove(eid)
	q.addObservable.notify(eid, nil)
	q.dense.add(eid)
}

func (w *World) queryRemove(q *Query, eid EID) {
	if !q.dense.has(eid) || q.toRemove.has(eid) {
		return
	}
	q.toRemove.add(eid)
	if !q.dirty {
		q.dirty = true
		w.dirtyQueries = append(w.dirtyQueries, q)
	}
	q.removeObservable.notify(eid, nil)
}
