package sieve

import (
	"math/rand"
	"slices"
	"testing"
)

func sorted(eids []EID) []EID {
	out := slices.Clone(eids)
	slices.Sort(out)
	return out
}

func TestQueryDeferredRemoval(t *testing.T) {
	w := Factory.NewWorld()
	position := &testTag{"position"}

	var e []EID
	for i := 0; i < 10; i++ {
		e = append(e, w.AddEntity())
	}
	for _, eid := range e[:5] {
		_ = w.AddComponent(eid, position)
	}

	if got := w.Query(position); !slices.Equal(got, e[:5]) {
		t.Fatalf("Query() = %v, expected %v", got, e[:5])
	}

	_ = w.RemoveComponent(e[2], position)
	if got := w.InnerQuery(position); !slices.Contains(got, e[2]) {
		t.Errorf("InnerQuery() = %v, expected %d to linger until commit", got, e[2])
	}

	want := []EID{e[0], e[1], e[3], e[4]}
	if got := sorted(w.Query(position)); !slices.Equal(got, want) {
		t.Errorf("Query() = %v, expected %v", got, want)
	}
	if got := w.InnerQuery(position); slices.Contains(got, e[2]) {
		t.Errorf("InnerQuery() = %v still holds %d after commit", got, e[2])
	}
}

func TestQueryRemoveThenReAddBeforeCommit(t *testing.T) {
	w := Factory.NewWorld()
	position := &testTag{"position"}
	eid := w.AddEntity()

	var added, removed int
	_, _ = w.Observe(OnAdd(position), func(EID, any) any { added++; return nil })
	_, _ = w.Observe(OnRemove(position), func(EID, any) any { removed++; return nil })

	_ = w.AddComponent(eid, position)
	_ = w.RemoveComponent(eid, position)
	_ = w.AddComponent(eid, position)

	if got := w.Query(position); !slices.Equal(got, []EID{eid}) {
		t.Errorf("Query() = %v, expected [%d]", got, eid)
	}
	if removed != 1 {
		t.Errorf("remove observer fired %d times, expected 1", removed)
	}
	if added != 2 {
		t.Errorf("add observer fired %d times, expected 2", added)
	}
}

func TestQueryHashIsCanonical(t *testing.T) {
	w := Factory.NewWorld()
	a, b, c := &testTag{"a"}, &testTag{"b"}, &testTag{"c"}

	tests := []struct {
		name  string
		left  []any
		right []any
	}{
		{"bare order", []any{a, b}, []any{b, a}},
		{"operator order", []any{Or(a, b)}, []any{Or(b, a)}},
		{"term order", []any{a, Not(b, c)}, []any{Not(c, b), a}},
		{"aliases", []any{Any(a, b), None(c)}, []any{Not(c), Or(b, a)}},
		{"bare and explicit and", []any{a}, []any{And(a)}},
		{"duplicates", []any{a, a}, []any{a}},
		{"and groups fold", []any{a, And(b)}, []any{And(b, a)}},
		{"not groups fold", []any{Not(a), Not(b)}, []any{Not(b, a)}},
		{"repeated or", []any{Or(a, b), Or(b, a)}, []any{Or(a, b)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			left, err := w.RegisterQuery(tt.left...)
			if err != nil {
				t.Fatal(err)
			}
			right, err := w.RegisterQuery(tt.right...)
			if err != nil {
				t.Fatal(err)
			}
			if left != right {
				t.Errorf("hashes %q and %q differ", left.Hash(), right.Hash())
			}
		})
	}

	and, _ := w.RegisterQuery(a, b)
	or, _ := w.RegisterQuery(Or(a, b))
	if and == or {
		t.Errorf("And and Or terms resolved to the same query")
	}
}

func TestQueryOperators(t *testing.T) {
	w := Factory.NewWorld()
	a, b, c := &testTag{"a"}, &testTag{"b"}, &testTag{"c"}

	none := w.AddEntity()
	onlyA := w.AddEntity()
	ab := w.AddEntity()
	onlyC := w.AddEntity()
	_ = w.AddComponent(onlyA, a)
	_ = w.AddComponent(ab, a, b)
	_ = w.AddComponent(onlyC, c)

	tests := []struct {
		name  string
		terms []any
		want  []EID
	}{
		{"and", []any{a, b}, []EID{ab}},
		{"explicit and", []any{And(a, b)}, []EID{ab}},
		{"or", []any{Or(b, c)}, []EID{ab, onlyC}},
		{"not", []any{Not(a)}, []EID{none, onlyC}},
		{"and not", []any{a, Not(b)}, []EID{onlyA}},
		{"or groups", []any{Or(a), Or(b, c)}, []EID{ab}},
		{"empty", nil, []EID{none, onlyA, ab, onlyC}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sorted(w.Query(tt.terms...)); !slices.Equal(got, tt.want) {
				t.Errorf("Query() = %v, expected %v", got, tt.want)
			}
		})
	}
}

func TestNotQueryMatchesNewEntities(t *testing.T) {
	w := Factory.NewWorld()
	a := &testTag{"a"}
	w.Query(Not(a))

	var added []EID
	_, _ = w.Observe(OnAdd(Not(a)), func(eid EID, _ any) any {
		added = append(added, eid)
		return nil
	})

	eid := w.AddEntity()
	if !slices.Equal(added, []EID{eid}) {
		t.Errorf("add observer saw %v, expected [%d]", added, eid)
	}
	_ = w.AddComponent(eid, a)
	if got := w.Query(Not(a)); len(got) != 0 {
		t.Errorf("Query(Not(a)) = %v, expected nothing", got)
	}
}

func TestRemoveQuery(t *testing.T) {
	w := Factory.NewWorld()
	a := &testTag{"a"}
	q, _ := w.RegisterQuery(a)

	fired := 0
	_, _ = w.Observe(OnAdd(a), func(EID, any) any { fired++; return nil })
	w.RemoveQuery(a)

	_ = w.AddComponent(w.AddEntity(), a)
	if fired != 0 {
		t.Errorf("observer of a removed query fired")
	}
	fresh, _ := w.RegisterQuery(a)
	if fresh == q {
		t.Errorf("RegisterQuery returned the removed query")
	}
	if fresh.Len() != 1 {
		t.Errorf("fresh query holds %d entities, expected 1", fresh.Len())
	}

	// Unknown components never register anything.
	unknown := &testTag{"unknown"}
	w.RemoveQuery(unknown)
	if _, ok := w.components[unknown]; ok {
		t.Errorf("RemoveQuery registered a component")
	}
}

func TestQueryRejectsInvalidTerms(t *testing.T) {
	w := Factory.NewWorld()
	if _, err := w.RegisterQuery(&testTag{"a"}, nil); err == nil {
		t.Errorf("expected an error for a nil term")
	}
	if _, err := w.RegisterQuery(OpTerm{Op: Operation(9)}); err == nil {
		t.Errorf("expected an error for an unknown operator")
	}
	defer func() {
		if recover() == nil {
			t.Errorf("Query did not panic on an invalid term")
		}
	}()
	w.Query(Or(nil))
}

func TestQuerySoundness(t *testing.T) {
	w := Factory.NewWorld()
	tags := newTags(40)
	rng := rand.New(rand.NewSource(42))

	queries := [][]any{
		{tags[0]},
		{tags[1], tags[35]},
		{Or(tags[2], tags[33]), Not(tags[5])},
		{Not(tags[0], tags[39])},
		{Or(tags[3]), Or(tags[4], tags[36])},
		{},
	}
	compiled := make([]*Query, len(queries))
	for i, terms := range queries {
		q, err := w.RegisterQuery(terms...)
		if err != nil {
			t.Fatal(err)
		}
		compiled[i] = q
	}

	var entities []EID
	for step := 0; step < 4000; step++ {
		switch op := rng.Intn(10); {
		case op == 0 || len(entities) == 0:
			entities = append(entities, w.AddEntity())
		case op == 1:
			i := rng.Intn(len(entities))
			w.RemoveEntity(entities[i])
			entities = slices.Delete(entities, i, i+1)
		case op < 6:
			_ = w.AddComponent(entities[rng.Intn(len(entities))], tags[rng.Intn(len(tags))])
		default:
			_ = w.RemoveComponent(entities[rng.Intn(len(entities))], tags[rng.Intn(len(tags))])
		}

		if step%50 != 0 {
			continue
		}
		for i, q := range compiled {
			var want []EID
			for _, eid := range w.GetAllEntities() {
				if w.QueryCheckEntity(q, eid) {
					want = append(want, eid)
				}
			}
			slices.Sort(want)
			if got := sorted(w.Query(queries[i]...)); !slices.Equal(got, want) {
				t.Fatalf("step %d query %q: got %v, expected %v", step, q.Hash(), got, want)
			}
		}
	}
}
