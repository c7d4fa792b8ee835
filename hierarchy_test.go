package sieve

import (
	"slices"
	"testing"
)

func TestHierarchyDepth(t *testing.T) {
	w := Factory.NewWorld()
	childOf := NewRelation()
	node := &testTag{"node"}

	root := w.AddEntity()
	a := w.AddEntity()
	b := w.AddEntity()
	_ = w.AddComponent(root, node)
	_ = w.AddComponent(b, node, childOf.Pair(a))
	_ = w.AddComponent(a, node, childOf.Pair(root))

	tests := []struct {
		eid  EID
		want int
	}{
		{root, 0},
		{a, 1},
		{b, 2},
		{EID(999), -1},
	}
	for _, tt := range tests {
		if got := w.GetHierarchyDepth(tt.eid, childOf); got != tt.want {
			t.Errorf("GetHierarchyDepth(%d) = %d, expected %d", tt.eid, got, tt.want)
		}
	}

	if got := w.GetMaxHierarchyDepth(childOf); got != 2 {
		t.Errorf("GetMaxHierarchyDepth() = %d, expected 2", got)
	}
	if got := w.QueryHierarchy(childOf, node); !slices.Equal(got, []EID{root, a, b}) {
		t.Errorf("QueryHierarchy() = %v, expected %v", got, []EID{root, a, b})
	}
	if got := w.QueryHierarchyDepth(childOf, 1); !slices.Equal(got, []EID{a}) {
		t.Errorf("QueryHierarchyDepth(1) = %v, expected [%d]", got, a)
	}
	if got := w.QueryHierarchyDepth(childOf, 7); got != nil {
		t.Errorf("QueryHierarchyDepth(7) = %v, expected nil", got)
	}
}

func TestHierarchyTracksChanges(t *testing.T) {
	w := Factory.NewWorld()
	childOf := NewRelation(Exclusive())

	root := w.AddEntity()
	w.GetMaxHierarchyDepth(childOf)

	a := w.AddEntity()
	b := w.AddEntity()
	c := w.AddEntity()
	_ = w.AddComponent(a, childOf.Pair(root))
	_ = w.AddComponent(b, childOf.Pair(a))
	_ = w.AddComponent(c, childOf.Pair(b))

	if got := w.GetHierarchyDepth(c, childOf); got != 3 {
		t.Fatalf("depth of c = %d, expected 3", got)
	}

	// Moving b under root pulls its subtree up.
	_ = w.AddComponent(b, childOf.Pair(root))
	if got := w.GetHierarchyDepth(b, childOf); got != 1 {
		t.Errorf("depth of b after reparent = %d, expected 1", got)
	}
	if got := w.GetHierarchyDepth(c, childOf); got != 2 {
		t.Errorf("depth of c after reparent = %d, expected 2", got)
	}
	if got := w.GetMaxHierarchyDepth(childOf); got != 2 {
		t.Errorf("GetMaxHierarchyDepth() = %d, expected 2", got)
	}

	w.RemoveEntity(root)
	for _, eid := range []EID{a, b} {
		if got := w.GetHierarchyDepth(eid, childOf); got != 0 {
			t.Errorf("depth of %d after removing root = %d, expected 0", eid, got)
		}
	}
	if got := w.GetMaxHierarchyDepth(childOf); got != 1 {
		t.Errorf("GetMaxHierarchyDepth() = %d, expected 1", got)
	}

	w.RemoveEntity(c)
	if got := w.GetMaxHierarchyDepth(childOf); got != 0 {
		t.Errorf("GetMaxHierarchyDepth() after removing the leaf = %d, expected 0", got)
	}
}

func TestHierarchyCycleTerminates(t *testing.T) {
	w := Factory.NewWorld()
	childOf := NewRelation()
	a, b := w.AddEntity(), w.AddEntity()
	_ = w.AddComponent(a, childOf.Pair(b))
	_ = w.AddComponent(b, childOf.Pair(a))

	if got := w.GetHierarchyDepth(a, childOf); got < 0 {
		t.Errorf("GetHierarchyDepth() = %d on a cycle", got)
	}
	if got := len(w.QueryHierarchy(childOf, childOf.Pair(Wildcard))); got != 2 {
		t.Errorf("QueryHierarchy() returned %d entities, expected 2", got)
	}
}
