package sieve

import (
	"errors"
	"slices"
	"testing"
)

func TestCacheRegister(t *testing.T) {
	cache := FactoryNewCache[string]()
	keys := []string{"a", "b", "c"}
	for i, key := range keys {
		idx, err := cache.Register(key, "item-"+key)
		if err != nil {
			t.Fatalf("Register(%q): %v", key, err)
		}
		if idx != i {
			t.Errorf("Register(%q) = %d, expected %d", key, idx, i)
		}
	}

	idx, ok := cache.GetIndex("b")
	if !ok || *cache.GetItem(idx) != "item-b" {
		t.Errorf("GetItem(GetIndex(b)) = %q, expected item-b", *cache.GetItem(idx))
	}
	if _, ok := cache.GetIndex("missing"); ok {
		t.Errorf("found a key that was never registered")
	}

	_, err := cache.Register("a", "again")
	var exists CacheKeyExistsError
	if !errors.As(err, &exists) || exists.Key != "a" {
		t.Errorf("duplicate Register() error = %v, expected CacheKeyExistsError", err)
	}
}

func TestCacheRemoveReusesSlots(t *testing.T) {
	cache := FactoryNewCache[int]()
	_, _ = cache.Register("a", 1)
	_, _ = cache.Register("b", 2)
	_, _ = cache.Register("c", 3)

	if item, ok := cache.Remove("b"); !ok || item != 2 {
		t.Errorf("Remove(b) = %d, %v", item, ok)
	}
	if _, ok := cache.Remove("b"); ok {
		t.Errorf("second Remove(b) reported success")
	}
	if cache.Len() != 2 {
		t.Errorf("Len() = %d, expected 2", cache.Len())
	}
	if got := slices.Collect(cache.Items()); !slices.Equal(got, []int{1, 3}) {
		t.Errorf("Items() = %v, expected [1 3]", got)
	}

	idx, _ := cache.Register("d", 4)
	if idx != 1 {
		t.Errorf("Register(d) = %d, expected the freed slot 1", idx)
	}
	if got := slices.Collect(cache.Items()); !slices.Equal(got, []int{1, 4, 3}) {
		t.Errorf("Items() = %v, expected [1 4 3]", got)
	}
}

func TestCacheClear(t *testing.T) {
	cache := FactoryNewCache[string]().(*SimpleCache[string])
	for _, key := range []string{"a", "b"} {
		_, _ = cache.Register(key, key)
	}
	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("Len() = %d after Clear", cache.Len())
	}
	if _, err := cache.Register("a", "a"); err != nil {
		t.Errorf("Register after Clear: %v", err)
	}
}
