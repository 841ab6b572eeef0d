package memory

import (
	"reflect"
	"sync"
	"testing"
)

func TestValues_Basic(t *testing.T) {
	v := New()

	if _, ok := v.Get("x"); ok {
		t.Fatal("Get on empty map returned ok")
	}

	v.Set("x", 1)
	v.Set("a", "hello")

	got, ok := v.Get("x")
	if !ok || got != 1 {
		t.Fatalf("Get(x) = %v, %v; want 1, true", got, ok)
	}
	if !v.Has("a") {
		t.Error("Has(a) = false")
	}
	if v.Len() != 2 {
		t.Errorf("Len() = %d, want 2", v.Len())
	}
	if keys := v.Keys(); !reflect.DeepEqual(keys, []string{"a", "x"}) {
		t.Errorf("Keys() = %v", keys)
	}

	if !v.Delete("a") {
		t.Error("Delete(a) = false")
	}
	if v.Delete("a") {
		t.Error("second Delete(a) = true")
	}
}

func TestValues_LoadOrInit(t *testing.T) {
	v := New()

	if got := v.LoadOrInit("epoch", 0); got != 0 {
		t.Fatalf("LoadOrInit seeded %v, want 0", got)
	}
	v.Set("epoch", 7)
	if got := v.LoadOrInit("epoch", 0); got != 7 {
		t.Fatalf("LoadOrInit = %v, want existing 7", got)
	}
}

func TestValues_SnapshotIsIndependent(t *testing.T) {
	v := New()
	v.Set("x", 1)

	snap := v.Snapshot()
	v.Set("x", 2)
	v.Set("y", 3)

	if snap["x"] != 1 || len(snap) != 1 {
		t.Errorf("snapshot changed after writes: %v", snap)
	}
}

func TestValues_Replace(t *testing.T) {
	v := New()
	v.Set("old", true)

	src := map[string]any{"x": 1.5}
	v.Replace(src)
	src["x"] = 99

	if v.Has("old") {
		t.Error("Replace kept old key")
	}
	if got, _ := v.Get("x"); got != 1.5 {
		t.Errorf("Get(x) = %v, want 1.5", got)
	}

	v.Replace(nil)
	if v.Len() != 0 {
		t.Errorf("Len() after Replace(nil) = %d", v.Len())
	}
	v.Set("after", 1)
}

func TestValues_Concurrent(t *testing.T) {
	v := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				v.Set("k", j)
				v.Snapshot()
				v.LoadOrInit("seed", i)
			}
		}(i)
	}
	wg.Wait()

	if v.Len() != 2 {
		t.Errorf("Len() = %d, want 2", v.Len())
	}
}
