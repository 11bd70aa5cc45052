package dataset

import (
	"fmt"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestStorePutGet(t *testing.T) {
	store := NewStore(4)

	if err := store.Put(&domain.Dataset{ID: "ds-1", Name: "march"}); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	ds, ok := store.Get("ds-1")
	if !ok || ds.Name != "march" {
		t.Fatal("stored dataset not retrievable")
	}
	if _, ok := store.Get("ds-2"); ok {
		t.Fatal("expected miss for unknown dataset")
	}
}

func TestStoreRejectsEmptyID(t *testing.T) {
	store := NewStore(4)

	if err := store.Put(&domain.Dataset{}); err == nil {
		t.Fatal("expected error for dataset without ID")
	}
	if err := store.Put(nil); err == nil {
		t.Fatal("expected error for nil dataset")
	}
}

func TestStoreOverwrite(t *testing.T) {
	store := NewStore(4)

	store.Put(&domain.Dataset{ID: "ds-1", Name: "first"})
	store.Put(&domain.Dataset{ID: "ds-1", Name: "second"})

	if store.Len() != 1 {
		t.Fatalf("expected 1 entry after overwrite, got %d", store.Len())
	}
	ds, _ := store.Get("ds-1")
	if ds.Name != "second" {
		t.Errorf("expected overwritten dataset, got %q", ds.Name)
	}
}

func TestStoreEvictsLeastRecentlyUsed(t *testing.T) {
	store := NewStore(3)

	for i := 1; i <= 3; i++ {
		store.Put(&domain.Dataset{ID: fmt.Sprintf("ds-%d", i)})
	}

	// Touch ds-1 so ds-2 becomes the eviction candidate.
	store.Get("ds-1")
	store.Put(&domain.Dataset{ID: "ds-4"})

	if store.Len() != 3 {
		t.Fatalf("expected 3 entries at capacity, got %d", store.Len())
	}
	if _, ok := store.Get("ds-2"); ok {
		t.Error("expected ds-2 evicted")
	}
	if _, ok := store.Get("ds-1"); !ok {
		t.Error("recently used ds-1 should survive")
	}
}

func TestStoreDelete(t *testing.T) {
	store := NewStore(4)

	store.Put(&domain.Dataset{ID: "ds-1"})
	store.Delete("ds-1")
	store.Delete("ds-1") // idempotent

	if store.Len() != 0 {
		t.Fatalf("expected empty store, got %d", store.Len())
	}
}
