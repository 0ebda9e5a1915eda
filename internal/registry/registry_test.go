package registry

import (
	"testing"

	"example.com/asterixgate/internal/schema"
)

func TestRegistryAddGet(t *testing.T) {
	r := New()
	cat := &schema.Category{Header: schema.Header{Category: 48}}
	r.Add(cat)
	got, ok := r.Get(48)
	if !ok || got != cat {
		t.Fatalf("Get(48) = %v, %v", got, ok)
	}
	if _, ok := r.Get(2); ok {
		t.Error("Get(2) should be absent")
	}
}

func TestRegistryCategoriesSorted(t *testing.T) {
	r := New()
	r.Add(&schema.Category{Header: schema.Header{Category: 48}})
	r.Add(&schema.Category{Header: schema.Header{Category: 2}})
	r.Add(&schema.Category{Header: schema.Header{Category: 21}})
	got := r.Categories()
	want := []uint8{2, 21, 48}
	if len(got) != len(want) {
		t.Fatalf("Categories() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Categories()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestRegistryAddAfterFreezePanics(t *testing.T) {
	r := New()
	r.Freeze()
	defer func() {
		if recover() == nil {
			t.Error("expected panic adding to a frozen registry")
		}
	}()
	r.Add(&schema.Category{Header: schema.Header{Category: 1}})
}

func TestLoadDirectoryNoFiles(t *testing.T) {
	if _, err := LoadDirectory(t.TempDir()); err == nil {
		t.Error("expected error loading an empty directory")
	}
}
