// Package registry holds the category-id-to-schema map a Decoder is
// populated from: a load phase (mutable, single-threaded) followed by
// unrestricted concurrent read access.
package registry

import (
	"fmt"
	"sync"

	"example.com/asterixgate/internal/schema"
)

// Registry is a category catalogue. The zero value is an empty, usable
// registry.
type Registry struct {
	mu    sync.RWMutex
	cats  map[uint8]*schema.Category
	frozen bool
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{cats: make(map[uint8]*schema.Category)}
}

// Add registers cat, overwriting any existing entry for the same category
// number. Add panics if called after Freeze.
func (r *Registry) Add(cat *schema.Category) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		panic("registry: Add called after Freeze")
	}
	if r.cats == nil {
		r.cats = make(map[uint8]*schema.Category)
	}
	r.cats[cat.Header.Category] = cat
}

// Freeze marks the registry read-only. Freeze is idempotent.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Get returns the schema registered for category, if any. Safe for
// concurrent use both before and after Freeze.
func (r *Registry) Get(category uint8) (*schema.Category, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.cats[category]
	return c, ok
}

// Categories returns the registered category numbers in ascending order.
func (r *Registry) Categories() []uint8 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]uint8, 0, len(r.cats))
	for k := range r.cats {
		out = append(out, k)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// LoadDirectory loads every category description file in dir into a new,
// frozen Registry.
func LoadDirectory(dir string) (*Registry, error) {
	cats, err := schema.LoadDirectory(dir)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	r := New()
	for _, cat := range cats {
		r.Add(cat)
	}
	r.Freeze()
	return r, nil
}

// LoadFile loads a single category description file into r.
func (r *Registry) LoadFile(path string) error {
	cat, err := schema.Load(path)
	if err != nil {
		return fmt.Errorf("registry: %w", err)
	}
	r.Add(cat)
	return nil
}
