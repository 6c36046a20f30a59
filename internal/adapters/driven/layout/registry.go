package layout

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/appnyang/leafreader/internal/core/domain"
	"github.com/appnyang/leafreader/internal/core/ports/driven"
)

// Registry selects layout measurers by name.
// A measurer may be registered under several names.
type Registry struct {
	mu        sync.RWMutex
	measurers map[string]driven.LayoutMeasurer
}

// NewRegistry creates an empty measurer registry.
func NewRegistry() *Registry {
	return &Registry{
		measurers: make(map[string]driven.LayoutMeasurer),
	}
}

// Register registers a measurer under one or more names.
// A later registration replaces an earlier one with the same name.
func (r *Registry) Register(m driven.LayoutMeasurer, names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range names {
		r.measurers[normaliseName(name)] = m
	}
}

// Get retrieves the measurer registered under name.
func (r *Registry) Get(name string) (driven.LayoutMeasurer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.measurers[normaliseName(name)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown measurer %q (available: %s)",
			domain.ErrInvalidInput, name, strings.Join(r.namesLocked(), ", "))
	}
	return m, nil
}

// List returns all registered names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.measurers))
	for name := range r.measurers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normaliseName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// DefaultRegistry creates a registry with the built-in measurers.
func DefaultRegistry(cell CellConfig, glyph GlyphConfig) *Registry {
	r := NewRegistry()

	r.Register(NewGrid(), "grid", "fixed")
	r.Register(NewCell(cell), "cell", "terminal")
	r.Register(NewGlyph(glyph), "glyph", "font")

	return r
}
