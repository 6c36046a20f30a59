package layout

import (
	"github.com/appnyang/leafreader/internal/core/domain"
	"github.com/appnyang/leafreader/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.LayoutMeasurer = (*Grid)(nil)

// Grid fits Width x Height characters on a page, one character per cell, with no
// line breaking. Useful for fixed-capacity pages and tests.
type Grid struct{}

// NewGrid creates a fixed-capacity measurer
func NewGrid() *Grid {
	return &Grid{}
}

func (g *Grid) ID() string {
	return "grid"
}

func (g *Grid) Measure(text []rune, params domain.LayoutParams) int {
	capacity := params.Width * params.Height
	if capacity <= 0 {
		return 0
	}
	if len(text) < capacity {
		return len(text)
	}
	return capacity
}
