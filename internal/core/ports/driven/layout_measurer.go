package driven

import "github.com/appnyang/leafreader/internal/core/domain"

// LayoutMeasurer reports how much text fits one page.
//
// Measure returns the number of leading characters of text that fill one page
// laid out with params. The result must be deterministic, and a result smaller
// than len(text) must not change when more text is appended. Returning len(text)
// means the page may continue past the end of text. Returning 0 means not even one
// character fits.
type LayoutMeasurer interface {
	// ID identifies the measurer and its configuration (used in cache keys)
	ID() string

	Measure(text []rune, params domain.LayoutParams) int
}

// LayoutValidator is implemented by measurers that cannot lay out every params,
// e.g. an unknown font family. Validate returns domain.ErrInvalidInput for params
// that would fit nothing on a page.
type LayoutValidator interface {
	Validate(params domain.LayoutParams) error
}
