package domain

import (
	"fmt"
	"time"
)

// DocumentInfo describes a plain-text document reachable through a document source
type DocumentInfo struct {
	URI     string    `json:"uri"`
	Title   string    `json:"title"`
	Size    int64     `json:"size"` // Size of the raw stream in bytes, -1 if unknown
	ModTime time.Time `json:"mod_time"`

	// Decoding names how the source turns the raw bytes into text (e.g. "utf-8", "euc-kr")
	Decoding string `json:"decoding,omitempty"`
}

// Page is a contiguous slice of a document sized to fit one viewport.
// Start/End are character (rune) offsets, ByteStart/ByteEnd are offsets into the
// decoded UTF-8 stream of the document.
type Page struct {
	Index     int    `json:"index"`
	Start     int64  `json:"start"`
	End       int64  `json:"end"`
	ByteStart int64  `json:"byte_start"`
	ByteEnd   int64  `json:"byte_end"`
	Text      string `json:"text,omitempty"`
}

// Len returns the number of characters on the page
func (p Page) Len() int64 {
	return p.End - p.Start
}

// Contains reports whether the character offset lies on the page
func (p Page) Contains(offset int64) bool {
	return offset >= p.Start && offset < p.End
}

// Span returns the page without its text
func (p Page) Span() Page {
	p.Text = ""
	return p
}

// FontSpec describes the font used to lay out text
type FontSpec struct {
	Family string  `json:"family"`
	Size   float64 `json:"size"`
}

// LayoutParams is the fixed display geometry a document is paginated against.
// Units are whatever the measurer works in (pixels for glyph measurers, cells for
// terminal measurers).
type LayoutParams struct {
	Width                 int      `json:"width"`
	Height                int      `json:"height"`
	Font                  FontSpec `json:"font"`
	LineSpacingMultiplier float64  `json:"line_spacing_multiplier"`
	LineSpacingExtra      float64  `json:"line_spacing_extra"`
	IncludeFontPadding    bool     `json:"include_font_padding"`
}

// Validate checks the geometry is usable
func (p LayoutParams) Validate() error {
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("%w: viewport %dx%d", ErrInvalidInput, p.Width, p.Height)
	}
	if p.Font.Size < 0 {
		return fmt.Errorf("%w: font size %v", ErrInvalidInput, p.Font.Size)
	}
	if p.LineSpacingMultiplier < 0 {
		return fmt.Errorf("%w: line spacing multiplier %v", ErrInvalidInput, p.LineSpacingMultiplier)
	}
	return nil
}

// LineMultiplier returns the line spacing multiplier, defaulting to 1
func (p LayoutParams) LineMultiplier() float64 {
	if p.LineSpacingMultiplier == 0 {
		return 1
	}
	return p.LineSpacingMultiplier
}
