package layout

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/appnyang/leafreader/internal/core/domain"
)

func cells(w, h int) domain.LayoutParams {
	return domain.LayoutParams{Width: w, Height: h}
}

func TestCell_Measure(t *testing.T) {
	m := NewCell(CellConfig{})

	tests := []struct {
		name   string
		text   string
		params domain.LayoutParams
		want   int
	}{
		{"breaks after a word", "The quick brown fox jumps.", cells(10, 1), 10},
		{"two lines", "The quick brown fox jumps.", cells(10, 2), 20},
		{"text runs out", "abc", cells(10, 2), 3},
		{"newlines end lines", "ab\ncd\nef", cells(10, 2), 6},
		{"crlf is one break", "ab\r\ncd\r\nef", cells(10, 2), 8},
		{"long word is broken", "abcdefghijkl", cells(5, 2), 10},
		{"wide characters take two cells", "가나다라마바", cells(5, 2), 4},
		{"lone wide character on narrow line", "가나", cells(1, 1), 1},
		{"spaces hang past the edge", "abcde     fgh", cells(5, 1), 10},
		{"tabs advance four cells", "\tab cd", cells(6, 1), 4},
		{"double line spacing halves rows", "a\nb\nc\nd\n", domain.LayoutParams{Width: 5, Height: 4, LineSpacingMultiplier: 2}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Measure([]rune(tt.text), tt.params)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCell_TrailingCarriageReturnWaits(t *testing.T) {
	m := NewCell(CellConfig{})

	// A CR at the end of the buffer may be followed by LF
	assert.Equal(t, 3, m.Measure([]rune("ab\r"), cells(10, 1)))
}

func TestCell_EastAsianAmbiguous(t *testing.T) {
	narrow := NewCell(CellConfig{})
	wide := NewCell(CellConfig{EastAsianWide: true})

	text := []rune(strings.Repeat("○", 6))
	assert.Equal(t, 4, narrow.Measure(text, cells(4, 1)))
	assert.Equal(t, 2, wide.Measure(text, cells(4, 1)))
	assert.NotEqual(t, narrow.ID(), wide.ID())
}

func TestCell_ZeroRowsFitsNothing(t *testing.T) {
	m := NewCell(CellConfig{})

	params := domain.LayoutParams{Width: 10, Height: 1, LineSpacingMultiplier: 3}
	assert.Equal(t, 0, m.Measure([]rune("abc"), params))
}

// A result shorter than the buffer must not move when more text arrives
func TestCell_PrefixStable(t *testing.T) {
	m := NewCell(CellConfig{})
	text := []rune("The quick brown fox jumps over the lazy dog.\n다람쥐 헌 쳇바퀴에 타고파\r\nsupercalifragilisticexpialidocious end")

	for _, params := range []domain.LayoutParams{cells(7, 3), cells(12, 2), cells(3, 5)} {
		full := m.Measure(text, params)
		for k := 1; k <= len(text); k++ {
			n := m.Measure(text[:k], params)
			assert.LessOrEqual(t, n, k)
			if n < k {
				assert.Equal(t, full, n, "prefix %d with %+v", k, params)
			}
		}
	}
}

func TestCell_StringWidth(t *testing.T) {
	m := NewCell(CellConfig{})
	assert.Equal(t, 5, m.StringWidth("가나a"))
}

func TestCell_Wrap(t *testing.T) {
	c := NewCell(CellConfig{TabWidth: 2})

	rows := c.Wrap("The quick brown fox\n\tjumps", 10)
	assert.Equal(t, []string{"The quick ", "brown fox", "  jumps"}, rows)

	// Rows agree with what Measure counts
	text := []rune("The quick brown fox\n\tjumps")
	params := domain.LayoutParams{Width: 10, Height: 2}
	n := c.Measure(text, params)
	assert.Equal(t, len(c.Wrap(string(text[:n]), 10)), 2)

	assert.Empty(t, c.Wrap("", 10))
	assert.Equal(t, []string{"가나다라마", "바"}, c.Wrap("가나다라마바", 10))
}

func TestCell_Validate(t *testing.T) {
	c := NewCell(CellConfig{})

	assert.NoError(t, c.Validate(domain.LayoutParams{Width: 80, Height: 1}))
	assert.NoError(t, c.Validate(domain.LayoutParams{Width: 80, Height: 2, LineSpacingMultiplier: 2}))
	assert.ErrorIs(t, c.Validate(domain.LayoutParams{Width: 80, Height: 1, LineSpacingMultiplier: 2}), domain.ErrInvalidInput)
}
