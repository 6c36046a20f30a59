package layout

import (
	"github.com/mattn/go-runewidth"
)

// Line-break opportunities do not depend on the locale
var breakCond = func() *runewidth.Condition {
	c := runewidth.NewCondition()
	c.EastAsianWidth = false
	return c
}()

// advanceFunc returns the horizontal advance of a rune in measurer units
type advanceFunc func(r rune) float64

// fitLines returns how many leading runes of text fill maxLines lines of the given
// width using greedy line breaking. It returns len(text) when the text runs out
// before the lines do.
func fitLines(text []rune, width float64, maxLines int, advance advanceFunc) int {
	if maxLines <= 0 {
		return 0
	}
	pos := 0
	for line := 0; line < maxLines; line++ {
		if pos >= len(text) {
			return len(text)
		}
		pos = breakLine(text, pos, width, advance)
	}
	return pos
}

// breakLine returns the index where the line starting at start ends.
// Whitespace hangs past the right edge; a word that overflows moves to the next
// line unless it is the only thing on the line, in which case it is broken.
func breakLine(text []rune, start int, width float64, advance advanceFunc) int {
	x := 0.0
	lastBreak := -1

	for i := start; i < len(text); i++ {
		r := text[i]
		switch r {
		case '\n':
			return i + 1
		case '\r':
			if i+1 == len(text) {
				// Could be the first half of CRLF
				return len(text)
			}
			if text[i+1] == '\n' {
				return i + 2
			}
			return i + 1
		case ' ', '\t', '　':
			x += advance(r)
			lastBreak = i + 1
			continue
		}

		w := advance(r)
		if x+w > width {
			if lastBreak > start {
				return lastBreak
			}
			if i == start {
				return i + 1
			}
			return i
		}
		x += w
		if breaksAfter(r) {
			lastBreak = i + 1
		}
	}
	return len(text)
}

// breaksAfter reports whether a line may break right after r
func breaksAfter(r rune) bool {
	return r == '-' || breakCond.RuneWidth(r) == 2
}
