package layout

import (
	"fmt"
	"math"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/appnyang/leafreader/internal/core/domain"
	"github.com/appnyang/leafreader/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.LayoutMeasurer  = (*Cell)(nil)
	_ driven.LayoutValidator = (*Cell)(nil)
)

const defaultTabWidth = 4

// CellConfig holds configuration for the terminal cell measurer
type CellConfig struct {
	EastAsianWide bool // Treat ambiguous-width characters as two cells
	TabWidth      int  // Cells per tab (default: 4)
}

// Cell lays out text in a grid of terminal cells. Width and Height are in cells
// and rows; wide characters take two cells.
type Cell struct {
	cond     *runewidth.Condition
	tabWidth int
	eaWide   bool
}

// NewCell creates a terminal cell measurer
func NewCell(cfg CellConfig) *Cell {
	if cfg.TabWidth <= 0 {
		cfg.TabWidth = defaultTabWidth
	}
	cond := runewidth.NewCondition()
	cond.EastAsianWidth = cfg.EastAsianWide
	return &Cell{
		cond:     cond,
		tabWidth: cfg.TabWidth,
		eaWide:   cfg.EastAsianWide,
	}
}

func (c *Cell) ID() string {
	return fmt.Sprintf("cell:ea=%t:tab=%d", c.eaWide, c.tabWidth)
}

func (c *Cell) Measure(text []rune, params domain.LayoutParams) int {
	return fitLines(text, float64(params.Width), c.lines(params), c.advance)
}

// Validate checks at least one line fits the viewport
func (c *Cell) Validate(params domain.LayoutParams) error {
	if c.lines(params) < 1 {
		return fmt.Errorf("%w: %d rows fit no line", domain.ErrInvalidInput, params.Height)
	}
	return nil
}

func (c *Cell) lines(params domain.LayoutParams) int {
	// Rows per line, rounded up so spacing never overflows the screen
	lineRows := math.Ceil(params.LineMultiplier() + params.LineSpacingExtra)
	if lineRows < 1 {
		lineRows = 1
	}
	return int(float64(params.Height) / lineRows)
}

func (c *Cell) advance(r rune) float64 {
	if r == '\t' {
		return float64(c.tabWidth)
	}
	return float64(c.cond.RuneWidth(r))
}

// StringWidth returns the number of cells s occupies
func (c *Cell) StringWidth(s string) int {
	return c.cond.StringWidth(s)
}

// Wrap splits page text into the screen rows Measure counted for it.
// Line terminators are dropped and tabs expanded.
func (c *Cell) Wrap(text string, width int) []string {
	runes := []rune(text)
	var rows []string
	for pos := 0; pos < len(runes); {
		end := breakLine(runes, pos, float64(width), c.advance)
		row := strings.TrimRight(string(runes[pos:end]), "\r\n")
		row = strings.ReplaceAll(row, "\t", strings.Repeat(" ", c.tabWidth))
		rows = append(rows, row)
		pos = end
	}
	return rows
}
