package layout

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/appnyang/leafreader/internal/core/domain"
	"github.com/appnyang/leafreader/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.LayoutMeasurer  = (*Glyph)(nil)
	_ driven.LayoutValidator = (*Glyph)(nil)
)

const (
	defaultFontSize = 16
	defaultDPI      = 72
)

// Font families understood by the glyph measurer
const (
	FamilyRegular = "go"
	FamilyMono    = "gomono"
	FamilyBasic   = "basic"
)

// GlyphConfig holds configuration for the glyph measurer
type GlyphConfig struct {
	DPI float64 // Resolution faces are rasterised at (default: 72)
}

// Glyph lays out text with real font metrics. Width and Height are in pixels.
type Glyph struct {
	dpi float64

	// opentype faces are not safe for concurrent use
	mu    sync.Mutex
	fonts map[string]*opentype.Font
	faces map[string]font.Face
}

// NewGlyph creates a glyph measurer backed by the bundled Go fonts
func NewGlyph(cfg GlyphConfig) *Glyph {
	if cfg.DPI <= 0 {
		cfg.DPI = defaultDPI
	}
	return &Glyph{
		dpi:   cfg.DPI,
		fonts: make(map[string]*opentype.Font),
		faces: make(map[string]font.Face),
	}
}

func (g *Glyph) ID() string {
	return fmt.Sprintf("glyph:dpi=%g", g.dpi)
}

func (g *Glyph) Measure(text []rune, params domain.LayoutParams) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	face, err := g.face(params.Font)
	if err != nil {
		// An unusable font fits nothing; the engine still makes progress
		return 0
	}

	metrics := face.Metrics()
	lineHeight := px(metrics.Height)*params.LineMultiplier() + params.LineSpacingExtra
	if lineHeight <= 0 {
		return 0
	}
	available := float64(params.Height)
	if params.IncludeFontPadding {
		available -= px(metrics.Descent)
	}
	// Spacing below the last line is not needed
	lines := int(math.Floor((available + params.LineSpacingExtra) / lineHeight))

	fallback, _ := face.GlyphAdvance('?')
	advance := func(r rune) float64 {
		if r == '\t' {
			a, _ := face.GlyphAdvance(' ')
			return px(a) * defaultTabWidth
		}
		a, ok := face.GlyphAdvance(r)
		if !ok {
			a = fallback
		}
		return px(a)
	}
	return fitLines(text, float64(params.Width), lines, advance)
}

// Validate checks the font exists and at least one line fits the viewport
func (g *Glyph) Validate(params domain.LayoutParams) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	face, err := g.face(params.Font)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	metrics := face.Metrics()
	lineHeight := px(metrics.Height)*params.LineMultiplier() + params.LineSpacingExtra
	available := float64(params.Height)
	if params.IncludeFontPadding {
		available -= px(metrics.Descent)
	}
	if lineHeight <= 0 || available+params.LineSpacingExtra < lineHeight {
		return fmt.Errorf("%w: viewport height %d fits no line of %gpx", domain.ErrInvalidInput, params.Height, lineHeight)
	}
	return nil
}

// LineHeight returns the height in pixels of one line laid out with params
func (g *Glyph) LineHeight(params domain.LayoutParams) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	face, err := g.face(params.Font)
	if err != nil {
		return 0, err
	}
	return px(face.Metrics().Height)*params.LineMultiplier() + params.LineSpacingExtra, nil
}

// face must be called with g.mu held
func (g *Glyph) face(spec domain.FontSpec) (font.Face, error) {
	family := strings.ToLower(spec.Family)
	if family == FamilyBasic {
		return basicfont.Face7x13, nil
	}

	size := spec.Size
	if size <= 0 {
		size = defaultFontSize
	}
	key := fmt.Sprintf("%s@%g", family, size)
	if f, ok := g.faces[key]; ok {
		return f, nil
	}

	otf, err := g.parse(family)
	if err != nil {
		return nil, err
	}
	f, err := opentype.NewFace(otf, &opentype.FaceOptions{
		Size:    size,
		DPI:     g.dpi,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create face %s: %w", key, err)
	}
	g.faces[key] = f
	return f, nil
}

func (g *Glyph) parse(family string) (*opentype.Font, error) {
	var src []byte
	switch family {
	case "", FamilyRegular, "goregular", "sans":
		family, src = FamilyRegular, goregular.TTF
	case FamilyMono, "mono", "monospace":
		family, src = FamilyMono, gomono.TTF
	default:
		return nil, fmt.Errorf("%w: unknown font family %q", domain.ErrInvalidInput, family)
	}

	if f, ok := g.fonts[family]; ok {
		return f, nil
	}
	f, err := opentype.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse font %s: %w", family, err)
	}
	g.fonts[family] = f
	return f, nil
}

func px(v fixed.Int26_6) float64 {
	return float64(v) / 64
}
