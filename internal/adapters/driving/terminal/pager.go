package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/appnyang/leafreader/internal/core/domain"
	"github.com/appnyang/leafreader/internal/core/ports/driving"
)

var termGetSize = term.GetSize

const (
	defaultWidth  = 80
	defaultHeight = 24

	keyEscape    = 0x1b
	keyBackspace = 0x7f
	keyCtrlC     = 0x03
)

// Wrapper breaks page text into screen rows the same way the measurer counted them
type Wrapper interface {
	Wrap(text string, width int) []string
	StringWidth(s string) int
}

// Config holds configuration for the terminal pager
type Config struct {
	Reader  driving.ReaderService
	Wrapper Wrapper

	// Layout supplies font and spacing; the viewport comes from the terminal
	Layout domain.LayoutParams

	// Input defaults to stdin, Output to stdout
	Input  io.Reader
	Output io.Writer

	// Size used when the input is not a terminal
	Width  int
	Height int

	Logger *slog.Logger
}

// Pager is an interactive full-screen reader for one document
type Pager struct {
	reader  driving.ReaderService
	wrapper Wrapper
	layout  domain.LayoutParams
	input   io.Reader
	output  io.Writer
	writer  *bufio.Writer
	logger  *slog.Logger

	restoreTerm *term.State
	width       int
	height      int

	redraw chan struct{}

	prompting bool
	prompt    []byte
	message   string
}

// NewPager creates a terminal pager
func NewPager(cfg Config) *Pager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Input == nil {
		cfg.Input = os.Stdin
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if cfg.Width <= 0 {
		cfg.Width = defaultWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = defaultHeight
	}
	return &Pager{
		reader:  cfg.Reader,
		wrapper: cfg.Wrapper,
		layout:  cfg.Layout,
		input:   cfg.Input,
		output:  cfg.Output,
		writer:  bufio.NewWriter(cfg.Output),
		logger:  logger.With("component", "pager"),
		width:   cfg.Width,
		height:  cfg.Height,
		redraw:  make(chan struct{}, 1),
	}
}

// Notify asks for a redraw. Safe to call from any goroutine.
func (p *Pager) Notify() {
	select {
	case p.redraw <- struct{}{}:
	default:
	}
}

// Run opens uri and reads keys until the user quits, then closes the book
func (p *Pager) Run(ctx context.Context, uri string) error {
	if err := p.initTerminal(); err != nil {
		return err
	}
	defer p.cleanupTerminal()

	if _, err := p.reader.Open(ctx, uri, p.viewport()); err != nil {
		return err
	}
	defer func() {
		if err := p.reader.Close(context.WithoutCancel(ctx)); err != nil {
			p.logger.Warn("failed to save reading position", "error", err)
		}
	}()

	events, unsubscribe := p.reader.Subscribe()
	defer unsubscribe()

	keys := make(chan byte)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go p.readKeys(done, keys, readErr)

	if err := p.render(ctx); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		case key := <-keys:
			quit, err := p.handleKey(ctx, key)
			if err != nil {
				return err
			}
			if quit {
				return nil
			}
		case <-events:
		case <-p.redraw:
		}
		if err := p.render(ctx); err != nil {
			return err
		}
	}
}

func (p *Pager) readKeys(done <-chan struct{}, keys chan<- byte, errs chan<- error) {
	r := bufio.NewReader(p.input)
	for {
		b, err := r.ReadByte()
		if err != nil {
			errs <- err
			return
		}
		select {
		case keys <- b:
		case <-done:
			return
		}
	}
}

func (p *Pager) initTerminal() error {
	f, ok := p.input.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	if w, h, err := termGetSize(int(f.Fd())); err == nil && w > 0 && h > 1 {
		p.width, p.height = w, h
	}
	state, err := term.MakeRaw(int(f.Fd()))
	if err != nil {
		return fmt.Errorf("enter raw mode: %w", err)
	}
	p.restoreTerm = state
	p.writeString("\x1b[?7l")
	return nil
}

func (p *Pager) cleanupTerminal() {
	if p.restoreTerm != nil {
		p.writeString("\x1b[2J\x1b[H\x1b[?25h\x1b[?7h")
		_ = p.writer.Flush()
		if f, ok := p.input.(*os.File); ok {
			_ = term.Restore(int(f.Fd()), p.restoreTerm)
		}
		return
	}
	_ = p.writer.Flush()
}

// viewport is the layout the document is paginated against; the last row holds
// the status line
func (p *Pager) viewport() domain.LayoutParams {
	params := p.layout
	params.Width = p.width
	params.Height = p.height - 1
	return params
}

// handleKey applies one key press and reports whether the user quit
func (p *Pager) handleKey(ctx context.Context, key byte) (bool, error) {
	if p.prompting {
		p.handlePromptKey(key)
		return false, nil
	}

	p.message = ""
	var err error
	switch key {
	case 'q', keyCtrlC:
		return true, nil
	case 'n', ' ', 'l':
		_, err = p.reader.NextPage()
	case 'p', 'h':
		_, err = p.reader.PrevPage()
	case 'b':
		err = p.addBookmark(ctx)
	case 'g':
		p.prompting = true
		p.prompt = p.prompt[:0]
	}
	if errors.Is(err, domain.ErrNoOpenBook) {
		return true, nil
	}
	return false, err
}

func (p *Pager) handlePromptKey(key byte) {
	switch {
	case key >= '0' && key <= '9':
		if len(p.prompt) < 3 {
			p.prompt = append(p.prompt, key)
		}
	case key == keyBackspace || key == '\b':
		if len(p.prompt) > 0 {
			p.prompt = p.prompt[:len(p.prompt)-1]
		}
	case key == '\r' || key == '\n':
		p.prompting = false
		p.goToPercent(string(p.prompt))
	case key == keyEscape || key == keyCtrlC:
		p.prompting = false
	}
}

func (p *Pager) goToPercent(input string) {
	pct, err := strconv.Atoi(input)
	if err != nil {
		return
	}
	if pct > 100 {
		pct = 100
	}
	st, err := p.reader.Status()
	if err != nil {
		p.message = err.Error()
		return
	}
	target := st.EstimatedLength() * int64(pct) / 100
	st, err = p.reader.GoToOffset(target)
	if err != nil {
		p.message = err.Error()
		return
	}
	if st.Pending {
		p.message = fmt.Sprintf("going to %d%% once it is paginated", pct)
	}
}

func (p *Pager) addBookmark(ctx context.Context) error {
	b, err := p.reader.AddBookmark(ctx, "")
	switch {
	case errors.Is(err, domain.ErrDuplicateOffset):
		p.message = "already bookmarked"
		return nil
	case err != nil:
		return err
	}
	p.message = fmt.Sprintf("bookmarked %q", b.Title)
	return nil
}

func (p *Pager) render(ctx context.Context) error {
	st, err := p.reader.Status()
	if errors.Is(err, domain.ErrNoOpenBook) {
		return nil
	}
	if err != nil {
		return err
	}

	var rows []string
	if st.PageCount > 0 {
		text, err := p.reader.PageText(ctx, st.CurrentPage)
		if err != nil {
			p.logger.Warn("failed to load page text", "page", st.CurrentPage, "error", err)
			p.message = err.Error()
		}
		rows = p.wrapper.Wrap(text, p.width)
	}

	p.writeString("\x1b[?25l\x1b[H")
	for row := 0; row < p.height-1; row++ {
		p.writeString("\x1b[2K")
		if row < len(rows) {
			p.writeString(runewidth.Truncate(rows[row], p.width, ""))
		}
		p.writeString("\r\n")
	}
	p.writeString("\x1b[2K\x1b[7m")
	p.writeString(p.statusLine(st))
	p.writeString("\x1b[0m")
	return p.writer.Flush()
}

func (p *Pager) statusLine(st *domain.ReaderStatus) string {
	var b strings.Builder
	if p.prompting {
		fmt.Fprintf(&b, " go to %%: %s", p.prompt)
	} else {
		pages := strconv.Itoa(st.PageCount)
		if !st.Complete {
			pages += "+"
		}
		fmt.Fprintf(&b, " %s  %d/%s  %3.0f%%", st.Title, st.CurrentPage+1, pages, st.Progress()*100)
		switch {
		case p.message != "":
			fmt.Fprintf(&b, "  %s", p.message)
		case st.Error != "":
			fmt.Fprintf(&b, "  error: %s", st.Error)
		}
	}

	line := runewidth.Truncate(b.String(), p.width, "…")
	if pad := p.width - p.wrapper.StringWidth(line); pad > 0 {
		line += strings.Repeat(" ", pad)
	}
	return line
}

func (p *Pager) writeString(s string) {
	_, _ = p.writer.WriteString(s)
}
