// Package codectest provides an in-memory text codec for tests of code that
// sits on top of the codec boundary. A document is a header line followed by
// one block per page: a "page W H label" line and one line per drawn mark.
// Comparing blocks stands in for comparing rendered pages.
package codectest

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"math"
	"strings"
	"sync"

	"github.com/example/pagemark/internal/codec"
	"github.com/example/pagemark/internal/document"
	"github.com/example/pagemark/internal/geometry"
)

const header = "codectest 1"

// Source returns a document with one page per size.
func Source(sizes ...document.PageSize) []byte {
	var b strings.Builder
	b.WriteString(header + "\n")
	for i, s := range sizes {
		fmt.Fprintf(&b, "page %g %g source-%d\n", s.Width, s.Height, i+1)
	}
	return []byte(b.String())
}

// Uniform returns a document of n pages of the same size.
func Uniform(n int, size document.PageSize) []byte {
	sizes := make([]document.PageSize, n)
	for i := range sizes {
		sizes[i] = size
	}
	return Source(sizes...)
}

// Pages splits a document into its page blocks.
func Pages(data []byte) ([]string, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	if !sc.Scan() || sc.Text() != header {
		return nil, errors.New("missing header")
	}
	var pages []string
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "page "):
			pages = append(pages, line)
		case strings.HasPrefix(line, "draw ") && len(pages) > 0:
			pages[len(pages)-1] += "\n" + line
		case line == "":
		default:
			return nil, fmt.Errorf("unexpected line %q", line)
		}
	}
	return pages, sc.Err()
}

// Codec implements codec.Codec. The hooks let tests inject failures and
// pauses; they may be called from any goroutine.
type Codec struct {
	// OnCopy runs before page n is copied; a non-nil error fails the copy.
	OnCopy func(n int) error
	// DropPage makes the builder silently skip copying that page.
	DropPage int

	mu     sync.Mutex
	copies int
}

var _ codec.Codec = (*Codec)(nil)

// Copies returns the number of pages copied by all builders.
func (c *Codec) Copies() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copies
}

func (c *Codec) Decode(data []byte) (*document.Document, error) {
	pages, err := Pages(data)
	if err != nil {
		return nil, &codec.SourceDecodeError{Err: err}
	}
	if len(pages) == 0 {
		return nil, &codec.SourceDecodeError{Err: document.ErrNoPages}
	}
	sizes := make([]document.PageSize, len(pages))
	for i, p := range pages {
		if _, err := fmt.Sscanf(p, "page %g %g", &sizes[i].Width, &sizes[i].Height); err != nil {
			return nil, &codec.SourceDecodeError{Err: fmt.Errorf("page %d: %w", i+1, err)}
		}
	}
	doc, err := document.New(data, sizes)
	if err != nil {
		return nil, &codec.SourceDecodeError{Err: err}
	}
	return doc, nil
}

func (c *Codec) NewDocument() (codec.Builder, error) {
	return &builder{c: c}, nil
}

type builder struct {
	c     *Codec
	pages []*page
}

func (b *builder) CopyPage(src *document.Document, n int) (codec.Page, error) {
	if b.c.OnCopy != nil {
		if err := b.c.OnCopy(n); err != nil {
			return nil, err
		}
	}
	pages, err := Pages(src.Bytes())
	if err != nil {
		return nil, err
	}
	if n < 1 || n > len(pages) {
		return nil, fmt.Errorf("page %d out of range", n)
	}
	p := &page{lines: []string{strings.SplitN(pages[n-1], "\n", 2)[0]}}
	if n != b.c.DropPage {
		b.pages = append(b.pages, p)
	}
	b.c.mu.Lock()
	b.c.copies++
	b.c.mu.Unlock()
	return p, nil
}

func (b *builder) PageCount() int { return len(b.pages) }

func (b *builder) Encode(w io.Writer) error {
	var buf bytes.Buffer
	buf.WriteString(header + "\n")
	for _, p := range b.pages {
		for _, l := range p.lines {
			buf.WriteString(l + "\n")
		}
	}
	_, err := w.Write(buf.Bytes())
	return err
}

type page struct {
	lines []string
}

func (p *page) add(format string, args ...any) error {
	p.lines = append(p.lines, "draw "+fmt.Sprintf(format, args...))
	return nil
}

func hex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

func (p *page) DrawFreehand(points []geometry.Point, width float64, c color.RGBA) error {
	var b strings.Builder
	for _, pt := range points {
		fmt.Fprintf(&b, " %g,%g", pt.X, pt.Y)
	}
	return p.add("freehand %g %s%s", width, hex(c), b.String())
}

func (p *page) DrawText(at geometry.Point, text string, size float64, c color.RGBA) error {
	return p.add("text %g,%g %g %s %q", at.X, at.Y, size, hex(c), text)
}

func (p *page) DrawHighlight(r geometry.Rect, opacity float64, c color.RGBA) error {
	return p.add("highlight %g,%g %gx%g %g %s", r.X, r.Y, r.Width, r.Height, opacity, hex(c))
}

func (p *page) DrawRect(r geometry.Rect, width float64, c color.RGBA) error {
	return p.add("rect %g,%g %gx%g %g %s", r.X, r.Y, r.Width, r.Height, width, hex(c))
}

func (p *page) DrawCircle(center geometry.Point, radius, width float64, c color.RGBA) error {
	return p.add("circle %g,%g %g %g %s", center.X, center.Y, radius, width, hex(c))
}

// Renderer paints each page white at the requested scale.
type Renderer struct {
	mu    sync.Mutex
	calls int
}

var _ codec.Renderer = (*Renderer)(nil)

func (r *Renderer) RenderPage(ctx context.Context, doc *document.Document, n int, scale float64) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	size, err := doc.Page(n)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	img := image.NewRGBA(image.Rect(0, 0, int(math.Round(size.Width*scale)), int(math.Round(size.Height*scale))))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	return img, nil
}

// Calls returns the number of pages rendered.
func (r *Renderer) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}
