package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"io"

	"codeberg.org/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/example/pagemark/internal/codec"
	"github.com/example/pagemark/internal/document"
	"github.com/example/pagemark/internal/geometry"
)

const (
	textFont = "goregular"
	producer = "pagemark"

	// Each overlay page has the size of its target page, so it is stamped
	// centred at its natural size.
	stampDesc = "position:c, scalefactor:1 abs, rotation:0"
)

// builder copies pages by keeping the source's own page objects. Marks are
// drawn with fpdf onto an overlay with one page per copied page, and Encode
// stamps the overlay pages that carry marks onto their source pages with
// pdfcpu. Pages without marks are written exactly as the source had them.
type builder struct {
	conf    *model.Configuration
	overlay *fpdf.Fpdf

	src    *document.Document
	ctx    *model.Context
	copied []int
	marked types.IntSet
}

// NewDocument returns an empty output document.
func (c *Codec) NewDocument() (codec.Builder, error) {
	overlay := fpdf.New("P", "pt", "", "")
	overlay.SetCompression(c.compress)
	overlay.SetAutoPageBreak(false, 0)
	overlay.SetMargins(0, 0, 0)
	overlay.SetProducer(producer, true)
	overlay.AddUTF8FontFromBytes(textFont, "", goregular.TTF)
	if err := overlay.Error(); err != nil {
		return nil, fmt.Errorf("new document: %w", err)
	}
	conf := c.config()
	conf.Cmd = model.ADDWATERMARKS
	conf.WriteObjectStream = c.compress
	conf.WriteXRefStream = c.compress
	return &builder{conf: conf, overlay: overlay, marked: types.IntSet{}}, nil
}

// bind reads src once; a builder serves exactly one source.
func (b *builder) bind(src *document.Document) error {
	switch {
	case b.src == src:
		return nil
	case b.src != nil:
		return errors.New("builder is bound to a different source document")
	}
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(src.Bytes()), b.conf)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}
	b.src, b.ctx = src, ctx
	return nil
}

func (b *builder) CopyPage(src *document.Document, n int) (codec.Page, error) {
	size, err := src.Page(n)
	if err != nil {
		return nil, err
	}
	if err := b.bind(src); err != nil {
		return nil, err
	}
	if want := len(b.copied) + 1; n != want {
		return nil, fmt.Errorf("page %d copied out of order, want page %d", n, want)
	}
	d, _, _, err := b.ctx.PageDict(n, false)
	if err != nil {
		return nil, fmt.Errorf("import page %d: %w", n, err)
	}
	if d == nil {
		return nil, fmt.Errorf("import page %d: no page object", n)
	}
	b.overlay.AddPageFormat("P", fpdf.SizeType{Wd: size.Width, Ht: size.Height})
	if err := b.overlay.Error(); err != nil {
		return nil, fmt.Errorf("import page %d: %w", n, err)
	}
	b.copied = append(b.copied, n)
	return &page{b: b, index: len(b.copied), height: size.Height}, nil
}

func (b *builder) PageCount() int { return len(b.copied) }

func (b *builder) Encode(w io.Writer) error {
	if b.ctx == nil {
		return errors.New("encode: no pages")
	}
	if len(b.copied) != b.ctx.PageCount {
		return fmt.Errorf("encode: %d of %d pages copied", len(b.copied), b.ctx.PageCount)
	}
	if err := b.overlay.Error(); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if len(b.marked) > 0 {
		var overlay bytes.Buffer
		if err := b.overlay.Output(&overlay); err != nil {
			return fmt.Errorf("encode overlay: %w", err)
		}
		wm, err := api.PDFMultiWatermarkForReadSeeker(bytes.NewReader(overlay.Bytes()), 1, 1, stampDesc, true, false, types.POINTS)
		if err != nil {
			return fmt.Errorf("encode overlay: %w", err)
		}
		if err := api.WatermarkContext(b.ctx, b.marked, wm); err != nil {
			return fmt.Errorf("stamp marks: %w", err)
		}
	}
	if err := api.WriteContext(b.ctx, w); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// page draws onto the overlay page of one copied page. fpdf measures y
// downward from the top edge, so document-space y values are flipped here.
type page struct {
	b      *builder
	index  int
	height float64
}

func (p *page) y(v float64) float64 { return p.height - v }

// begin marks p for stamping. fpdf keeps one graphics state for the page
// being written, so only the most recently copied page accepts marks.
func (p *page) begin() *fpdf.Fpdf {
	pdf := p.b.overlay
	if cur := pdf.PageNo(); cur != p.index {
		pdf.SetErrorf("draw on page %d after page %d was copied", p.index, cur)
	}
	p.b.marked[p.index] = true
	return pdf
}

func (p *page) stroke(c color.RGBA, width float64) *fpdf.Fpdf {
	pdf := p.begin()
	pdf.SetDrawColor(int(c.R), int(c.G), int(c.B))
	pdf.SetLineWidth(width)
	pdf.SetLineCapStyle("round")
	pdf.SetLineJoinStyle("round")
	pdf.SetAlpha(float64(c.A)/255, "Normal")
	return pdf
}

func (p *page) done() error {
	p.b.overlay.SetAlpha(1, "Normal")
	return p.b.overlay.Error()
}

func (p *page) DrawFreehand(points []geometry.Point, width float64, c color.RGBA) error {
	if len(points) < 2 {
		return errors.New("freehand needs at least 2 points")
	}
	pdf := p.stroke(c, width)
	pdf.MoveTo(points[0].X, p.y(points[0].Y))
	for _, pt := range points[1:] {
		pdf.LineTo(pt.X, p.y(pt.Y))
	}
	pdf.DrawPath("D")
	return p.done()
}

func (p *page) DrawText(at geometry.Point, text string, size float64, c color.RGBA) error {
	pdf := p.begin()
	pdf.SetFont(textFont, "", size)
	pdf.SetTextColor(int(c.R), int(c.G), int(c.B))
	pdf.SetAlpha(float64(c.A)/255, "Normal")
	pdf.Text(at.X, p.y(at.Y), text)
	return p.done()
}

func (p *page) DrawHighlight(r geometry.Rect, opacity float64, c color.RGBA) error {
	pdf := p.begin()
	pdf.SetFillColor(int(c.R), int(c.G), int(c.B))
	pdf.SetAlpha(opacity, "Multiply")
	pdf.Rect(r.X, p.y(r.Y+r.Height), r.Width, r.Height, "F")
	return p.done()
}

func (p *page) DrawRect(r geometry.Rect, width float64, c color.RGBA) error {
	p.stroke(c, width).Rect(r.X, p.y(r.Y+r.Height), r.Width, r.Height, "D")
	return p.done()
}

func (p *page) DrawCircle(center geometry.Point, radius, width float64, c color.RGBA) error {
	p.stroke(c, width).Circle(center.X, p.y(center.Y), radius, "D")
	return p.done()
}
