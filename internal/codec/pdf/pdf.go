// Package pdf implements the document codec for PDF files. Sources are read
// and rewritten with pdfcpu, marks are drawn with fpdf onto overlay pages that
// pdfcpu stamps over the source pages, and previews are rasterised with
// pdfium.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/example/pagemark/internal/codec"
	"github.com/example/pagemark/internal/document"
)

var disableConfigDir sync.Once

// Codec is safe for concurrent use; every NewDocument call returns an
// independent builder.
type Codec struct {
	compress bool
}

// Option configures a Codec.
type Option func(*Codec)

// WithCompression enables stream compression in output documents. It is off
// by default.
func WithCompression(on bool) Option { return func(c *Codec) { c.compress = on } }

// New creates a PDF codec.
func New(opts ...Option) *Codec {
	disableConfigDir.Do(api.DisableConfigDir)
	c := &Codec{}
	for _, o := range opts {
		o(c)
	}
	return c
}

// config returns a fresh pdfcpu configuration; pdfcpu records per-command
// state in it.
func (c *Codec) config() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

var _ codec.Codec = (*Codec)(nil)

var errNoPages = errors.New("no pages found")

// Decode reads the page geometry of a PDF. A page's size is its visible
// region, the crop box or else the media box, as displayed after the page's
// rotation.
func (c *Codec) Decode(data []byte) (*document.Document, error) {
	if len(data) == 0 {
		return nil, &codec.SourceDecodeError{Err: errors.New("empty input")}
	}
	ctx, err := api.ReadAndValidate(bytes.NewReader(data), c.config())
	if err != nil {
		return nil, &codec.SourceDecodeError{Err: err}
	}
	boxes, err := ctx.PageBoundaries(nil)
	if err != nil {
		return nil, &codec.SourceDecodeError{Err: err}
	}
	if len(boxes) == 0 {
		return nil, &codec.SourceDecodeError{Err: errNoPages}
	}
	if len(boxes) != ctx.PageCount {
		return nil, &codec.SourceDecodeError{Err: fmt.Errorf("%d page boxes for %d pages", len(boxes), ctx.PageCount)}
	}
	sizes := make([]document.PageSize, len(boxes))
	for i, pb := range boxes {
		r := pb.CropBox()
		if r == nil {
			return nil, &codec.SourceDecodeError{Err: fmt.Errorf("page %d has no media box", i+1)}
		}
		w, h := r.Width(), r.Height()
		if pb.Rot%180 != 0 {
			w, h = h, w
		}
		sizes[i] = document.PageSize{Width: w, Height: h}
	}
	doc, err := document.New(data, sizes)
	if err != nil {
		return nil, &codec.SourceDecodeError{Err: err}
	}
	return doc, nil
}

// PageCount counts the pages of an encoded PDF without building a Document.
func (c *Codec) PageCount(r io.ReadSeeker) (int, error) {
	n, err := api.PageCount(r, c.config())
	if err != nil {
		return 0, fmt.Errorf("count pages: %w", err)
	}
	return n, nil
}
