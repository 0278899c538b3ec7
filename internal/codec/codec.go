// Package codec defines the boundary to format-specific document codecs:
// decoding source bytes, rendering page previews and building output
// documents page by page.
package codec

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/example/pagemark/internal/annotation"
	"github.com/example/pagemark/internal/document"
	"github.com/example/pagemark/internal/geometry"
)

// SourceDecodeError reports source bytes that could not be decoded.
type SourceDecodeError struct {
	Err error
}

func (e *SourceDecodeError) Error() string {
	return fmt.Sprintf("decode source: %v", e.Err)
}

func (e *SourceDecodeError) Unwrap() error { return e.Err }

// Decoder turns raw bytes into a Document. Failures are *SourceDecodeError.
type Decoder interface {
	Decode(data []byte) (*document.Document, error)
}

// Renderer rasterises one page (1-indexed) at the given scale. The image is
// round(width*scale) by round(height*scale) pixels.
type Renderer interface {
	RenderPage(ctx context.Context, doc *document.Document, page int, scale float64) (*image.RGBA, error)
}

// Page is a page that has been copied into an output document. All
// coordinates are in document space (origin bottom-left).
type Page interface {
	DrawFreehand(points []geometry.Point, width float64, c color.RGBA) error
	DrawText(at geometry.Point, text string, size float64, c color.RGBA) error
	DrawHighlight(r geometry.Rect, opacity float64, c color.RGBA) error
	DrawRect(r geometry.Rect, width float64, c color.RGBA) error
	DrawCircle(center geometry.Point, radius, width float64, c color.RGBA) error
}

// Builder assembles a new output document.
type Builder interface {
	// CopyPage appends page n of src verbatim and returns it for drawing.
	CopyPage(src *document.Document, n int) (Page, error)
	PageCount() int
	Encode(w io.Writer) error
}

// Codec decodes sources and creates empty output documents.
type Codec interface {
	Decoder
	NewDocument() (Builder, error)
}

// Draw renders a onto p using the method for its kind.
func Draw(p Page, a annotation.Annotation) error {
	switch a.Kind {
	case annotation.KindFreehand:
		return p.DrawFreehand(a.Points, a.StrokeWidth, a.Color)
	case annotation.KindText:
		return p.DrawText(a.At, a.Text, a.FontSize, a.Color)
	case annotation.KindHighlight:
		return p.DrawHighlight(a.Rect, annotation.HighlightOpacity, a.Color)
	case annotation.KindShape:
		if a.Shape == annotation.ShapeCircle {
			return p.DrawCircle(a.Center, a.Radius, a.StrokeWidth, a.Color)
		}
		return p.DrawRect(a.Rect, a.StrokeWidth, a.Color)
	}
	return fmt.Errorf("draw: unsupported annotation kind %v", a.Kind)
}
