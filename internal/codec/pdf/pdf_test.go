package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"testing"

	"codeberg.org/go-pdf/fpdf"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/stretchr/testify/require"

	"github.com/example/pagemark/internal/annotation"
	"github.com/example/pagemark/internal/codec"
	"github.com/example/pagemark/internal/document"
	"github.com/example/pagemark/internal/geometry"
)

// samplePDF produces a document with one page per size, each labelled with
// its page number.
func samplePDF(t *testing.T, sizes ...document.PageSize) []byte {
	t.Helper()
	pdf := fpdf.New("P", "pt", "", "")
	pdf.SetAutoPageBreak(false, 0)
	for i, s := range sizes {
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: s.Width, Ht: s.Height})
		pdf.SetFont("Helvetica", "", 24)
		pdf.Text(40, 80, fmt.Sprintf("page %d", i+1))
	}
	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))
	return buf.Bytes()
}

func pdfcpuConf() *model.Configuration {
	disableConfigDir.Do(api.DisableConfigDir)
	return model.NewDefaultConfiguration()
}

// compacted rewrites data the way current PDF tools do, with object streams
// and a cross-reference stream.
func compacted(t *testing.T, data []byte) []byte {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, api.Optimize(bytes.NewReader(data), &out, pdfcpuConf()))
	require.Contains(t, out.String(), "/ObjStm")
	return out.Bytes()
}

// rotated sets a 90 degree /Rotate on the given pages.
func rotated(t *testing.T, data []byte, pages ...string) []byte {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, api.Rotate(bytes.NewReader(data), &out, 90, pages, pdfcpuConf()))
	return out.Bytes()
}

var (
	letter = document.PageSize{Width: 612, Height: 792}
	small  = document.PageSize{Width: 400, Height: 500}
	blue   = color.RGBA{0, 0, 255, 255}
)

// rebuild copies every page of src and lets draw add marks to each copy.
func rebuild(t *testing.T, c *Codec, src *document.Document, draw func(n int, p codec.Page)) []byte {
	t.Helper()
	b, err := c.NewDocument()
	require.NoError(t, err)
	for n := 1; n <= src.PageCount(); n++ {
		p, err := b.CopyPage(src, n)
		require.NoError(t, err, "page %d", n)
		if draw != nil {
			draw(n, p)
		}
	}
	require.Equal(t, src.PageCount(), b.PageCount())
	var out bytes.Buffer
	require.NoError(t, b.Encode(&out))
	return out.Bytes()
}

func TestDecode(t *testing.T) {
	c := New()
	data := samplePDF(t, letter, document.PageSize{Width: 300, Height: 400}, letter)
	doc, err := c.Decode(data)
	require.NoError(t, err)
	require.Equal(t, 3, doc.PageCount())
	p, err := doc.Page(2)
	require.NoError(t, err)
	require.InDelta(t, 300, p.Width, 0.01)
	require.InDelta(t, 400, p.Height, 0.01)
}

func TestDecodeRotatedPageIsDisplaySize(t *testing.T) {
	c := New()
	doc, err := c.Decode(rotated(t, samplePDF(t, letter, letter), "2"))
	require.NoError(t, err)
	p, err := doc.Page(2)
	require.NoError(t, err)
	require.InDelta(t, 792, p.Width, 0.01)
	require.InDelta(t, 612, p.Height, 0.01)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	c := New()
	for _, in := range [][]byte{nil, []byte("not a pdf at all")} {
		_, err := c.Decode(in)
		var de *codec.SourceDecodeError
		require.True(t, errors.As(err, &de), "got %v", err)
	}
}

func TestBuilderPreservesPages(t *testing.T) {
	c := New()
	src, err := c.Decode(samplePDF(t, letter, letter, small, letter))
	require.NoError(t, err)

	red := color.RGBA{255, 0, 0, 255}
	out := rebuild(t, c, src, func(n int, p codec.Page) {
		if n != 3 {
			return
		}
		marks := []annotation.Annotation{
			{Page: 3, Kind: annotation.KindFreehand, Color: red, StrokeWidth: 2, Points: []geometry.Point{{X: 0, Y: 0}, {X: 400, Y: 500}}},
			{Page: 3, Kind: annotation.KindHighlight, Color: color.RGBA{255, 255, 0, 255}, Rect: geometry.Rect{X: 10, Y: 10, Width: 100, Height: 20}},
			{Page: 3, Kind: annotation.KindText, Color: red, At: geometry.Point{X: 20, Y: 450}, Text: "café", FontSize: 12},
			{Page: 3, Kind: annotation.KindShape, Shape: annotation.ShapeRect, Color: red, StrokeWidth: 1, Rect: geometry.Rect{X: 50, Y: 50, Width: 60, Height: 30}},
			{Page: 3, Kind: annotation.KindShape, Shape: annotation.ShapeCircle, Color: red, StrokeWidth: 1, Center: geometry.Point{X: 200, Y: 250}, Radius: 40},
		}
		for _, a := range marks {
			require.NoError(t, codec.Draw(p, a))
		}
	})
	n, err := c.PageCount(bytes.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, 4, n)

	rebuilt, err := c.Decode(out)
	require.NoError(t, err)
	require.Equal(t, src.Pages(), rebuilt.Pages())
}

func TestBuilderCopiesCompactedSource(t *testing.T) {
	c := New()
	src, err := c.Decode(compacted(t, samplePDF(t, letter, small, letter)))
	require.NoError(t, err)

	for _, draw := range []func(int, codec.Page){
		nil,
		func(n int, p codec.Page) {
			if n == 2 {
				require.NoError(t, p.DrawRect(geometry.Rect{X: 20, Y: 20, Width: 100, Height: 50}, 2, blue))
			}
		},
	} {
		out := rebuild(t, c, src, draw)
		rebuilt, err := c.Decode(out)
		require.NoError(t, err)
		require.Equal(t, src.Pages(), rebuilt.Pages())
	}
}

func TestBuilderRejectsOutOfOrderCopy(t *testing.T) {
	c := New()
	src, err := c.Decode(samplePDF(t, letter, letter))
	require.NoError(t, err)
	b, err := c.NewDocument()
	require.NoError(t, err)
	_, err = b.CopyPage(src, 2)
	require.Error(t, err)
}

func TestBuilderRejectsSecondSource(t *testing.T) {
	c := New()
	one, err := c.Decode(samplePDF(t, letter))
	require.NoError(t, err)
	two, err := c.Decode(samplePDF(t, letter, letter))
	require.NoError(t, err)
	b, err := c.NewDocument()
	require.NoError(t, err)
	_, err = b.CopyPage(one, 1)
	require.NoError(t, err)
	_, err = b.CopyPage(two, 2)
	require.Error(t, err)
}

func TestBuilderReportsBrokenSource(t *testing.T) {
	c := New()
	broken, err := document.New([]byte("%PDF-1.4\ngarbage"), []document.PageSize{letter})
	require.NoError(t, err)
	b, err := c.NewDocument()
	require.NoError(t, err)
	_, err = b.CopyPage(broken, 1)
	require.Error(t, err)
}

func startRenderer(t *testing.T) *Renderer {
	t.Helper()
	if testing.Short() {
		t.Skip("starts the pdfium runtime")
	}
	r := NewRenderer()
	t.Cleanup(func() { r.Close() })
	return r
}

func render(t *testing.T, r *Renderer, doc *document.Document, n int) *image.RGBA {
	t.Helper()
	img, err := r.RenderPage(context.Background(), doc, n, 1)
	require.NoError(t, err)
	return img
}

func TestRendererSize(t *testing.T) {
	r := startRenderer(t)
	c := New()
	doc, err := c.Decode(samplePDF(t, letter))
	require.NoError(t, err)

	img, err := r.RenderPage(context.Background(), doc, 1, 0.5)
	require.NoError(t, err)
	require.Equal(t, 306, img.Bounds().Dx())
	require.Equal(t, 396, img.Bounds().Dy())
}

func TestRebuildLeavesUnmarkedPagesIdentical(t *testing.T) {
	r := startRenderer(t)
	c := New()
	plain := samplePDF(t, letter, small, letter, small)
	fixtures := map[string][]byte{
		"fpdf":      plain,
		"compacted": compacted(t, plain),
		"rotated":   rotated(t, compacted(t, plain), "3"),
	}
	for name, data := range fixtures {
		t.Run(name, func(t *testing.T) {
			src, err := c.Decode(data)
			require.NoError(t, err)
			out, err := c.Decode(rebuild(t, c, src, func(n int, p codec.Page) {
				if n == 1 {
					require.NoError(t, p.DrawHighlight(geometry.Rect{X: 10, Y: 10, Width: 50, Height: 50}, 1, blue))
				}
			}))
			require.NoError(t, err)
			for n := 2; n <= src.PageCount(); n++ {
				want := render(t, r, src, n)
				got := render(t, r, out, n)
				require.Equal(t, want.Bounds(), got.Bounds(), "page %d", n)
				require.True(t, bytes.Equal(want.Pix, got.Pix), "page %d differs from the source", n)
			}
		})
	}
}

// TestMarksLandWhereDrawn checks a mark on a page whose size differs from
// the page before it, and on a rotated page.
func TestMarksLandWhereDrawn(t *testing.T) {
	r := startRenderer(t)
	c := New()
	src, err := c.Decode(rotated(t, compacted(t, samplePDF(t, letter, small, letter)), "3"))
	require.NoError(t, err)

	box := geometry.Rect{X: 60, Y: 60, Width: 80, Height: 40}
	out, err := c.Decode(rebuild(t, c, src, func(n int, p codec.Page) {
		if n > 1 {
			require.NoError(t, p.DrawHighlight(box, 1, blue))
		}
	}))
	require.NoError(t, err)

	for n := 2; n <= 3; n++ {
		size, err := src.Page(n)
		require.NoError(t, err)
		before := render(t, r, src, n)
		after := render(t, r, out, n)

		// Centre of the box in viewer pixels.
		x, y := 100, int(size.Height)-80
		require.Equal(t, color.RGBA{255, 255, 255, 255}, before.RGBAAt(x, y), "page %d", n)
		got := after.RGBAAt(x, y)
		require.True(t, got.B > 200 && got.R < 60 && got.G < 60, "page %d: mark missing at (%d,%d), got %v", n, x, y, got)

		// The page label is untouched.
		label := image.Rect(30, 50, 200, 90)
		if n == 3 {
			label = image.Rect(int(size.Width)-90, 30, int(size.Width)-50, 200)
		}
		for py := label.Min.Y; py < label.Max.Y; py++ {
			for px := label.Min.X; px < label.Max.X; px++ {
				require.Equal(t, before.RGBAAt(px, py), after.RGBAAt(px, py), "page %d pixel (%d,%d)", n, px, py)
			}
		}
	}
}

func TestTextKeepsNonLatinRunes(t *testing.T) {
	r := startRenderer(t)
	c := New()
	src, err := c.Decode(samplePDF(t, letter))
	require.NoError(t, err)
	const text = "Привет Ωμέγα"
	out := rebuild(t, c, src, func(n int, p codec.Page) {
		require.NoError(t, p.DrawText(geometry.Point{X: 72, Y: 400}, text, 18, blue))
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	require.NoError(t, r.ensure())
	opened, err := r.instance.OpenDocument(&requests.OpenDocument{File: &out})
	require.NoError(t, err)
	defer r.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{Document: opened.Document})
	res, err := r.instance.GetPageText(&requests.GetPageText{
		Page: requests.Page{ByIndex: &requests.PageByIndex{Document: opened.Document, Index: 0}},
	})
	require.NoError(t, err)
	require.Contains(t, res.Text, "Привет")
	require.Contains(t, res.Text, "Ωμέγα")
}
