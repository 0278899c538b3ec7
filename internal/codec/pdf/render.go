package pdf

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"math"
	"sync"
	"time"

	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/klippa-app/go-pdfium/webassembly"

	"github.com/example/pagemark/internal/codec"
	"github.com/example/pagemark/internal/document"
)

const instanceTimeout = 30 * time.Second

// Renderer rasterises PDF pages with a single pdfium WebAssembly instance.
// The runtime is started on first use; calls are serialised.
type Renderer struct {
	mu       sync.Mutex
	pool     pdfium.Pool
	instance pdfium.Pdfium
}

var _ codec.Renderer = (*Renderer)(nil)

// NewRenderer returns a Renderer. Close releases the runtime.
func NewRenderer() *Renderer {
	return &Renderer{}
}

func (r *Renderer) ensure() error {
	if r.instance != nil {
		return nil
	}
	pool, err := webassembly.Init(webassembly.Config{MinIdle: 1, MaxIdle: 1, MaxTotal: 1})
	if err != nil {
		return fmt.Errorf("start pdfium: %w", err)
	}
	instance, err := pool.GetInstance(instanceTimeout)
	if err != nil {
		pool.Close()
		return fmt.Errorf("start pdfium: %w", err)
	}
	r.pool = pool
	r.instance = instance
	return nil
}

// RenderPage rasterises page n of doc onto a white background.
func (r *Renderer) RenderPage(ctx context.Context, doc *document.Document, n int, scale float64) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	size, err := doc.Page(n)
	if err != nil {
		return nil, err
	}
	if !(scale > 0) {
		return nil, fmt.Errorf("render page %d: invalid scale %g", n, scale)
	}
	w := int(math.Round(size.Width * scale))
	h := int(math.Round(size.Height * scale))

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensure(); err != nil {
		return nil, err
	}

	data := doc.Bytes()
	opened, err := r.instance.OpenDocument(&requests.OpenDocument{File: &data})
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", n, err)
	}
	defer r.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{Document: opened.Document})

	res, err := r.instance.RenderPageInPixels(&requests.RenderPageInPixels{
		Page: requests.Page{
			ByIndex: &requests.PageByIndex{Document: opened.Document, Index: n - 1},
		},
		Width:  w,
		Height: h,
	})
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", n, err)
	}
	defer res.Cleanup()

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(out, out.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), res.Result.Image, res.Result.Image.Bounds().Min, draw.Over)
	return out, nil
}

// Close shuts the pdfium runtime down.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.instance == nil {
		return nil
	}
	err := r.instance.Close()
	if perr := r.pool.Close(); err == nil {
		err = perr
	}
	r.instance, r.pool = nil, nil
	return err
}
