// Package render composes page previews for output: a rendered page placed
// on a backdrop with a soft drop shadow, the way a viewer shows a sheet of
// paper.
package render

import (
	"image"
	"image/color"
	"image/draw"
)

// SheetOptions configures Sheet.
type SheetOptions struct {
	// Margin is the backdrop visible around the page on every side.
	Margin  int
	Blur    int
	Offset  image.Point
	Opacity float64
	// Backdrop fills the canvas behind the page and its shadow.
	Backdrop color.RGBA
}

// DefaultSheetOptions returns the look used by preview -shadow.
func DefaultSheetOptions() SheetOptions {
	return SheetOptions{
		Margin:   32,
		Blur:     12,
		Offset:   image.Pt(6, 8),
		Opacity:  0.45,
		Backdrop: color.RGBA{0xE4, 0xE4, 0xE7, 0xFF},
	}
}

// Sheet returns a new image with page centred on the backdrop and a blurred
// shadow below it. page is not modified. The page's top-left corner lands at
// (Margin, Margin) of the result.
func Sheet(page *image.RGBA, opts SheetOptions) *image.RGBA {
	if page == nil || page.Bounds().Empty() {
		return page
	}
	margin := max(opts.Margin, 0)
	blur := max(opts.Blur, 0)
	opacity := min(max(opts.Opacity, 0), 1)

	pb := page.Bounds()
	canvas := image.Rect(0, 0, pb.Dx()+2*margin, pb.Dy()+2*margin)
	dst := image.NewRGBA(canvas)
	draw.Draw(dst, canvas, image.NewUniform(opts.Backdrop), image.Point{}, draw.Src)

	at := image.Rect(margin, margin, margin+pb.Dx(), margin+pb.Dy())
	if alpha := uint8(opacity*255 + 0.5); alpha > 0 {
		// Pages are opaque, so the shadow is the page rectangle blurred.
		mask := image.NewGray(canvas)
		draw.Draw(mask, at.Add(opts.Offset).Intersect(canvas), image.White, image.Point{}, draw.Src)
		shadow := blurGray(mask, blur)
		draw.DrawMask(dst, canvas, image.NewUniform(color.RGBA{0, 0, 0, alpha}), image.Point{}, shadow, image.Point{}, draw.Over)
	}
	draw.Draw(dst, at, page, pb.Min, draw.Src)
	return dst
}

// blurGray is a separable box blur of the given radius.
func blurGray(src *image.Gray, radius int) *image.Gray {
	if radius <= 0 {
		out := image.NewGray(src.Bounds())
		copy(out.Pix, src.Pix)
		return out
	}
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	tmp := image.NewGray(bounds)
	dst := image.NewGray(bounds)

	prefix := make([]int, max(w, h)+1)
	for y := 0; y < h; y++ {
		row := y * src.Stride
		for x := 0; x < w; x++ {
			prefix[x+1] = prefix[x] + int(src.Pix[row+x])
		}
		for x := 0; x < w; x++ {
			x0, x1 := max(x-radius, 0), min(x+radius, w-1)
			tmp.Pix[y*tmp.Stride+x] = uint8((prefix[x1+1] - prefix[x0]) / (x1 - x0 + 1))
		}
	}
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			prefix[y+1] = prefix[y] + int(tmp.Pix[y*tmp.Stride+x])
		}
		for y := 0; y < h; y++ {
			y0, y1 := max(y-radius, 0), min(y+radius, h-1)
			dst.Pix[y*dst.Stride+x] = uint8((prefix[y1+1] - prefix[y0]) / (y1 - y0 + 1))
		}
	}
	return dst
}
