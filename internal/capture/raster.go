package capture

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

var (
	textFont = sync.OnceValues(func() (*opentype.Font, error) {
		return opentype.Parse(goregular.TTF)
	})
	textFaces sync.Map // map[float64]font.Face
)

func faceForSize(size float64) (font.Face, error) {
	if !(size > 0) {
		return nil, fmt.Errorf("text size %g", size)
	}
	if face, ok := textFaces.Load(size); ok {
		return face.(font.Face), nil
	}
	f, err := textFont()
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, err
	}
	actual, _ := textFaces.LoadOrStore(size, face)
	return actual.(font.Face), nil
}

// drawText renders text with its baseline starting at (x, y).
func drawText(img *image.RGBA, x, y int, text string, col color.Color, size float64) error {
	face, err := faceForSize(size)
	if err != nil {
		return err
	}
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
	return nil
}

func setThickPixel(img *image.RGBA, x, y, thick int, col color.Color) {
	r := thick / 2
	fillSpan(img, image.Rect(x-r, y-r, x+r+1, y+r+1), col)
}

// fillSpan sets every pixel of rect that lies inside img to col.
func fillSpan(img *image.RGBA, rect image.Rectangle, col color.Color) {
	draw.Draw(img, rect.Intersect(img.Bounds()), image.NewUniform(col), image.Point{}, draw.Src)
}

// clipSegment trims the segment to the rectangle [lo, hi] (Liang-Barsky).
// ok is false when no part of it lies inside.
func clipSegment(x0, y0, x1, y1 float64, lo, hi image.Point) (cx0, cy0, cx1, cy1 float64, ok bool) {
	dx, dy := x1-x0, y1-y0
	t0, t1 := 0.0, 1.0
	for _, e := range [4][2]float64{
		{-dx, x0 - float64(lo.X)},
		{dx, float64(hi.X) - x0},
		{-dy, y0 - float64(lo.Y)},
		{dy, float64(hi.Y) - y0},
	} {
		p, q := e[0], e[1]
		if p == 0 {
			if q < 0 {
				return 0, 0, 0, 0, false
			}
			continue
		}
		r := q / p
		if p < 0 {
			if r > t1 {
				return 0, 0, 0, 0, false
			}
			t0 = math.Max(t0, r)
		} else {
			if r < t0 {
				return 0, 0, 0, 0, false
			}
			t1 = math.Min(t1, r)
		}
	}
	return x0 + t0*dx, y0 + t0*dy, x0 + t1*dx, y0 + t1*dy, true
}

// clipToImage clips the segment to img grown by pad pixels on every side.
func clipToImage(img *image.RGBA, x0, y0, x1, y1, pad int) (int, int, int, int, bool) {
	b := img.Bounds()
	lo := image.Pt(b.Min.X-pad, b.Min.Y-pad)
	hi := image.Pt(b.Max.X-1+pad, b.Max.Y-1+pad)
	fx0, fy0, fx1, fy1, ok := clipSegment(float64(x0), float64(y0), float64(x1), float64(y1), lo, hi)
	if !ok {
		return 0, 0, 0, 0, false
	}
	return round(fx0), round(fy0), round(fx1), round(fy1), true
}

// drawLine paints the union of thick-pixel squares centred on the Bresenham
// points of the segment. Bresenham points are monotone in x and y, so the
// squares covering one image row span from the run of points at the lowest
// y in reach to the run at the highest; each row is filled as one span.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, col color.Color, thick int) {
	r := thick / 2
	x0, y0, x1, y1, ok := clipToImage(img, x0, y0, x1, y1, r+1)
	if !ok {
		return
	}
	b := img.Bounds()
	ya, yb := min(y0, y1), max(y0, y1)
	type run struct{ lo, hi int }
	runs := make(map[int]*run)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		lo, hi := max(ya, y-r), min(yb, y+r)
		if lo > hi {
			continue
		}
		for _, k := range [2]int{lo, hi} {
			if runs[k] == nil {
				runs[k] = &run{math.MaxInt, math.MinInt}
			}
		}
	}
	bresenham(x0, y0, x1, y1, func(x, y int) {
		if rn := runs[y]; rn != nil {
			rn.lo, rn.hi = min(rn.lo, x), max(rn.hi, x)
		}
	})
	for y := b.Min.Y; y < b.Max.Y; y++ {
		lo, hi := max(ya, y-r), min(yb, y+r)
		if lo > hi {
			continue
		}
		first, last := runs[lo], runs[hi]
		xs := min(first.lo, last.lo) - r
		xe := max(first.hi, last.hi) + r
		fillSpan(img, image.Rect(xs, y, xe+1, y+1), col)
	}
}

func bresenham(x0, y0, x1, y1 int, plot func(x, y int)) {
	dx := abs(x1 - x0)
	dy := abs(y1 - y0)
	sx, sy := -1, -1
	if x0 < x1 {
		sx = 1
	}
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy
	for {
		plot(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

func drawCircleThin(img *image.RGBA, cx, cy, r int, col color.Color) {
	if bd := img.Bounds(); r > bd.Dx()+bd.Dy() {
		drawArcSampled(img, cx, cy, r, col)
		return
	}
	x, y := r, 0
	err := 1 - r
	for x >= y {
		for _, p := range [][2]int{{x, y}, {y, x}, {-y, x}, {-x, y}, {-x, -y}, {-y, -x}, {y, -x}, {x, -y}} {
			pt := image.Pt(cx+p[0], cy+p[1])
			if pt.In(img.Bounds()) {
				img.Set(pt.X, pt.Y, col)
			}
		}
		y++
		if err < 0 {
			err += 2*y + 1
		} else {
			x--
			err += 2 * (y - x + 1)
		}
	}
}

// drawArcSampled plots a circle too large to walk point by point: every image
// column and row it crosses gets the nearest circle pixel.
func drawArcSampled(img *image.RGBA, cx, cy, r int, col color.Color) {
	b := img.Bounds()
	rr := float64(r) * float64(r)
	for x := b.Min.X; x < b.Max.X; x++ {
		if d := float64(x - cx); math.Abs(d) <= float64(r) {
			off := round(math.Sqrt(rr - d*d))
			img.Set(x, cy-off, col)
			img.Set(x, cy+off, col)
		}
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		if d := float64(y - cy); math.Abs(d) <= float64(r) {
			off := round(math.Sqrt(rr - d*d))
			img.Set(cx-off, y, col)
			img.Set(cx+off, y, col)
		}
	}
}

// ringReach returns the distance from (cx, cy) to the nearest and the
// farthest pixel of b.
func ringReach(b image.Rectangle, cx, cy int) (near, far float64) {
	gap := func(v, lo, hi int) int { return max(lo-v, 0, v-hi) }
	near = math.Hypot(float64(gap(cx, b.Min.X, b.Max.X-1)), float64(gap(cy, b.Min.Y, b.Max.Y-1)))
	far = math.Hypot(
		float64(max(abs(cx-b.Min.X), abs(cx-b.Max.X+1))),
		float64(max(abs(cy-b.Min.Y), abs(cy-b.Max.Y+1))),
	)
	return near, far
}

func drawCircle(img *image.RGBA, cx, cy, r int, col color.Color, thick int) {
	near, far := ringReach(img.Bounds(), cx, cy)
	start := 0
	if thick > 1 {
		start = -thick / 2
	}
	for i := 0; i < max(thick, 1); i++ {
		rr := r + start + i
		if rr < 0 || float64(rr) < near-2 || float64(rr) > far+2 {
			continue
		}
		drawCircleThin(img, cx, cy, rr, col)
	}
}

func drawRect(img *image.RGBA, rect image.Rectangle, col color.Color, thick int) {
	drawLine(img, rect.Min.X, rect.Min.Y, rect.Max.X-1, rect.Min.Y, col, thick)
	drawLine(img, rect.Max.X-1, rect.Min.Y, rect.Max.X-1, rect.Max.Y-1, col, thick)
	drawLine(img, rect.Max.X-1, rect.Max.Y-1, rect.Min.X, rect.Max.Y-1, col, thick)
	drawLine(img, rect.Min.X, rect.Max.Y-1, rect.Min.X, rect.Min.Y, col, thick)
}

// fillRect composites col over rect at the given opacity.
func fillRect(img *image.RGBA, rect image.Rectangle, col color.RGBA, opacity float64) {
	c := color.NRGBA{R: col.R, G: col.G, B: col.B, A: uint8(math.Round(opacity * 255))}
	draw.Draw(img, rect.Intersect(img.Bounds()), image.NewUniform(c), image.Point{}, draw.Over)
}

// restoreDisc copies the pixels of base inside the disc at (cx, cy) back
// onto img.
func restoreDisc(img, base *image.RGBA, cx, cy, r int) {
	bounds := img.Bounds().Intersect(base.Bounds())
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy > r*r {
				continue
			}
			p := image.Pt(cx+dx, cy+dy)
			if p.In(bounds) {
				img.SetRGBA(p.X, p.Y, base.RGBAAt(p.X, p.Y))
			}
		}
	}
}

// restoreLine erases along the segment by stamping discs at most r/2 apart.
func restoreLine(img, base *image.RGBA, x0, y0, x1, y1, r int) {
	x0, y0, x1, y1, ok := clipToImage(img, x0, y0, x1, y1, r+1)
	if !ok {
		return
	}
	steps := 1
	if d := math.Hypot(float64(x1-x0), float64(y1-y0)); r > 1 {
		steps = max(1, int(math.Ceil(2*d/float64(r))))
	} else {
		steps = max(1, int(math.Ceil(d)))
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		x := x0 + int(math.Round(t*float64(x1-x0)))
		y := y0 + int(math.Round(t*float64(y1-y0)))
		restoreDisc(img, base, x, y, r)
	}
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	return dst
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func round(v float64) int { return int(math.Round(v)) }

func thickness(w float64) int { return max(1, round(w)) }
