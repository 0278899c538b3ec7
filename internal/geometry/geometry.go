// Package geometry converts between viewer space (raster pixels of a page
// preview, origin top-left, y down) and document space (page units, origin
// bottom-left, y up).
package geometry

import (
	"fmt"
	"math"
)

// Epsilon is the tolerance used when comparing document-space coordinates.
const Epsilon = 1e-6

// Limit bounds stored coordinates and lengths. PDF pages are at most 14400
// units a side.
const Limit = 1e6

// InRange reports whether v is finite and within Limit of zero.
func InRange(v float64) bool { return math.Abs(v) <= Limit }

// Point is a position in either viewer or document space. The space is
// implied by where the value came from.
type Point struct {
	X, Y float64
}

// Rect is an axis-aligned rectangle in document space. X and Y name the
// lower-left corner.
type Rect struct {
	X, Y          float64
	Width, Height float64
}

// InvalidGeometryError reports a transform requested with a non-positive
// render scale or page height.
type InvalidGeometryError struct {
	Scale      float64
	PageHeight float64
}

func (e *InvalidGeometryError) Error() string {
	if math.IsNaN(e.PageHeight) {
		return fmt.Sprintf("invalid geometry: scale %g", e.Scale)
	}
	return fmt.Sprintf("invalid geometry: scale %g, page height %g", e.Scale, e.PageHeight)
}

func check(scale, pageHeight float64) error {
	if !(scale > 0) || !(pageHeight > 0) || math.IsInf(scale, 0) || math.IsInf(pageHeight, 0) {
		return &InvalidGeometryError{Scale: scale, PageHeight: pageHeight}
	}
	return nil
}

// ToDocumentSpace maps a viewer-space point rendered at scale onto a page of
// the given height.
func ToDocumentSpace(p Point, scale, pageHeight float64) (Point, error) {
	if err := check(scale, pageHeight); err != nil {
		return Point{}, err
	}
	return Point{X: p.X / scale, Y: pageHeight - p.Y/scale}, nil
}

// ToViewerSpace is the inverse of ToDocumentSpace.
func ToViewerSpace(p Point, scale, pageHeight float64) (Point, error) {
	if err := check(scale, pageHeight); err != nil {
		return Point{}, err
	}
	return Point{X: p.X * scale, Y: (pageHeight - p.Y) * scale}, nil
}

// ToDocumentLength scales a viewer length (stroke width, font size) so that
// it reproduces the same visual size in the output document.
func ToDocumentLength(l, scale float64) (float64, error) {
	if !(scale > 0) || math.IsInf(scale, 0) {
		return 0, &InvalidGeometryError{Scale: scale, PageHeight: math.NaN()}
	}
	return l / scale, nil
}

// ToViewerLength is the inverse of ToDocumentLength.
func ToViewerLength(l, scale float64) (float64, error) {
	if !(scale > 0) || math.IsInf(scale, 0) {
		return 0, &InvalidGeometryError{Scale: scale, PageHeight: math.NaN()}
	}
	return l * scale, nil
}

// RectFromCorners returns the rectangle spanned by two opposite corners given
// in document space, in any order.
func RectFromCorners(a, b Point) Rect {
	minX, maxX := math.Min(a.X, b.X), math.Max(a.X, b.X)
	minY, maxY := math.Min(a.Y, b.Y), math.Max(a.Y, b.Y)
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Distance returns the euclidean distance between two points in the same space.
func Distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Equal reports whether two points coincide within Epsilon.
func Equal(a, b Point) bool {
	return math.Abs(a.X-b.X) <= Epsilon && math.Abs(a.Y-b.Y) <= Epsilon
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// InRange reports whether both coordinates are in range.
func (p Point) InRange() bool { return InRange(p.X) && InRange(p.Y) }

// Max returns the upper-right corner.
func (r Rect) Max() Point {
	return Point{X: r.X + r.Width, Y: r.Y + r.Height}
}
