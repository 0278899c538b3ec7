// Package annotation holds the marks a user draws on document pages and the
// page-keyed collection they are committed to. All geometry is stored in
// document space so it is independent of the scale used for previews.
package annotation

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"slices"

	"github.com/example/pagemark/internal/geometry"
)

// Kind identifies the type of an annotation.
type Kind int

const (
	KindFreehand Kind = iota
	KindText
	KindHighlight
	KindShape
)

var kindNames = []string{"freehand", "text", "highlight", "shape"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind resolves a kind by name.
func ParseKind(s string) (Kind, error) {
	for i, n := range kindNames {
		if n == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown annotation kind %q", s)
}

// ShapeKind selects the outline drawn by a shape annotation.
type ShapeKind int

const (
	ShapeRect ShapeKind = iota
	ShapeCircle
)

func (s ShapeKind) String() string {
	switch s {
	case ShapeRect:
		return "rect"
	case ShapeCircle:
		return "circle"
	}
	return fmt.Sprintf("shape(%d)", int(s))
}

// HighlightOpacity is the fixed opacity used for highlight fills.
const HighlightOpacity = 0.35

// MaxPenSize bounds stroke widths and font sizes, in points.
const MaxPenSize = 1000

// Annotation is one committed mark. Which geometry fields are meaningful
// depends on Kind:
//
//	freehand:  Points (>= 2), StrokeWidth
//	text:      At (baseline start), Text, FontSize
//	highlight: Rect
//	shape:     Shape; Rect for ShapeRect, Center and Radius for ShapeCircle; StrokeWidth
type Annotation struct {
	Page  int
	Kind  Kind
	Color color.RGBA
	Order uint64

	Points      []geometry.Point
	StrokeWidth float64

	At       geometry.Point
	Text     string
	FontSize float64

	Rect geometry.Rect

	Shape  ShapeKind
	Center geometry.Point
	Radius float64
}

var (
	errNoPage = errors.New("page number must be at least 1")
)

// Validate checks the kind-specific geometry.
func (a Annotation) Validate() error {
	if a.Page < 1 {
		return errNoPage
	}
	switch a.Kind {
	case KindFreehand:
		if len(a.Points) < 2 {
			return fmt.Errorf("freehand needs at least 2 points, got %d", len(a.Points))
		}
		if !(a.StrokeWidth > 0) {
			return fmt.Errorf("freehand stroke width %g", a.StrokeWidth)
		}
	case KindText:
		if a.Text == "" {
			return errors.New("text annotation is empty")
		}
		if !(a.FontSize > 0) {
			return fmt.Errorf("text font size %g", a.FontSize)
		}
	case KindHighlight:
		if a.Rect.Empty() {
			return errors.New("highlight rectangle is empty")
		}
	case KindShape:
		if !(a.StrokeWidth > 0) {
			return fmt.Errorf("shape stroke width %g", a.StrokeWidth)
		}
		switch a.Shape {
		case ShapeRect:
			if a.Rect.Empty() {
				return errors.New("shape rectangle is empty")
			}
		case ShapeCircle:
			if !(a.Radius > 0) || math.IsInf(a.Radius, 0) {
				return fmt.Errorf("shape radius %g", a.Radius)
			}
		default:
			return fmt.Errorf("unknown shape %v", a.Shape)
		}
	default:
		return fmt.Errorf("unknown annotation kind %v", a.Kind)
	}
	for _, v := range []float64{a.StrokeWidth, a.FontSize} {
		if !(v <= MaxPenSize) {
			return fmt.Errorf("%s size %g exceeds %d", a.Kind, v, MaxPenSize)
		}
	}
	if !geometry.InRange(a.Radius) {
		return fmt.Errorf("%s radius %g out of range", a.Kind, a.Radius)
	}
	b := a.Bounds()
	if lo := (geometry.Point{X: b.X, Y: b.Y}); !lo.InRange() || !b.Max().InRange() {
		return fmt.Errorf("%s geometry out of range", a.Kind)
	}
	return nil
}

// Clone returns a deep copy.
func (a Annotation) Clone() Annotation {
	a.Points = slices.Clone(a.Points)
	return a
}

// Bounds returns the document-space rectangle covered by the mark's geometry,
// ignoring stroke width. Text marks report only their anchor.
func (a Annotation) Bounds() geometry.Rect {
	switch a.Kind {
	case KindFreehand:
		if len(a.Points) == 0 {
			return geometry.Rect{}
		}
		lo, hi := a.Points[0], a.Points[0]
		for _, p := range a.Points[1:] {
			lo.X, lo.Y = math.Min(lo.X, p.X), math.Min(lo.Y, p.Y)
			hi.X, hi.Y = math.Max(hi.X, p.X), math.Max(hi.Y, p.Y)
		}
		return geometry.RectFromCorners(lo, hi)
	case KindText:
		return geometry.Rect{X: a.At.X, Y: a.At.Y}
	case KindShape:
		if a.Shape == ShapeCircle {
			return geometry.Rect{X: a.Center.X - a.Radius, Y: a.Center.Y - a.Radius, Width: 2 * a.Radius, Height: 2 * a.Radius}
		}
	}
	return a.Rect
}

func sortByOrder(marks []Annotation) {
	slices.SortStableFunc(marks, func(x, y Annotation) int {
		switch {
		case x.Order < y.Order:
			return -1
		case x.Order > y.Order:
			return 1
		}
		return 0
	})
}
