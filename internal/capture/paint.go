package capture

import (
	"fmt"
	"image"

	"github.com/example/pagemark/internal/annotation"
	"github.com/example/pagemark/internal/geometry"
)

// Paint draws a committed mark onto a page raster rendered at scale. The
// mark's document-space geometry is mapped back to viewer pixels, so the
// result matches what the surface showed when the mark was drawn.
func Paint(img *image.RGBA, a annotation.Annotation, scale, pageHeight float64) error {
	v := viewer{scale: scale, height: pageHeight}
	if _, err := geometry.ToViewerSpace(geometry.Point{}, scale, pageHeight); err != nil {
		return err
	}
	if err := a.Validate(); err != nil {
		return fmt.Errorf("paint: %w", err)
	}
	switch a.Kind {
	case annotation.KindFreehand:
		thick := thickness(a.StrokeWidth * scale)
		prev := v.pt(a.Points[0])
		for _, p := range a.Points[1:] {
			cur := v.pt(p)
			drawLine(img, prev.X, prev.Y, cur.X, cur.Y, a.Color, thick)
			prev = cur
		}
	case annotation.KindText:
		at := v.pt(a.At)
		return drawText(img, at.X, at.Y, a.Text, a.Color, a.FontSize*scale)
	case annotation.KindHighlight:
		fillRect(img, v.rect(a.Rect), a.Color, annotation.HighlightOpacity)
	case annotation.KindShape:
		thick := thickness(a.StrokeWidth * scale)
		switch a.Shape {
		case annotation.ShapeRect:
			drawRect(img, v.rect(a.Rect), a.Color, thick)
		case annotation.ShapeCircle:
			c := v.pt(a.Center)
			drawCircle(img, c.X, c.Y, round(a.Radius*scale), a.Color, thick)
		default:
			return fmt.Errorf("paint: unknown shape %v", a.Shape)
		}
	default:
		return fmt.Errorf("paint: unknown kind %v", a.Kind)
	}
	return nil
}

// viewer maps validated document-space geometry to integer viewer pixels.
type viewer struct {
	scale, height float64
}

func (v viewer) pt(p geometry.Point) image.Point {
	return image.Pt(round(p.X*v.scale), round((v.height-p.Y)*v.scale))
}

func (v viewer) rect(r geometry.Rect) image.Rectangle {
	return image.Rectangle{Min: v.pt(geometry.Point{X: r.X, Y: r.Y + r.Height}), Max: v.pt(geometry.Point{X: r.X + r.Width, Y: r.Y})}
}
