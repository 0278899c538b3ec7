package capture

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/example/pagemark/internal/annotation"
	"github.com/example/pagemark/internal/geometry"
	"github.com/example/pagemark/internal/history"
)

const (
	DefaultDedup       = 2
	DefaultEraseRadius = 6
)

// ErrInvalidPointer reports a pointer sample with non-finite coordinates.
var ErrInvalidPointer = errors.New("pointer position is not finite")

// Option configures a Surface.
type Option func(*Surface)

// WithPrompter sets the source of text for the text tool. Without one the
// text tool never commits.
func WithPrompter(p Prompter) Option { return func(s *Surface) { s.prompter = p } }

// WithDedup drops freehand samples closer than px to the last kept sample.
func WithDedup(px float64) Option { return func(s *Surface) { s.dedup = px } }

// WithEraseRadius sets the eraser radius in viewer pixels.
func WithEraseRadius(px int) Option { return func(s *Surface) { s.eraseRadius = px } }

// WithHistoryLimit bounds the undo stack; zero keeps every step.
func WithHistoryLimit(n int) Option { return func(s *Surface) { s.hist.Limit = n } }

// WithLogger sets the logger used for gesture diagnostics.
func WithLogger(l *slog.Logger) Option { return func(s *Surface) { s.logger = l } }

// Surface is the capture surface of one page. It is not safe for concurrent
// use; surfaces of different pages share nothing but the annotation Set.
type Surface struct {
	page          int
	scale         float64
	width, height float64

	base  *image.RGBA
	img   *image.RGBA
	marks *annotation.Set
	hist  history.Manager

	prompter    Prompter
	dedup       float64
	eraseRadius int
	logger      *slog.Logger

	g *gesture
}

// gesture is the pointer interaction between a press and its release.
type gesture struct {
	tool   Tool
	style  Style
	before history.Snapshot
	points []geometry.Point
	anchor geometry.Point
	last   geometry.Point
}

// NewSurface binds a surface to page, whose base raster was rendered at
// scale from a page of the given document-space size. Committed marks go to
// marks; marks already on the page are expected to be painted into base.
func NewSurface(page int, base *image.RGBA, scale, pageWidth, pageHeight float64, marks *annotation.Set, opts ...Option) (*Surface, error) {
	if _, err := geometry.ToDocumentSpace(geometry.Point{}, scale, pageHeight); err != nil {
		return nil, err
	}
	if !(pageWidth > 0) {
		return nil, &geometry.InvalidGeometryError{Scale: scale, PageHeight: pageHeight}
	}
	if base == nil {
		return nil, errors.New("surface needs a base raster")
	}
	s := &Surface{
		page:        page,
		scale:       scale,
		width:       pageWidth,
		height:      pageHeight,
		base:        cloneRGBA(base),
		img:         cloneRGBA(base),
		marks:       marks,
		dedup:       DefaultDedup,
		eraseRadius: DefaultEraseRadius,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Page returns the page number the surface is bound to.
func (s *Surface) Page() int { return s.page }

// Scale returns the render scale of the surface raster.
func (s *Surface) Scale() float64 { return s.scale }

// Busy reports whether a gesture is in progress.
func (s *Surface) Busy() bool { return s.g != nil }

// Image returns a copy of the committed raster.
func (s *Surface) Image() *image.RGBA { return cloneRGBA(s.img) }

// View returns the committed raster with the live preview of an unfinished
// highlight or shape drawn over it.
func (s *Surface) View() *image.RGBA {
	out := cloneRGBA(s.img)
	if s.g == nil {
		return out
	}
	if a, ok := s.shape(s.g, s.g.last); ok {
		if err := Paint(out, a, s.scale, s.height); err != nil {
			s.logger.Debug("preview", "page", s.page, "err", err)
		}
	}
	return out
}

// Handle routes one pointer event to tool. Switching tools while a gesture is
// in progress ends that gesture first.
func (s *Surface) Handle(tool Tool, style Style, ev PointerEvent) error {
	p := ev.point()
	if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
		return fmt.Errorf("%w: (%g, %g)", ErrInvalidPointer, p.X, p.Y)
	}
	if s.g != nil && (s.g.tool != tool || ev.Action == Press) {
		s.EndGesture()
	}
	switch ev.Action {
	case Press:
		return s.press(tool, style, p)
	case Move:
		if s.g != nil {
			s.move(p)
		}
	case Release:
		if s.g != nil {
			g := s.g
			s.g = nil
			return s.finish(g, p)
		}
	default:
		return fmt.Errorf("unknown pointer action %v", ev.Action)
	}
	return nil
}

// EndGesture commits the gesture in progress at its last position when it
// forms a valid mark and cancels it otherwise.
func (s *Surface) EndGesture() {
	if s.g == nil {
		return
	}
	g := s.g
	s.g = nil
	if err := s.finish(g, g.last); err != nil {
		s.logger.Warn("end gesture", "page", s.page, "tool", g.tool, "err", err)
	}
}

func (s *Surface) snapshot() history.Snapshot {
	return history.Capture(s.img, s.marks.Page(s.page))
}

func (s *Surface) press(tool Tool, style Style, p geometry.Point) error {
	switch tool {
	case ToolSelect:
		return nil
	case ToolText:
		return s.placeText(style, p)
	}
	g := &gesture{tool: tool, style: style, anchor: p, last: p, before: s.snapshot()}
	switch tool {
	case ToolFreehand:
		g.points = []geometry.Point{p}
		x, y := round(p.X), round(p.Y)
		setThickPixel(s.img, x, y, thickness(style.StrokeWidth), style.Color)
	case ToolErase:
		s.hist.Push(g.before)
		restoreDisc(s.img, s.base, round(p.X), round(p.Y), s.eraseRadius)
	case ToolHighlight, ToolShapeRect, ToolShapeCircle:
	default:
		return fmt.Errorf("unknown tool %v", tool)
	}
	s.g = g
	return nil
}

func (s *Surface) move(p geometry.Point) {
	g := s.g
	switch g.tool {
	case ToolFreehand:
		prev := g.points[len(g.points)-1]
		if geometry.Distance(prev, p) < s.dedup {
			return
		}
		g.points = append(g.points, p)
		drawLine(s.img, round(prev.X), round(prev.Y), round(p.X), round(p.Y), g.style.Color, thickness(g.style.StrokeWidth))
	case ToolErase:
		restoreLine(s.img, s.base, round(g.last.X), round(g.last.Y), round(p.X), round(p.Y), s.eraseRadius)
	}
	g.last = p
}

func (s *Surface) finish(g *gesture, p geometry.Point) error {
	switch g.tool {
	case ToolFreehand:
		if last := g.points[len(g.points)-1]; geometry.Distance(last, p) >= s.dedup {
			g.points = append(g.points, p)
		}
		if len(g.points) < 2 {
			s.img = g.before.Raster
			return nil
		}
		a, err := s.freehand(g)
		if err != nil {
			s.img = g.before.Raster
			return err
		}
		return s.commit(g, a)
	case ToolErase:
		if p != g.last {
			restoreLine(s.img, s.base, round(g.last.X), round(g.last.Y), round(p.X), round(p.Y), s.eraseRadius)
		}
		return nil
	case ToolHighlight, ToolShapeRect, ToolShapeCircle:
		a, ok := s.shape(g, p)
		if !ok {
			return nil
		}
		return s.commit(g, a)
	}
	return nil
}

// commit records the pre-gesture snapshot, adds a to the Set and repaints the
// committed raster from the snapshot plus the new mark.
func (s *Surface) commit(g *gesture, a annotation.Annotation) error {
	img := cloneRGBA(g.before.Raster)
	if err := Paint(img, a, s.scale, s.height); err != nil {
		s.img = g.before.Raster
		return err
	}
	s.hist.Push(g.before)
	stored := s.marks.Add(a)
	s.img = img
	s.logger.Debug("commit", "page", s.page, "kind", stored.Kind, "order", stored.Order)
	return nil
}

func (s *Surface) freehand(g *gesture) (annotation.Annotation, error) {
	width, err := geometry.ToDocumentLength(g.style.StrokeWidth, s.scale)
	if err != nil {
		return annotation.Annotation{}, err
	}
	a := annotation.Annotation{
		Page:        s.page,
		Kind:        annotation.KindFreehand,
		Color:       g.style.Color,
		StrokeWidth: width,
		Points:      make([]geometry.Point, 0, len(g.points)),
	}
	for _, p := range g.points {
		d, err := geometry.ToDocumentSpace(p, s.scale, s.height)
		if err != nil {
			return annotation.Annotation{}, err
		}
		a.Points = append(a.Points, d)
	}
	return a, nil
}

// shape builds the highlight or shape spanned by the gesture anchor and p.
// ok is false when the extent is zero.
func (s *Surface) shape(g *gesture, p geometry.Point) (annotation.Annotation, bool) {
	a := annotation.Annotation{Page: s.page, Color: g.style.Color}
	anchor, err := geometry.ToDocumentSpace(g.anchor, s.scale, s.height)
	if err != nil {
		return a, false
	}
	end, err := geometry.ToDocumentSpace(p, s.scale, s.height)
	if err != nil {
		return a, false
	}
	width, err := geometry.ToDocumentLength(g.style.StrokeWidth, s.scale)
	if err != nil {
		width = 0
	}
	switch g.tool {
	case ToolHighlight:
		a.Kind = annotation.KindHighlight
		a.Rect = geometry.RectFromCorners(anchor, end)
	case ToolShapeRect:
		a.Kind = annotation.KindShape
		a.Shape = annotation.ShapeRect
		a.Rect = geometry.RectFromCorners(anchor, end)
		a.StrokeWidth = width
	case ToolShapeCircle:
		a.Kind = annotation.KindShape
		a.Shape = annotation.ShapeCircle
		a.Center = anchor
		a.Radius = geometry.Distance(anchor, end)
		a.StrokeWidth = width
	default:
		return a, false
	}
	return a, a.Validate() == nil
}

func (s *Surface) placeText(style Style, p geometry.Point) error {
	if s.prompter == nil {
		return nil
	}
	text, ok := s.prompter.Prompt(s.page, p)
	if !ok || text == "" {
		return nil
	}
	at, err := geometry.ToDocumentSpace(p, s.scale, s.height)
	if err != nil {
		return err
	}
	size, err := geometry.ToDocumentLength(style.TextSize, s.scale)
	if err != nil {
		return err
	}
	a := annotation.Annotation{
		Page:     s.page,
		Kind:     annotation.KindText,
		Color:    style.Color,
		At:       at,
		Text:     text,
		FontSize: size,
	}
	return s.commit(&gesture{tool: ToolText, before: s.snapshot()}, a)
}

// Undo restores the state before the newest destructive step, raster and
// page marks together. A gesture in progress is ended first.
func (s *Surface) Undo() bool {
	s.EndGesture()
	prev, ok := s.hist.Undo(s.snapshot())
	if !ok {
		return false
	}
	s.restore(prev)
	return true
}

// Redo reapplies the step most recently undone.
func (s *Surface) Redo() bool {
	s.EndGesture()
	next, ok := s.hist.Redo(s.snapshot())
	if !ok {
		return false
	}
	s.restore(next)
	return true
}

func (s *Surface) restore(snap history.Snapshot) {
	s.img = snap.Raster
	s.marks.ReplacePage(s.page, snap.Marks)
}

// CanUndo reports whether Undo would change anything.
func (s *Surface) CanUndo() bool { return s.hist.CanUndo() }

// CanRedo reports whether Redo would change anything.
func (s *Surface) CanRedo() bool { return s.hist.CanRedo() }
