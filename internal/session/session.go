// Package session ties one loaded document to its marks, the active tool
// and one capture surface per page. It is the entry point for interactive
// front ends.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/example/pagemark/internal/annotation"
	"github.com/example/pagemark/internal/capture"
	"github.com/example/pagemark/internal/codec"
	"github.com/example/pagemark/internal/document"
	"github.com/example/pagemark/internal/export"
	"github.com/example/pagemark/internal/geometry"
	"github.com/example/pagemark/internal/reconstruct"
	"github.com/example/pagemark/internal/storage"
)

// DefaultScale is the render scale used when none is configured.
const DefaultScale = 1.5

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("session closed")

// Option configures a Session.
type Option func(*Session)

// WithScale sets the render scale of page surfaces.
func WithScale(scale float64) Option { return func(s *Session) { s.scale = scale } }

// WithStyle sets the initial drawing style.
func WithStyle(style capture.Style) Option { return func(s *Session) { s.style = style } }

// WithLogger sets the logger handed to surfaces and the default exporter.
func WithLogger(l *slog.Logger) Option { return func(s *Session) { s.logger = l } }

// WithExporter replaces the default export controller, which writes to the
// working directory.
func WithExporter(c *export.Controller) Option { return func(s *Session) { s.exporter = c } }

// WithSurfaceOptions passes options to every capture surface.
func WithSurfaceOptions(opts ...capture.Option) Option {
	return func(s *Session) { s.surfaceOpts = append(s.surfaceOpts, opts...) }
}

// WithContext bounds page rendering; Close cancels it.
func WithContext(ctx context.Context) Option { return func(s *Session) { s.parent = ctx } }

// Session is one editing session over an immutable source document.
type Session struct {
	ID uuid.UUID

	doc      *document.Document
	codec    codec.Codec
	renderer codec.Renderer
	marks    *annotation.Set
	exporter *export.Controller
	logger   *slog.Logger

	scale       float64
	surfaceOpts []capture.Option
	parent      context.Context
	ctx         context.Context
	cancel      context.CancelFunc

	mu       sync.Mutex
	tool     capture.Tool
	style    capture.Style
	surfaces map[int]*capture.Surface
	closed   bool
}

// Load decodes data and opens a session on it. A decode failure is returned
// as *codec.SourceDecodeError and no session is created.
func Load(data []byte, c codec.Codec, r codec.Renderer, opts ...Option) (*Session, error) {
	doc, err := c.Decode(data)
	if err != nil {
		return nil, err
	}
	s := &Session{
		ID:       uuid.New(),
		doc:      doc,
		codec:    c,
		renderer: r,
		marks:    annotation.NewSet(),
		logger:   slog.Default(),
		scale:    DefaultScale,
		parent:   context.Background(),
		tool:     capture.ToolSelect,
		style:    capture.DefaultStyle(),
		surfaces: make(map[int]*capture.Surface),
	}
	for _, opt := range opts {
		opt(s)
	}
	if !(s.scale > 0) || math.IsInf(s.scale, 0) {
		return nil, &geometry.InvalidGeometryError{Scale: s.scale, PageHeight: math.NaN()}
	}
	if s.exporter == nil {
		s.exporter = export.New(reconstruct.New(c, reconstruct.WithLogger(s.logger)), &storage.Dir{}, export.WithLogger(s.logger))
	}
	s.ctx, s.cancel = context.WithCancel(s.parent)
	s.logger.Debug("session loaded", "session", s.ID.String(), "pages", doc.PageCount(), "bytes", doc.Len())
	return s, nil
}

// Document returns the source document.
func (s *Session) Document() *document.Document { return s.doc }

// Scale returns the render scale.
func (s *Session) Scale() float64 { return s.scale }

// Tool returns the active tool.
func (s *Session) Tool() capture.Tool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tool
}

// SelectTool makes tool active. Gestures in progress on any page are
// committed or cancelled first.
func (s *Session) SelectTool(tool capture.Tool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tool == s.tool {
		return
	}
	for _, sf := range s.surfaces {
		sf.EndGesture()
	}
	s.tool = tool
}

// Style returns the drawing style for new marks.
func (s *Session) Style() capture.Style {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.style
}

// SetStyle changes the drawing style for new marks.
func (s *Session) SetStyle(style capture.Style) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.style = style
}

// Surface returns the capture surface of page, rendering it on first use.
// Marks already committed on the page are painted into the new surface.
func (s *Session) Surface(page int) (*capture.Surface, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surface(page)
}

func (s *Session) surface(page int) (*capture.Surface, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if sf, ok := s.surfaces[page]; ok {
		return sf, nil
	}
	size, err := s.doc.Page(page)
	if err != nil {
		return nil, err
	}
	base, err := s.renderer.RenderPage(s.ctx, s.doc, page, s.scale)
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", page, err)
	}
	for _, a := range s.marks.Page(page) {
		if err := capture.Paint(base, a, s.scale, size.Height); err != nil {
			return nil, fmt.Errorf("render page %d: %w", page, err)
		}
	}
	opts := append([]capture.Option{capture.WithLogger(s.logger)}, s.surfaceOpts...)
	sf, err := capture.NewSurface(page, base, s.scale, size.Width, size.Height, s.marks, opts...)
	if err != nil {
		return nil, err
	}
	s.surfaces[page] = sf
	return sf, nil
}

// PointerEvent routes one pointer sample on page to the active tool. A
// rejected event leaves the session usable.
func (s *Session) PointerEvent(page int, ev capture.PointerEvent) error {
	s.mu.Lock()
	sf, err := s.surface(page)
	tool, style := s.tool, s.style
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return sf.Handle(tool, style, ev)
}

// Undo reverts the newest step on page. It reports false when there is
// nothing to undo.
func (s *Session) Undo(page int) bool {
	if sf := s.existing(page); sf != nil {
		return sf.Undo()
	}
	return false
}

// Redo reapplies the step most recently undone on page.
func (s *Session) Redo(page int) bool {
	if sf := s.existing(page); sf != nil {
		return sf.Redo()
	}
	return false
}

func (s *Session) existing(page int) *capture.Surface {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surfaces[page]
}

// Marks returns a copy of every committed mark.
func (s *Session) Marks() annotation.Snapshot { return s.marks.Snapshot() }

// Import replaces the committed marks, typically with a sidecar file read
// from disk. Marks on pages the document lacks are kept and reported as
// orphans when saving. Surfaces are discarded and rendered again on next use.
func (s *Session) Import(snap annotation.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marks.Restore(snap)
	clear(s.surfaces)
	if n := len(orphanPages(snap, s.doc.PageCount())); n > 0 {
		s.logger.Warn("imported marks on missing pages", "pages", n)
	}
}

func orphanPages(snap annotation.Snapshot, total int) []int {
	var out []int
	for _, n := range snap.Pages() {
		if n < 1 || n > total {
			out = append(out, n)
		}
	}
	return out
}

// Save starts a background save of the source with the committed marks and
// returns its handle. Gestures still in progress are not included.
func (s *Session) Save(ctx context.Context, name string) *export.Handle {
	return s.exporter.Save(ctx, s.doc, s.marks.Snapshot(), name)
}

// Close ends the session. Saves already started keep running.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for _, sf := range s.surfaces {
		sf.EndGesture()
	}
	clear(s.surfaces)
	s.cancel()
	return nil
}
