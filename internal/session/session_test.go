package session

import (
	"context"
	"image/color"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/pagemark/internal/annotation"
	"github.com/example/pagemark/internal/capture"
	"github.com/example/pagemark/internal/codec"
	"github.com/example/pagemark/internal/codec/codectest"
	"github.com/example/pagemark/internal/document"
	"github.com/example/pagemark/internal/export"
	"github.com/example/pagemark/internal/geometry"
	"github.com/example/pagemark/internal/reconstruct"
	"github.com/example/pagemark/internal/storage"
)

var letter = document.PageSize{Width: 612, Height: 792}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func open(t *testing.T, pages int, opts ...Option) (*Session, *codectest.Renderer, string) {
	t.Helper()
	dir := t.TempDir()
	c := &codectest.Codec{}
	r := &codectest.Renderer{}
	exp := export.New(reconstruct.New(c, reconstruct.WithLogger(quiet())), &storage.Dir{Root: dir}, export.WithLogger(quiet()))
	opts = append([]Option{WithLogger(quiet()), WithExporter(exp), WithScale(1)}, opts...)
	s, err := Load(codectest.Uniform(pages, letter), c, r, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, r, dir
}

func drag(t *testing.T, s *Session, page int, pts ...float64) {
	t.Helper()
	for i := 0; i+1 < len(pts); i += 2 {
		act := capture.Move
		switch {
		case i == 0:
			act = capture.Press
		case i+2 >= len(pts):
			act = capture.Release
		}
		require.NoError(t, s.PointerEvent(page, capture.PointerEvent{Action: act, X: pts[i], Y: pts[i+1]}))
	}
}

func save(t *testing.T, s *Session, name string) *export.Output {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	out, err := s.Save(ctx, name).Wait(ctx)
	require.NoError(t, err)
	return out
}

func TestLoadRejectsCorruptSource(t *testing.T) {
	_, err := Load([]byte("garbage"), &codectest.Codec{}, &codectest.Renderer{})
	var de *codec.SourceDecodeError
	require.ErrorAs(t, err, &de)
}

func TestLoadRejectsBadScale(t *testing.T) {
	for _, scale := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := Load(codectest.Uniform(1, letter), &codectest.Codec{}, &codectest.Renderer{}, WithScale(scale))
		var ge *geometry.InvalidGeometryError
		require.ErrorAs(t, err, &ge, "scale %g", scale)
		require.Contains(t, err.Error(), "invalid geometry: scale")
	}
}

func TestSurfacesRenderLazily(t *testing.T) {
	s, r, _ := open(t, 5)
	require.Zero(t, r.Calls())

	sf, err := s.Surface(3)
	require.NoError(t, err)
	require.Equal(t, 612, sf.Image().Bounds().Dx())
	again, err := s.Surface(3)
	require.NoError(t, err)
	require.Same(t, sf, again)
	require.Equal(t, 1, r.Calls())

	_, err = s.Surface(6)
	require.Error(t, err)
}

func TestDrawUndoAndSave(t *testing.T) {
	s, _, dir := open(t, 3)
	s.SelectTool(capture.ToolFreehand)
	drag(t, s, 2, 10, 10, 100, 10)
	drag(t, s, 2, 10, 50, 100, 50)
	require.Equal(t, 2, s.Marks().Len())

	require.True(t, s.Undo(2))
	marks := s.Marks().Page(2)
	require.Len(t, marks, 1)
	require.Equal(t, geometry.Point{X: 10, Y: 782}, marks[0].Points[0])
	require.False(t, s.Undo(1))

	out := save(t, s, "out.pdf")
	require.Equal(t, filepath.Join(dir, "out.pdf"), out.Path)
	pages, err := codectest.Pages(out.Data)
	require.NoError(t, err)
	require.Len(t, pages, 3)
	require.Equal(t, 1, strings.Count(pages[1], "draw freehand"))
	require.NotContains(t, pages[0], "draw")
	require.NotContains(t, pages[2], "draw")
}

func TestSelectToolEndsGesture(t *testing.T) {
	s, _, _ := open(t, 1)
	s.SelectTool(capture.ToolShapeRect)
	require.NoError(t, s.PointerEvent(1, capture.PointerEvent{Action: capture.Press, X: 10, Y: 10}))
	require.NoError(t, s.PointerEvent(1, capture.PointerEvent{Action: capture.Move, X: 60, Y: 40}))
	require.Zero(t, s.Marks().Len())

	s.SelectTool(capture.ToolHighlight)
	require.Equal(t, capture.ToolHighlight, s.Tool())
	require.Equal(t, 1, s.Marks().Len())
}

func TestImportedOrphanIsReported(t *testing.T) {
	s, _, _ := open(t, 3)
	s.Import(annotation.NewSnapshot([]annotation.Annotation{
		{Page: 1, Kind: annotation.KindHighlight, Color: color.RGBA{255, 255, 0, 255}, Order: 1, Rect: geometry.Rect{X: 1, Y: 1, Width: 10, Height: 10}},
		{Page: 4, Kind: annotation.KindHighlight, Color: color.RGBA{255, 255, 0, 255}, Order: 2, Rect: geometry.Rect{X: 1, Y: 1, Width: 10, Height: 10}},
	}))

	sf, err := s.Surface(1)
	require.NoError(t, err)
	require.NotEqual(t, color.RGBA{255, 255, 255, 255}, sf.Image().RGBAAt(5, 787))

	out := save(t, s, "out.pdf")
	require.Equal(t, 3, out.PageCount)
	require.Len(t, out.Orphans, 1)
	require.Equal(t, 4, out.Orphans[0].Annotation.Page)

	// New marks continue the imported order.
	s.SelectTool(capture.ToolFreehand)
	drag(t, s, 1, 10, 10, 100, 10)
	marks := s.Marks().Page(1)
	require.Equal(t, uint64(3), marks[len(marks)-1].Order)
}

func TestInvalidPointerKeepsSession(t *testing.T) {
	s, _, _ := open(t, 1)
	s.SelectTool(capture.ToolFreehand)
	require.Error(t, s.PointerEvent(0, capture.PointerEvent{Action: capture.Press}))
	drag(t, s, 1, 10, 10, 100, 10)
	require.Equal(t, 1, s.Marks().Len())
}

func TestClose(t *testing.T) {
	s, _, dir := open(t, 1)
	require.NoError(t, s.Close())
	_, err := s.Surface(1)
	require.ErrorIs(t, err, ErrClosed)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}
