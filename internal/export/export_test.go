package export

import (
	"context"
	"errors"
	"image/color"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/pagemark/internal/annotation"
	"github.com/example/pagemark/internal/codec/codectest"
	"github.com/example/pagemark/internal/document"
	"github.com/example/pagemark/internal/geometry"
	"github.com/example/pagemark/internal/reconstruct"
	"github.com/example/pagemark/internal/storage"
)

var letter = document.PageSize{Width: 612, Height: 792}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// counting wraps an engine and records the peak number of rebuilds running
// at once.
type counting struct {
	*reconstruct.Engine
	active, peak atomic.Int32
	calls        atomic.Int32
}

func (c *counting) Rebuild(ctx context.Context, src *document.Document, edits annotation.Snapshot, progress func(done, total int)) (*reconstruct.Result, error) {
	c.calls.Add(1)
	n := c.active.Add(1)
	defer c.active.Add(-1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	return c.Engine.Rebuild(ctx, src, edits, progress)
}

type recorder struct {
	mu       sync.Mutex
	exported []string
	failed   []error
}

func (r *recorder) Exported(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exported = append(r.exported, path)
}

func (r *recorder) Failed(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, err)
}

// gate blocks page copies on one page until opened.
type gate struct {
	page    int
	entered chan struct{}
	open    chan struct{}
	once    sync.Once
}

func newGate(page int) *gate {
	return &gate{page: page, entered: make(chan struct{}, 16), open: make(chan struct{})}
}

func (g *gate) hook(n int) error {
	if n == g.page {
		g.entered <- struct{}{}
		<-g.open
	}
	return nil
}

func (g *gate) release() { g.once.Do(func() { close(g.open) }) }

type fixture struct {
	codec    *codectest.Codec
	engine   *counting
	store    *storage.Dir
	notifier *recorder
	doc      *document.Document
}

func setup(t *testing.T, pages int) *fixture {
	t.Helper()
	c := &codectest.Codec{}
	doc, err := c.Decode(codectest.Uniform(pages, letter))
	require.NoError(t, err)
	return &fixture{
		codec:    c,
		engine:   &counting{Engine: reconstruct.New(c, reconstruct.WithLogger(quiet()))},
		store:    &storage.Dir{Root: t.TempDir()},
		notifier: &recorder{},
		doc:      doc,
	}
}

func (f *fixture) controller(opts ...Option) *Controller {
	opts = append([]Option{WithLogger(quiet()), WithNotifier(f.notifier)}, opts...)
	return New(f.engine, f.store, opts...)
}

func (f *fixture) files(t *testing.T) []string {
	t.Helper()
	list, err := os.ReadDir(f.store.Root)
	require.NoError(t, err)
	var names []string
	for _, e := range list {
		names = append(names, e.Name())
	}
	return names
}

func wait(t *testing.T, h *Handle) (*Output, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	out, err := h.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded)
	return out, err
}

func marks() annotation.Snapshot {
	return annotation.NewSnapshot([]annotation.Annotation{{
		Page:  2,
		Kind:  annotation.KindHighlight,
		Color: color.RGBA{255, 255, 0, 255},
		Order: 1,
		Rect:  geometry.Rect{X: 10, Y: 10, Width: 50, Height: 10},
	}})
}

func TestSave(t *testing.T) {
	f := setup(t, 3)
	h := f.controller().Save(context.Background(), f.doc, marks(), "out.pdf")
	require.NotEqual(t, [16]byte{}, [16]byte(h.ID))

	out, err := wait(t, h)
	require.NoError(t, err)
	require.Equal(t, 3, out.PageCount)
	require.Equal(t, 100.0, h.Progress())

	data, err := os.ReadFile(out.Path)
	require.NoError(t, err)
	require.Equal(t, out.Data, data)
	require.Equal(t, []string{"out.pdf"}, f.files(t))
	require.Equal(t, []string{out.Path}, f.notifier.exported)
}

func TestResultPendingAndProgress(t *testing.T) {
	f := setup(t, 4)
	g := newGate(3)
	f.codec.OnCopy = g.hook
	h := f.controller().Save(context.Background(), f.doc, annotation.Snapshot{}, "out.pdf")

	<-g.entered
	_, err := h.Result()
	require.ErrorIs(t, err, ErrPending)
	require.Equal(t, 50.0, h.Progress())

	g.release()
	_, err = wait(t, h)
	require.NoError(t, err)
}

func TestFailureLeavesNoArtifact(t *testing.T) {
	f := setup(t, 5)
	boom := errors.New("boom")
	f.codec.OnCopy = func(n int) error {
		if n == 4 {
			return boom
		}
		return nil
	}
	h := f.controller().Save(context.Background(), f.doc, marks(), "out.pdf")
	out, err := wait(t, h)
	require.Nil(t, out)
	var pe *reconstruct.PageCopyError
	require.ErrorAs(t, err, &pe)
	require.Empty(t, f.files(t))
	require.Len(t, f.notifier.failed, 1)
	require.Empty(t, f.notifier.exported)
}

func TestCancelLeavesNoArtifact(t *testing.T) {
	f := setup(t, 5)
	g := newGate(2)
	f.codec.OnCopy = g.hook
	h := f.controller().Save(context.Background(), f.doc, marks(), "out.pdf")

	<-g.entered
	h.Cancel()
	g.release()
	out, err := wait(t, h)
	require.Nil(t, out)
	require.ErrorIs(t, err, reconstruct.ErrCancelled)
	require.Empty(t, f.files(t))
	require.Empty(t, f.notifier.failed)
}

func TestRestartPolicy(t *testing.T) {
	f := setup(t, 4)
	g := newGate(2)
	f.codec.OnCopy = g.hook
	c := f.controller(WithPolicy(PolicyRestart))

	first := c.Save(context.Background(), f.doc, marks(), "out.pdf")
	<-g.entered
	second := c.Save(context.Background(), f.doc, annotation.Snapshot{}, "out.pdf")
	g.release()

	_, err := wait(t, first)
	require.ErrorIs(t, err, reconstruct.ErrCancelled)
	out, err := wait(t, second)
	require.NoError(t, err)
	require.Equal(t, 4, out.PageCount)
	require.NoError(t, c.Idle(context.Background()))
	require.Equal(t, int32(1), f.engine.peak.Load())
	require.Equal(t, []string{"out.pdf"}, f.files(t))
}

func TestQueuePolicy(t *testing.T) {
	f := setup(t, 4)
	g := newGate(2)
	f.codec.OnCopy = g.hook
	c := f.controller(WithPolicy(PolicyQueue))

	first := c.Save(context.Background(), f.doc, marks(), "a.pdf")
	<-g.entered
	second := c.Save(context.Background(), f.doc, marks(), "b.pdf")
	third := c.Save(context.Background(), f.doc, marks(), "c.pdf")
	third.Cancel()
	g.release()

	for _, h := range []*Handle{first, second} {
		_, err := wait(t, h)
		require.NoError(t, err)
	}
	_, err := wait(t, third)
	require.ErrorIs(t, err, reconstruct.ErrCancelled)
	require.NoError(t, c.Idle(context.Background()))
	require.Equal(t, int32(1), f.engine.peak.Load())
	require.Equal(t, int32(2), f.engine.calls.Load())
	require.ElementsMatch(t, []string{"a.pdf", "b.pdf"}, f.files(t))
}

func TestParsePolicy(t *testing.T) {
	for _, p := range []Policy{PolicyRestart, PolicyQueue} {
		got, err := ParsePolicy(p.String())
		require.NoError(t, err)
		require.Equal(t, p, got)
	}
	_, err := ParsePolicy("drop")
	require.Error(t, err)
}
