// Package reconstruct rebuilds a source document with committed marks drawn
// on top. Pages are copied one at a time into a fresh output document and
// marks are drawn only onto the copies; the source is never modified.
package reconstruct

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/example/pagemark/internal/annotation"
	"github.com/example/pagemark/internal/codec"
	"github.com/example/pagemark/internal/document"
)

const instrumentationName = "github.com/example/pagemark/internal/reconstruct"

// Result is a finished rebuild.
type Result struct {
	Data      []byte
	PageCount int
	Orphans   []*OrphanAnnotationError
}

// Engine runs rebuilds through a codec. An Engine holds no per-rebuild state
// and may run several rebuilds concurrently.
type Engine struct {
	codec  codec.Codec
	logger *slog.Logger
	verify bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithVerify re-decodes the encoded output and checks its page count.
func WithVerify(on bool) Option { return func(e *Engine) { e.verify = on } }

// New returns an Engine using c.
func New(c codec.Codec, opts ...Option) *Engine {
	e := &Engine{codec: c, logger: slog.Default(), verify: true}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rebuild produces a new document holding every page of src in order, with
// the marks of edits drawn onto their pages in Order. Marks on pages src
// does not have are reported in Result.Orphans and skipped. progress, when
// not nil, is called after each page with the number of pages done.
//
// No output is returned unless every page was copied and the page count
// matches src.
func (e *Engine) Rebuild(ctx context.Context, src *document.Document, edits annotation.Snapshot, progress func(done, total int)) (res *Result, err error) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "rebuild")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	// The source is re-decoded from its bytes so a document built from
	// corrupt data fails here rather than part way through.
	checked, err := e.codec.Decode(src.Bytes())
	if err != nil {
		return nil, err
	}
	total := checked.PageCount()
	if total != src.PageCount() {
		return nil, &codec.SourceDecodeError{Err: fmt.Errorf("document reports %d pages, data has %d", src.PageCount(), total)}
	}

	orphans := findOrphans(edits, total)
	for _, o := range orphans {
		e.logger.Warn("orphan annotation", "page", o.Annotation.Page, "order", o.Annotation.Order, "pages", total)
	}
	span.SetAttributes(
		attribute.Int("pagemark.pages", total),
		attribute.Int("pagemark.annotations", edits.Len()),
		attribute.Int("pagemark.orphans", len(orphans)),
	)

	out, err := e.codec.NewDocument()
	if err != nil {
		return nil, fmt.Errorf("rebuild: %w", err)
	}
	for n := 1; n <= total; n++ {
		if ctx.Err() != nil {
			e.logger.Info("rebuild cancelled", "done", n-1, "total", total)
			return nil, ErrCancelled
		}
		page, err := out.CopyPage(src, n)
		if err != nil {
			return nil, &PageCopyError{Page: n, Err: err}
		}
		for _, a := range edits.Page(n) {
			if err := codec.Draw(page, a); err != nil {
				return nil, &PageCopyError{Page: n, Err: fmt.Errorf("draw %s %d: %w", a.Kind, a.Order, err)}
			}
		}
		if progress != nil {
			progress(n, total)
		}
	}
	if got := out.PageCount(); got != total {
		return nil, &PageCountMismatchError{Want: total, Got: got}
	}
	if ctx.Err() != nil {
		return nil, ErrCancelled
	}

	var buf bytes.Buffer
	if err := out.Encode(&buf); err != nil {
		return nil, fmt.Errorf("rebuild: %w", err)
	}
	if e.verify {
		if err := e.check(buf.Bytes(), total); err != nil {
			return nil, err
		}
	}
	e.logger.Debug("rebuild done", "pages", total, "bytes", buf.Len(), "orphans", len(orphans))
	return &Result{Data: buf.Bytes(), PageCount: total, Orphans: orphans}, nil
}

func (e *Engine) check(data []byte, want int) error {
	doc, err := e.codec.Decode(data)
	if err != nil {
		var de *codec.SourceDecodeError
		if errors.As(err, &de) {
			err = de.Err
		}
		return fmt.Errorf("verify output: %w", err)
	}
	if got := doc.PageCount(); got != want {
		return &PageCountMismatchError{Want: want, Got: got}
	}
	return nil
}

func findOrphans(edits annotation.Snapshot, total int) []*OrphanAnnotationError {
	var orphans []*OrphanAnnotationError
	for _, n := range edits.Pages() {
		if n >= 1 && n <= total {
			continue
		}
		for _, a := range edits.Page(n) {
			orphans = append(orphans, &OrphanAnnotationError{Annotation: a, PageCount: total})
		}
	}
	return orphans
}
