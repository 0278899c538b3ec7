// Package export runs saves in the background. A save rebuilds the source
// with its marks and publishes the result through a store; the caller gets a
// Handle to watch progress, wait for the outcome or cancel.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/example/pagemark/internal/annotation"
	"github.com/example/pagemark/internal/document"
	"github.com/example/pagemark/internal/reconstruct"
)

// Rebuilder produces the annotated document.
type Rebuilder interface {
	Rebuild(ctx context.Context, src *document.Document, edits annotation.Snapshot, progress func(done, total int)) (*reconstruct.Result, error)
}

// Store publishes finished bytes under a name and returns the final path.
type Store interface {
	Commit(ctx context.Context, name string, data []byte) (string, error)
}

// Notifier is told about finished and failed saves.
type Notifier interface {
	Exported(path string)
	Failed(err error)
}

// Policy decides what happens to a running save when a new one starts.
type Policy int

const (
	// PolicyRestart cancels the running save; the new one starts once the
	// old one has stopped.
	PolicyRestart Policy = iota
	// PolicyQueue lets the running save finish before the new one starts.
	PolicyQueue
)

func (p Policy) String() string {
	switch p {
	case PolicyRestart:
		return "restart"
	case PolicyQueue:
		return "queue"
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// ParsePolicy resolves a policy by name.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "restart":
		return PolicyRestart, nil
	case "queue":
		return PolicyQueue, nil
	}
	return PolicyRestart, fmt.Errorf("unknown busy policy %q", s)
}

// Option configures a Controller.
type Option func(*Controller)

func WithPolicy(p Policy) Option { return func(c *Controller) { c.policy = p } }

func WithLogger(l *slog.Logger) Option { return func(c *Controller) { c.logger = l } }

func WithNotifier(n Notifier) Option { return func(c *Controller) { c.notifier = n } }

// WithProgressInterval limits progress log lines to one per interval.
func WithProgressInterval(d time.Duration) Option {
	return func(c *Controller) { c.progressEvery = d }
}

// Controller serialises saves: at most one rebuild runs at any time.
type Controller struct {
	engine   Rebuilder
	store    Store
	policy   Policy
	logger   *slog.Logger
	notifier Notifier

	progressEvery time.Duration

	mu   sync.Mutex
	last *Handle
}

// New returns a Controller that rebuilds with engine and publishes to store.
func New(engine Rebuilder, store Store, opts ...Option) *Controller {
	c := &Controller{
		engine:        engine,
		store:         store,
		logger:        slog.Default(),
		progressEvery: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Save starts rebuilding src with edits in the background and publishes the
// result as name. It returns immediately. Cancelling ctx cancels the save.
func (c *Controller) Save(ctx context.Context, src *document.Document, edits annotation.Snapshot, name string) *Handle {
	h := newHandle(ctx, name)
	c.mu.Lock()
	prev := c.last
	c.last = h
	c.mu.Unlock()

	if prev != nil && c.policy == PolicyRestart {
		prev.Cancel()
	}
	go c.run(h, prev, src, edits)
	return h
}

// Idle blocks until every save started so far has stopped or ctx is done.
func (c *Controller) Idle(ctx context.Context) error {
	c.mu.Lock()
	last := c.last
	c.mu.Unlock()
	if last == nil {
		return nil
	}
	select {
	case <-last.released:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) run(h, prev *Handle, src *document.Document, edits annotation.Snapshot) {
	defer close(h.released)
	log := c.logger.With("save", h.ID.String(), "name", h.Name)

	if prev != nil {
		select {
		case <-prev.released:
		case <-h.ctx.Done():
			c.fail(log, h, reconstruct.ErrCancelled)
			<-prev.released
			return
		}
	}
	if h.ctx.Err() != nil {
		c.fail(log, h, reconstruct.ErrCancelled)
		return
	}

	lim := rate.NewLimiter(rate.Every(c.progressEvery), 1)
	log.Debug("save started", "pages", src.PageCount(), "annotations", edits.Len())
	res, err := c.engine.Rebuild(h.ctx, src, edits, func(done, total int) {
		h.setProgress(done, total)
		if lim.Allow() || done == total {
			log.Info("rebuilding", "done", done, "total", total)
		}
	})
	if err != nil {
		c.fail(log, h, err)
		return
	}
	for _, o := range res.Orphans {
		log.Warn("annotation skipped", "page", o.Annotation.Page, "order", o.Annotation.Order)
	}

	path, err := c.store.Commit(h.ctx, h.Name, res.Data)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			err = reconstruct.ErrCancelled
		}
		c.fail(log, h, err)
		return
	}
	log.Info("saved", "path", path, "pages", res.PageCount, "bytes", len(res.Data))
	if c.notifier != nil {
		c.notifier.Exported(path)
	}
	h.finish(&Output{Path: path, Data: res.Data, PageCount: res.PageCount, Orphans: res.Orphans}, nil)
}

func (c *Controller) fail(log *slog.Logger, h *Handle, err error) {
	if errors.Is(err, reconstruct.ErrCancelled) {
		log.Info("save cancelled")
		h.finish(nil, reconstruct.ErrCancelled)
		return
	}
	log.Error("save failed", "err", err)
	if c.notifier != nil {
		c.notifier.Failed(err)
	}
	h.finish(nil, err)
}
