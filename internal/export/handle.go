package export

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/example/pagemark/internal/reconstruct"
)

// ErrPending is returned by Handle.Result while the save is still running.
var ErrPending = errors.New("save still running")

// Output is a published save.
type Output struct {
	Path      string
	Data      []byte
	PageCount int
	Orphans   []*reconstruct.OrphanAnnotationError
}

// Handle tracks one save started by a Controller.
type Handle struct {
	ID   uuid.UUID
	Name string

	ctx    context.Context
	cancel context.CancelFunc

	// done closes once the outcome is known; released closes once neither
	// this save nor any save queued before it is still running.
	done     chan struct{}
	released chan struct{}

	mu    sync.Mutex
	pages int
	total int
	out   *Output
	err   error
}

func newHandle(ctx context.Context, name string) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	return &Handle{
		ID:       uuid.New(),
		Name:     name,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		released: make(chan struct{}),
	}
}

// Progress returns the share of pages rebuilt, from 0 to 100.
func (h *Handle) Progress() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.out != nil {
		return 100
	}
	if h.total == 0 {
		return 0
	}
	return 100 * float64(h.pages) / float64(h.total)
}

func (h *Handle) setProgress(done, total int) {
	h.mu.Lock()
	h.pages, h.total = done, total
	h.mu.Unlock()
}

// Done is closed when the save has finished, failed or been cancelled.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Result returns the outcome, or ErrPending while the save is running.
func (h *Handle) Result() (*Output, error) {
	select {
	case <-h.done:
	default:
		return nil, ErrPending
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.out, h.err
}

// Wait blocks until the save finishes or ctx is done. Giving up on the wait
// does not cancel the save.
func (h *Handle) Wait(ctx context.Context) (*Output, error) {
	select {
	case <-h.done:
		return h.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel stops the save. A save that already finished is unaffected.
func (h *Handle) Cancel() { h.cancel() }

func (h *Handle) finish(out *Output, err error) {
	h.mu.Lock()
	select {
	case <-h.done:
		h.mu.Unlock()
		return
	default:
	}
	h.out, h.err = out, err
	h.mu.Unlock()
	close(h.done)
	h.cancel()
}
