package reconstruct

import (
	"context"
	"fmt"

	"github.com/example/pagemark/internal/annotation"
)

// ErrCancelled is returned when a rebuild stops because its context was
// cancelled. It also matches context.Canceled.
var ErrCancelled error = cancelledError{}

type cancelledError struct{}

func (cancelledError) Error() string { return "reconstruction cancelled" }

func (cancelledError) Is(target error) bool { return target == context.Canceled }

// OrphanAnnotationError reports a mark whose page does not exist in the
// source. The mark is left out of the output; the rebuild continues.
type OrphanAnnotationError struct {
	Annotation annotation.Annotation
	PageCount  int
}

func (e *OrphanAnnotationError) Error() string {
	return fmt.Sprintf("orphan %s annotation %d on page %d of a %d page document",
		e.Annotation.Kind, e.Annotation.Order, e.Annotation.Page, e.PageCount)
}

// PageCopyError reports a codec failure while copying or drawing on a page.
// The rebuild is abandoned.
type PageCopyError struct {
	Page int
	Err  error
}

func (e *PageCopyError) Error() string {
	return fmt.Sprintf("copy page %d: %v", e.Page, e.Err)
}

func (e *PageCopyError) Unwrap() error { return e.Err }

// PageCountMismatchError reports an output whose page count differs from the
// source.
type PageCountMismatchError struct {
	Want, Got int
}

func (e *PageCountMismatchError) Error() string {
	return fmt.Sprintf("output has %d pages, source has %d", e.Got, e.Want)
}
