// Package document models a loaded source document: an immutable byte
// sequence plus its page geometry.
package document

import (
	"bytes"
	"errors"
	"fmt"
)

// PageSize is a page's extent in document units.
type PageSize struct {
	Width, Height float64
}

// Document is never modified after New returns. Any number of goroutines may
// read it concurrently.
type Document struct {
	data  []byte
	pages []PageSize
}

// ErrNoPages is returned when a document without pages is constructed.
var ErrNoPages = errors.New("document has no pages")

// New copies data and records one size per page.
func New(data []byte, sizes []PageSize) (*Document, error) {
	if len(sizes) == 0 {
		return nil, ErrNoPages
	}
	for i, s := range sizes {
		if !(s.Width > 0) || !(s.Height > 0) {
			return nil, fmt.Errorf("page %d has invalid size %gx%g", i+1, s.Width, s.Height)
		}
	}
	d := &Document{
		data:  bytes.Clone(data),
		pages: append([]PageSize(nil), sizes...),
	}
	return d, nil
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int { return len(d.pages) }

// Page returns the size of page n (1-indexed).
func (d *Document) Page(n int) (PageSize, error) {
	if n < 1 || n > len(d.pages) {
		return PageSize{}, fmt.Errorf("page %d out of range 1-%d", n, len(d.pages))
	}
	return d.pages[n-1], nil
}

// Pages returns a copy of all page sizes.
func (d *Document) Pages() []PageSize {
	return append([]PageSize(nil), d.pages...)
}

// Reader returns an independent reader over the original bytes.
func (d *Document) Reader() *bytes.Reader { return bytes.NewReader(d.data) }

// Bytes returns a copy of the original bytes.
func (d *Document) Bytes() []byte { return bytes.Clone(d.data) }

// Len returns the size of the original bytes.
func (d *Document) Len() int { return len(d.data) }
