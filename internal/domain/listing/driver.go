// Package listing crawls one paginated release listing through a PageDriver
// and turns it into a model.Catalog.
package listing

import (
	"context"
	"time"

	"github.com/micahco/sym/internal/domain/model"
)

// PageDriver is the page automation surface the traversal needs. A driver
// holds one current page; every call acts on it.
type PageDriver interface {
	// Navigate loads url as the current page.
	Navigate(ctx context.Context, url string) error
	// ExtractEntries returns the catalog rows of the current page in on-page order.
	ExtractEntries(ctx context.Context) ([]model.RawEntry, error)
	// ExtractRelease returns the release identity shown on the current page.
	ExtractRelease(ctx context.Context) (model.Release, error)
	// HasNextPage reports whether the current page links to a next page.
	HasNextPage(ctx context.Context) (bool, error)
	// GoToNextPage triggers the move to the next page without waiting for it.
	GoToNextPage(ctx context.Context) error
	// WaitForPageChange blocks until the page triggered by GoToNextPage is
	// current. It returns an error wrapping ErrPageChangeTimeout when
	// timeout elapses first.
	WaitForPageChange(ctx context.Context, timeout time.Duration) error
	// Close releases the driver. It is safe to call once per driver.
	Close() error
}
