package models

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyOrder is returned when a submission carries no line items.
	ErrEmptyOrder = errors.New("order has no items")

	// ErrOrderNotFound is returned when an order lookup matches nothing.
	ErrOrderNotFound = errors.New("order not found")

	// ErrSiteClosed is returned when the site is not accepting orders.
	ErrSiteClosed = errors.New("site is closed")

	// ErrSiteNotFound is returned when a QR code resolves to no active site.
	ErrSiteNotFound = errors.New("site not found")
)

// SequencingError reports a counter transaction that could not commit.
// A resubmission may or may not have partially succeeded upstream; callers
// surface it to the user as a failed submission.
type SequencingError struct {
	SiteKey string
	Err     error
}

func (e *SequencingError) Error() string {
	return fmt.Sprintf("sequencing failed for site %s: %v", e.SiteKey, e.Err)
}

func (e *SequencingError) Unwrap() error {
	return e.Err
}
