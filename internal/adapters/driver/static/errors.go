package static

import "errors"

// Sentinel error kinds for this package.
var (
	ErrStatus     = errors.New("unexpected http status")
	ErrNoPage     = errors.New("no page loaded")
	ErrNoNextLink = errors.New("no next page link")
	ErrClosed     = errors.New("static driver closed")
)
