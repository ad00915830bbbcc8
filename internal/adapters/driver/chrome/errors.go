package chrome

import "errors"

// Sentinel error kinds for this package.
var (
	ErrStart  = errors.New("chrome start failed")
	ErrClosed = errors.New("chrome driver closed")
)
