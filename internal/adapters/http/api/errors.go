package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrServe = errors.New("status server failed")
	ErrNoRun = errors.New("no finished run yet")
)
