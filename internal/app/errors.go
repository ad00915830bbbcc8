package service

import "errors"

// Sentinel error kinds for this package.
var (
	ErrNoDriver    = errors.New("no page driver configured")
	ErrDriverStart = errors.New("page driver start failed")
	ErrOutput      = errors.New("write output failed")
	ErrRunning     = errors.New("run already in progress")
)
