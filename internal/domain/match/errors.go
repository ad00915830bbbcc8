package match

import "errors"

// Sentinel kinds for match configuration errors.
var (
	ErrInvalidOperator  = errors.New("invalid threshold operator")
	ErrInvalidThreshold = errors.New("invalid match threshold")
)
