package output

import "errors"

// Sentinel error kinds for this package.
var (
	ErrEncode = errors.New("encode matches")
	ErrWrite  = errors.New("write matches")
	ErrDecode = errors.New("decode matches")
)
