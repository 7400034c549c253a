package memory

import "errors"

// ErrBadSize indicates a size value that cannot be parsed.
var ErrBadSize = errors.New("memory: invalid size")
