package output

import "errors"

// ErrClosed is returned by writes issued after Close.
var ErrClosed = errors.New("output driver closed")
