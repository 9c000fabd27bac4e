package invreg

import "errors"

// ErrClosed is returned by Allocate once the registry has been closed.
var ErrClosed = errors.New("invocation registry closed")
