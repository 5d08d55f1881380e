package flusher

import "errors"

// ErrClosed is returned by Put/Remove once the flusher has started
// shutting down.
var ErrClosed = errors.New("flusher: closed")
