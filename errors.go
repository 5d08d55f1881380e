package bitkeep

import "errors"

var (
	// ErrKeyNotFound is returned by Get when the key has no live entry.
	ErrKeyNotFound = errors.New("bitkeep: key not found")
	// ErrClosed is returned by any operation on a Store after Close.
	ErrClosed = errors.New("bitkeep: store is closed")
	// ErrNotADatastore is returned by Open when dir exists, is non-empty,
	// and does not look like a datastore this package created.
	ErrNotADatastore = errors.New("bitkeep: path exists and is not a datastore")
)
