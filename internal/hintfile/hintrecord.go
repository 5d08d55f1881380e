// Package hintfile implements the optional recovery fast-path: for every
// file the compactor rewrites, it also writes a .hint file under the same
// id into the datastore's hints directory, recording each live key's (timestamp, size, value_offset) without the
// value bytes. On reopen, a hint file lets recovery skip a full record scan
// of its data file and rebuild those keydir entries directly.
package hintfile

import "time"

// HintRecordHeaderSize is timestamp(8) + key_size(4) + value_size(4) +
// value_offset(8).
const HintRecordHeaderSize = 24

// HintRecord is one key's keydir entry as recorded in a hint file.
type HintRecord struct {
	Timestamp   time.Time
	KeySize     uint32
	ValueSize   uint32
	ValueOffset int64
	Key         []byte
}
