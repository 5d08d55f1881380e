// Package record implements the on-disk codec for Bitcask log entries: a
// fixed 21-byte header (crc32, timestamp, key_size, value_size, tombstone)
// followed by the key and, unless the record is a tombstone, the value.
package record

import "time"

// HeaderSize is the size in bytes of the fixed record header:
// crc32(4) + timestamp(8) + key_size(4) + value_size(4) + tombstone(1).
const HeaderSize = 21

// maxBodySize bounds the key+value length a scanner will trust out of a
// header before its checksum is verified, guarding against a corrupted
// key_size/value_size field sending it off to allocate gigabytes.
const maxBodySize = 256 << 20

// Header is the fixed-size prefix of every on-disk record.
type Header struct {
	CRC32     uint32
	Timestamp time.Time
	KeySize   uint32
	ValueSize uint32
	Tombstone bool
}

// Record is one key/value (or tombstone) entry as it appears on disk.
// Size is the total on-disk size of the record (header + key + value),
// used to advance a scan to the next record.
type Record struct {
	Header Header
	Key    []byte
	Value  []byte
	Size   int64
}

// New builds a live record for key/value, stamped with the current time.
func New(key, value []byte) *Record {
	return build(key, value, false, time.Now())
}

// NewWithTimestamp builds a live record with an explicit timestamp. The
// compactor uses this to preserve a migrated record's original write time.
func NewWithTimestamp(key, value []byte, ts time.Time) *Record {
	return build(key, value, false, ts)
}

// NewTombstone builds a deletion-marker record for key.
func NewTombstone(key []byte) *Record {
	return build(key, nil, true, time.Now())
}

// NewTombstoneWithTimestamp builds a deletion-marker record with an
// explicit timestamp.
func NewTombstoneWithTimestamp(key []byte, ts time.Time) *Record {
	return build(key, nil, true, ts)
}

func build(key, value []byte, tombstone bool, ts time.Time) *Record {
	return &Record{
		Header: Header{
			Timestamp: ts,
			KeySize:   uint32(len(key)),
			ValueSize: uint32(len(value)),
			Tombstone: tombstone,
		},
		Key:   key,
		Value: value,
		Size:  int64(HeaderSize) + int64(len(key)) + int64(len(value)),
	}
}
