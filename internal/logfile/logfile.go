// Package logfile wraps a single on-disk log file (spec.md §4.1): an
// append-only sequence of records, identified by a numeric file id, that is
// either the one active file being written to or one of the sealed
// immutable files the compactor may later rewrite.
//
// A LogFile is reference-counted (design note on shared LogFile ownership):
// the fileset hands out the same *LogFile to every caller that wants to read
// a given id, readers and the flusher each Retain() their own handle, and the
// underlying afero.File is only closed once the last holder Releases it. This
// lets the compactor remove a sealed file's entry from the fileset while a
// reader that is still partway through a Get on it keeps working.
package logfile

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/ananthvk/bitkeep/internal/record"
	"github.com/spf13/afero"
)

// LogFile is one numbered file under <dir>/data.
type LogFile struct {
	fs   afero.Fs
	id   uint32
	path string

	mu     sync.Mutex
	writer *record.Writer // non-nil only for the active file
	reader *record.Reader // lazily opened on first read

	refs int32 // atomic; closes files once it drops to 0 via Release

	size        int64 // atomic; current end-of-file offset
	numRecords  uint64
	deadRecords uint64
}

// Create creates a new, empty active log file with the given id and opens
// it for appending.
func Create(fs afero.Fs, dir string, id uint32) (*LogFile, error) {
	path := filepath.Join(dir, fileName(id))
	w, err := record.NewWriter(fs, path)
	if err != nil {
		return nil, err
	}
	return &LogFile{fs: fs, id: id, path: path, writer: w, refs: 1}, nil
}

// Open opens an existing file by id for reading. The file is treated as
// sealed: it has no writer, so Append always fails on it, and it stays
// read-only for its lifetime.
func Open(fs afero.Fs, dir string, id uint32) (*LogFile, error) {
	path := filepath.Join(dir, fileName(id))
	r, err := record.NewReader(fs, path)
	if err != nil {
		return nil, err
	}
	size, err := r.Size()
	if err != nil {
		r.Close()
		return nil, err
	}
	return &LogFile{fs: fs, id: id, path: path, reader: r, refs: 1, size: size}, nil
}

func fileName(id uint32) string {
	return fmt.Sprintf("%010d.data", id)
}

// ID returns the file's numeric identifier.
func (lf *LogFile) ID() uint32 { return lf.id }

// Path returns the file's path on the underlying filesystem.
func (lf *LogFile) Path() string { return lf.path }

// Size returns the current length of the file in bytes.
func (lf *LogFile) Size() int64 { return atomic.LoadInt64(&lf.size) }

// Append writes records to the active file and returns each record's
// absolute value offset, mirroring record.Writer.Append. Safe for
// concurrent callers to invoke against the same LogFile; Append does not
// reorder a single call's records, and in the store the flusher's single
// goroutine is the only caller, so batches land in the order it flushes them.
func (lf *LogFile) Append(records []*record.Record) ([]int64, error) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	if lf.writer == nil {
		return nil, fmt.Errorf("logfile %d: not open for writing", lf.id)
	}
	offsets, err := lf.writer.Append(records)
	if err != nil {
		return nil, err
	}
	atomic.StoreInt64(&lf.size, lf.writer.Size())
	atomic.AddUint64(&lf.numRecords, uint64(len(records)))
	return offsets, nil
}

// ReadValueAt reads just the value bytes at valueOffset, the hot Get path.
func (lf *LogFile) ReadValueAt(valueOffset int64, valueSize uint32) ([]byte, error) {
	r, err := lf.readerLocked()
	if err != nil {
		return nil, err
	}
	return r.ReadValueAt(valueOffset, valueSize)
}

// Scanner opens a fresh sequential scanner over the file, used for
// recovery and compaction's forward pass.
func (lf *LogFile) Scanner() (*record.Scanner, error) {
	return record.NewScanner(lf.fs, lf.path)
}

func (lf *LogFile) readerLocked() (*record.Reader, error) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	if lf.reader != nil {
		return lf.reader, nil
	}
	r, err := record.NewReader(lf.fs, lf.path)
	if err != nil {
		return nil, err
	}
	lf.reader = r
	return r, nil
}

// Sync flushes the active file's writes to stable storage.
func (lf *LogFile) Sync() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	if lf.writer == nil {
		return nil
	}
	return lf.writer.Sync()
}

// NumRecords returns the count of records appended to this file.
func (lf *LogFile) NumRecords() uint64 { return atomic.LoadUint64(&lf.numRecords) }

// DeadRecords returns the count of records superseded by a later write, or
// erased by a tombstone, tracked for the compactor's per-file admission
// filter (CompactDeadRatio).
func (lf *LogFile) DeadRecords() uint64 { return atomic.LoadUint64(&lf.deadRecords) }

// MarkDead increments the dead-record counter. The flusher calls it when a
// put or tombstone supersedes a live entry that pointed at this file, and
// on the active file for every tombstone record it appends; recovery calls
// it when a later file supersedes an entry in this one.
func (lf *LogFile) MarkDead() { atomic.AddUint64(&lf.deadRecords, 1) }

// SetRecordCounts initializes the record/dead-record counters from a
// recovery scan. It is only safe to call before the file is exposed to
// concurrent readers (i.e. during Open's recovery pass).
func (lf *LogFile) SetRecordCounts(num, dead uint64) {
	atomic.StoreUint64(&lf.numRecords, num)
	atomic.StoreUint64(&lf.deadRecords, dead)
}

// Retain increments the reference count and returns lf for chaining.
func (lf *LogFile) Retain() *LogFile {
	atomic.AddInt32(&lf.refs, 1)
	return lf
}

// Release decrements the reference count, closing the underlying
// afero.File handles once the last holder releases.
func (lf *LogFile) Release() error {
	if atomic.AddInt32(&lf.refs, -1) > 0 {
		return nil
	}
	lf.mu.Lock()
	defer lf.mu.Unlock()
	var err error
	if lf.writer != nil {
		if e := lf.writer.Close(); e != nil {
			err = e
		}
		lf.writer = nil
	}
	if lf.reader != nil {
		if e := lf.reader.Close(); e != nil {
			err = e
		}
		lf.reader = nil
	}
	return err
}
