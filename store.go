// Package bitkeep implements an embeddable, single-process, persistent
// key/value store on the Bitcask model: an in-memory keydir pointing at
// offsets into an append-only log split across immutable files and one
// active file. Writes are batched through a single background flusher;
// reads never block on writes; a background compactor reclaims space held
// by superseded and tombstoned records without blocking writes, and blocks
// reads only during its brief per-file keydir swap.
package bitkeep

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ananthvk/bitkeep/internal/compactor"
	"github.com/ananthvk/bitkeep/internal/fileset"
	"github.com/ananthvk/bitkeep/internal/flusher"
	"github.com/ananthvk/bitkeep/internal/hintfile"
	"github.com/ananthvk/bitkeep/internal/keydir"
	"github.com/ananthvk/bitkeep/internal/metafile"
	"github.com/ananthvk/bitkeep/internal/record"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

const formatVersion = "2"

// Store is one open datastore directory.
type Store struct {
	afs afero.Fs
	dir string
	id  string

	kd    *keydir.Keydir
	fset  *fileset.FileSet
	fl    *flusher.Flusher
	comp  *compactor.Compactor
	opts  Options

	// ioLock is the shared/exclusive lock that makes a compaction swap
	// atomic to readers. The compactor takes the exclusive side across its
	// keydir CAS batch and the fileset pointer swap (internal/compactor);
	// Get takes the shared side across the matching snapshot-and-retain
	// pair so it never pairs a post-swap keydir entry with a pre-swap
	// LogFile handle.
	ioLock *sync.RWMutex

	closed int32
}

// Open opens the datastore at dir, creating it if it does not yet exist.
// If dir already holds a datastore, its keydir is rebuilt from the
// existing log files (using hint files as a fast path where available)
// before Open returns.
func Open(afs afero.Fs, dir string, opts ...Option) (*Store, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	isStore, err := metafile.IsDatastore(afs, dir)
	if err != nil {
		return nil, err
	}

	var id string
	if isStore {
		meta, err := metafile.ReadMetaFile(afs, dir)
		if err != nil {
			return nil, fmt.Errorf("bitkeep: reading metafile: %w", err)
		}
		id = meta.ID
	} else {
		valid, reason, err := metafile.IsValidPath(afs, dir)
		if err != nil {
			return nil, err
		}
		if !valid {
			return nil, fmt.Errorf("%w: %s", ErrNotADatastore, reason)
		}
		if err := afs.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		id = uuid.NewString()
		meta := &metafile.MetaData{
			Type:            "bitkeep",
			Version:         formatVersion,
			Created:         time.Now().UTC().Format(time.RFC3339),
			MaxDatafileSize: int(o.MaxDataFileSize),
			ID:              id,
		}
		if err := metafile.WriteMetaFile(afs, dir, meta); err != nil {
			return nil, err
		}
	}

	dataDir := filepath.Join(dir, "data")
	hintsDir := filepath.Join(dir, "hints")

	fset, err := fileset.Open(afs, dataDir, o.MaxDataFileSize)
	if err != nil {
		return nil, err
	}
	sweepStrayTempFiles(afs, dataDir)

	kd := keydir.New()
	if err := rebuildKeydir(afs, fset, kd, hintsDir, o.HintFiles); err != nil {
		fset.Close()
		return nil, err
	}

	fl := flusher.New(fset, kd, flusher.Options{
		QueueCapacity: o.QueueCapacity,
		BatchBytes:    o.FlushBatchSize,
		BatchInterval: o.flushInterval(),
		Fsync:         o.FsyncMode,
	})

	ioLock := &sync.RWMutex{}

	comp := compactor.New(afs, fset, kd, hintsDir, ioLock, compactor.Options{
		Interval:              o.compactionInterval(),
		DeadRatio:             o.CompactDeadRatio,
		MergeMinDataFileRatio: o.MergeMinDataFileRatio,
		HintFiles:             o.HintFiles,
	})
	comp.Start()

	return &Store{afs: afs, dir: dir, id: id, kd: kd, fset: fset, fl: fl, comp: comp, ioLock: ioLock, opts: o}, nil
}

// sweepStrayTempFiles removes any *.data.tmp left behind by a compaction
// that was interrupted mid-rewrite — the rename to the final path never
// happened, so the original file is still intact and the tmp is garbage.
func sweepStrayTempFiles(afs afero.Fs, dataDir string) {
	entries, err := afero.ReadDir(afs, dataDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			afs.Remove(filepath.Join(dataDir, e.Name()))
		}
	}
}

// rebuildKeydir reconstructs kd by scanning every known file in ascending
// id order, so a later write always wins over an earlier one for the same
// key. A present, enabled hint file short-circuits the full record scan
// for the file it was written for.
func rebuildKeydir(afs afero.Fs, fset *fileset.FileSet, kd *keydir.Keydir, hintsDir string, useHints bool) error {
	for _, id := range fset.AllIDs() {
		lf, err := fset.Get(id)
		if err != nil {
			return err
		}

		usedHint := false
		if useHints {
			hintPath := filepath.Join(hintsDir, fmt.Sprintf("%010d.hint", id))
			if ok, _ := afero.Exists(afs, hintPath); ok {
				if err := loadFromHint(afs, hintPath, kd, id, lf); err == nil {
					usedHint = true
				}
			}
		}

		if !usedHint {
			if err := loadFromDataFile(lf, kd, id, fset); err != nil {
				lf.Release()
				return err
			}
		}
		lf.Release()
	}
	return nil
}

func loadFromHint(afs afero.Fs, path string, kd *keydir.Keydir, id uint32, lf interface{ SetRecordCounts(uint64, uint64) }) error {
	scanner, err := hintfile.NewScanner(afs, path)
	if err != nil {
		return err
	}
	defer scanner.Close()

	var num uint64
	for {
		rec, err := scanner.Scan()
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		num++
		kd.Put(rec.Key, keydir.Entry{
			FileID:      id,
			ValueOffset: rec.ValueOffset,
			ValueSize:   rec.ValueSize,
			Timestamp:   rec.Timestamp.UnixMicro(),
		})
	}
	// A hint file only ever records the live survivors of a compaction
	// run, so this file starts with a clean slate of zero dead records.
	lf.SetRecordCounts(num, 0)
	return nil
}

func loadFromDataFile(lf logFileScanner, kd *keydir.Keydir, id uint32, fset *fileset.FileSet) error {
	scanner, err := lf.Scanner()
	if err != nil {
		return err
	}
	defer scanner.Close()

	var num, deadHere uint64
	for {
		rec, offset, err := scanner.Scan()
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		num++
		if rec.Header.Tombstone {
			old, existed := kd.Delete(rec.Key)
			if existed {
				markDeadElsewhere(fset, old.FileID, id, &deadHere)
			}
			continue
		}
		valueOffset := offset + int64(record.HeaderSize) + int64(len(rec.Key))
		entry := keydir.Entry{FileID: id, ValueOffset: valueOffset, ValueSize: rec.Header.ValueSize, Timestamp: rec.Header.Timestamp.UnixMicro()}
		old, hadOld := kd.Put(rec.Key, entry)
		if hadOld {
			markDeadElsewhere(fset, old.FileID, id, &deadHere)
		}
	}
	lf.SetRecordCounts(num, deadHere)
	return nil
}

func markDeadElsewhere(fset *fileset.FileSet, fileID, selfID uint32, deadHere *uint64) {
	if fileID == selfID {
		*deadHere++
		return
	}
	other, err := fset.Get(fileID)
	if err != nil {
		return
	}
	other.MarkDead()
	other.Release()
}

// logFileScanner is the subset of *logfile.LogFile that recovery needs;
// named here only to keep loadFromDataFile's signature self-documenting.
type logFileScanner = interface {
	Scanner() (*record.Scanner, error)
	SetRecordCounts(uint64, uint64)
}

// ID returns this store's instance identifier, assigned once when the
// datastore directory was first created.
func (s *Store) ID() string { return s.id }

// Put inserts or overwrites the value for key. It blocks until the write
// has been appended to the active file and is visible to Get.
func (s *Store) Put(key, value []byte) error {
	if s.isClosed() {
		return ErrClosed
	}
	return s.fl.Put(key, value)
}

// Get returns the current value for key, or ErrKeyNotFound if it has no
// live entry.
func (s *Store) Get(key []byte) ([]byte, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	s.ioLock.RLock()
	entry, ok := s.kd.Get(key)
	if !ok {
		s.ioLock.RUnlock()
		return nil, ErrKeyNotFound
	}
	lf, err := s.fset.Get(entry.FileID)
	s.ioLock.RUnlock()
	if err != nil {
		return nil, err
	}
	defer lf.Release()
	return lf.ReadValueAt(entry.ValueOffset, entry.ValueSize)
}

// Remove deletes key, returning ok=false if it had no live entry.
func (s *Store) Remove(key []byte) (bool, error) {
	if s.isClosed() {
		return false, ErrClosed
	}
	return s.fl.Remove(key)
}

// Keys returns a snapshot of every live key.
func (s *Store) Keys() [][]byte {
	return s.kd.Keys()
}

// Len returns the number of live keys.
func (s *Store) Len() int {
	return s.kd.Len()
}

// Sync forces the active file to stable storage.
func (s *Store) Sync() error {
	if s.isClosed() {
		return ErrClosed
	}
	return s.fset.Sync()
}

// Compact triggers a single synchronous compaction pass, bypassing the
// background interval. Useful for tests and for any caller that drives
// compaction itself.
func (s *Store) Compact() (bool, error) {
	if s.isClosed() {
		return false, ErrClosed
	}
	return s.comp.RunOnce()
}

// CompactionRunning reports whether a compaction pass is currently in
// progress.
func (s *Store) CompactionRunning() bool {
	return s.comp.IsRunning()
}

// FileStats describes one data file's footprint, surfaced by Stats.
type FileStats struct {
	ID          uint32
	NumRecords  uint64
	DeadRecords uint64
	Size        int64
	Active      bool
}

// Stats is a point-in-time snapshot of the datastore's internal state, for
// the STATS command and similar diagnostics. It is not itself part of the
// embedding API's core contract.
type Stats struct {
	InstanceID        string
	LiveKeys          int
	CompactionRunning bool
	Files             []FileStats
}

// Stats returns a snapshot covering the keydir size, every known data
// file's total and dead record counts, and whether a compaction is in
// flight.
func (s *Store) Stats() (Stats, error) {
	if s.isClosed() {
		return Stats{}, ErrClosed
	}
	activeID := s.fset.Active().ID()
	ids := s.fset.AllIDs()
	files := make([]FileStats, 0, len(ids))
	for _, id := range ids {
		lf, err := s.fset.Get(id)
		if err != nil {
			continue
		}
		files = append(files, FileStats{
			ID:          id,
			NumRecords:  lf.NumRecords(),
			DeadRecords: lf.DeadRecords(),
			Size:        lf.Size(),
			Active:      id == activeID,
		})
		lf.Release()
	}
	return Stats{
		InstanceID:        s.id,
		LiveKeys:          s.kd.Len(),
		CompactionRunning: s.comp.IsRunning(),
		Files:             files,
	}, nil
}

// Close stops the background compactor and flusher and releases every
// open file handle. Close is idempotent.
func (s *Store) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	s.comp.Stop()
	s.fl.Close()
	return s.fset.Close()
}

func (s *Store) isClosed() bool {
	return atomic.LoadInt32(&s.closed) != 0
}
