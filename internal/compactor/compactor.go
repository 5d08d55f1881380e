// Package compactor implements the background worker that reclaims space
// held by superseded and tombstoned records (spec.md §4.5). It never
// blocks the flusher, and blocks readers only while it holds the exclusive
// I/O lock for a file's keydir swap: each run scans its own snapshot of
// sealed files, rewrites the live survivors into a fresh file under the
// same id, and swaps the keydir's pointers over with compare-and-replace so
// a write racing the scan is never silently lost.
package compactor

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ananthvk/bitkeep/internal/fileset"
	"github.com/ananthvk/bitkeep/internal/hintfile"
	"github.com/ananthvk/bitkeep/internal/keydir"
	"github.com/ananthvk/bitkeep/internal/logfile"
	"github.com/ananthvk/bitkeep/internal/record"
	"github.com/spf13/afero"
)

// Options configures when a run triggers and which files it is willing to
// touch.
type Options struct {
	Interval              time.Duration // 0 disables the background ticker
	DeadRatio             float64       // per-file admission filter
	MergeMinDataFileRatio float64       // whole-run admission filter
	HintFiles             bool          // write a .hint file for every rewritten file
}

// Compactor periodically rewrites sealed data files to drop dead records.
type Compactor struct {
	afs     afero.Fs
	fs      *fileset.FileSet
	kd      *keydir.Keydir
	hints   string
	opts    Options

	// ioLock is the shared/exclusive lock owned by the embedding Store. A
	// compactFile run takes the exclusive side across its keydir CAS batch
	// and the fileset pointer swap, so a reader holding the shared side
	// never pairs a post-swap keydir entry with a pre-swap LogFile handle.
	ioLock *sync.RWMutex

	running int32 // atomic bool, surfaced for STATS

	stop chan struct{}
	done chan struct{}
}

// New returns a Compactor. hintsDir is the directory hint files are written
// to; it is created on first use if Options.HintFiles is set. ioLock is
// shared with the embedding Store's read path so that a compaction swap is
// atomic to readers (see Compactor.ioLock).
func New(afs afero.Fs, fs *fileset.FileSet, kd *keydir.Keydir, hintsDir string, ioLock *sync.RWMutex, opts Options) *Compactor {
	return &Compactor{afs: afs, fs: fs, kd: kd, hints: hintsDir, ioLock: ioLock, opts: opts, stop: make(chan struct{}), done: make(chan struct{})}
}

// Start launches the background ticker loop. A zero Interval means the
// compactor only ever runs when RunOnce is called directly.
func (c *Compactor) Start() {
	if c.opts.Interval <= 0 {
		close(c.done)
		return
	}
	go c.loop()
}

func (c *Compactor) loop() {
	defer close(c.done)
	ticker := time.NewTicker(c.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.RunOnce()
		case <-c.stop:
			return
		}
	}
}

// Stop halts the background loop, if running, and waits for any in-flight
// run to finish.
func (c *Compactor) Stop() {
	select {
	case <-c.done:
		return // loop never started (Interval <= 0)
	default:
	}
	close(c.stop)
	<-c.done
}

// IsRunning reports whether a compaction pass is currently in progress.
func (c *Compactor) IsRunning() bool {
	return atomic.LoadInt32(&c.running) != 0
}

// RunOnce performs a single compaction pass over every eligible sealed
// file. It returns whether any file was actually rewritten or removed.
func (c *Compactor) RunOnce() (bool, error) {
	atomic.StoreInt32(&c.running, 1)
	defer atomic.StoreInt32(&c.running, 0)

	candidates := c.fs.ImmutableIDs()
	if len(candidates) == 0 {
		return false, nil
	}

	if activeSize := c.fs.Active().Size(); activeSize > 0 {
		ratio := float64(c.fs.TotalImmutableBytes()) / float64(activeSize)
		if ratio < c.opts.MergeMinDataFileRatio {
			return false, nil
		}
	}

	didWork := false
	for _, id := range candidates {
		lf, err := c.fs.Get(id)
		if err != nil {
			continue
		}
		if lf.NumRecords() == 0 {
			lf.Release()
			continue
		}
		deadRatio := float64(lf.DeadRecords()) / float64(lf.NumRecords())
		if deadRatio < c.opts.DeadRatio {
			lf.Release()
			continue
		}
		ok, err := c.compactFile(id, lf)
		lf.Release()
		if err != nil {
			return didWork, err
		}
		if ok {
			didWork = true
		}
	}
	return didWork, nil
}

// compactFile rewrites the live records of file id into a fresh file
// occupying the same id, or removes the file entirely if nothing in it is
// still live.
func (c *Compactor) compactFile(id uint32, lf *logfile.LogFile) (bool, error) {
	type survivor struct {
		key    []byte
		value  []byte
		ts     time.Time
		oldVal keydir.Entry
	}

	scanner, err := lf.Scanner()
	if err != nil {
		return false, err
	}

	var survivors []survivor
	for {
		rec, offset, err := scanner.Scan()
		if err != nil {
			if err == io.EOF {
				break
			}
			scanner.Close()
			return false, err
		}
		if rec.Header.Tombstone {
			continue
		}
		valueOffset := offset + int64(record.HeaderSize) + int64(len(rec.Key))
		cur, ok := c.kd.Get(rec.Key)
		if !ok || cur.FileID != id || cur.ValueOffset != valueOffset {
			continue // superseded or deleted since this file was sealed
		}
		survivors = append(survivors, survivor{
			key:    append([]byte(nil), rec.Key...),
			value:  append([]byte(nil), rec.Value...),
			ts:     rec.Header.Timestamp,
			oldVal: cur,
		})
	}
	scanner.Close()

	if len(survivors) == 0 {
		return true, c.fs.RemoveEmpty(id)
	}

	tmpPath := c.fs.NextTempPath(id)
	w, err := record.NewWriter(c.afs, tmpPath)
	if err != nil {
		return false, err
	}

	newOffsets := make([]int64, len(survivors))
	for i, sv := range survivors {
		offs, err := w.Append([]*record.Record{record.NewWithTimestamp(sv.key, sv.value, sv.ts)})
		if err != nil {
			w.Close()
			c.afs.Remove(tmpPath)
			return false, err
		}
		newOffsets[i] = offs[0]
	}
	if err := w.Sync(); err != nil {
		w.Close()
		c.afs.Remove(tmpPath)
		return false, err
	}
	if err := w.Close(); err != nil {
		c.afs.Remove(tmpPath)
		return false, err
	}

	finalPath := filepath.Join(c.fs.DataDir(), dataFileName(id))
	if err := c.afs.Rename(tmpPath, finalPath); err != nil {
		c.afs.Remove(tmpPath)
		return false, err
	}

	newLF, err := logfile.Open(c.afs, c.fs.DataDir(), id)
	if err != nil {
		return false, err
	}

	var hw *hintfile.Writer
	hintPath := filepath.Join(c.hints, hintFileName(id))
	if c.opts.HintFiles {
		if err := c.afs.MkdirAll(c.hints, 0o755); err == nil {
			hw, _ = hintfile.NewWriter(c.afs, hintPath)
		}
	}
	hintOK := true

	// Everything from here through the fileset pointer swap runs under the
	// exclusive lock: a reader holding the shared side snapshots a keydir
	// entry and retains a LogFile handle as one atomic step, so it can
	// never see a CAS'd entry pointing at this id while still holding the
	// pre-swap LogFile (whose read fd is the pre-rename file).
	c.ioLock.Lock()
	var superseded uint64
	for i, sv := range survivors {
		newEntry := keydir.Entry{FileID: id, ValueOffset: newOffsets[i], ValueSize: uint32(len(sv.value)), Timestamp: sv.ts.UnixMicro()}
		if !c.kd.CompareAndReplace(sv.key, sv.oldVal, newEntry) {
			// Superseded between the scan above and now: the record we
			// just wrote into newLF at newOffsets[i] is already dead.
			superseded++
			continue
		}
		if hw != nil && hintOK {
			if err := hw.WriteHintRecord(&hintfile.HintRecord{
				Timestamp:   sv.ts,
				KeySize:     uint32(len(sv.key)),
				ValueSize:   uint32(len(sv.value)),
				ValueOffset: newOffsets[i],
				Key:         sv.key,
			}); err != nil {
				hintOK = false
			}
		}
	}
	newLF.SetRecordCounts(uint64(len(survivors)), superseded)
	if hw != nil {
		if err := hw.Close(); err != nil {
			hintOK = false
		}
		if !hintOK {
			// A partial hint file scans as a clean, successful EOF on the
			// next open (same truncated-tail tolerance a crash needs), which
			// would make recovery trust it as complete and silently drop
			// every key written after the failure point. Remove it instead:
			// rebuildKeydir falls back to a full record scan when no hint
			// file is present.
			c.afs.Remove(hintPath)
		}
	}
	err = c.fs.ReplaceCompacted(id, newLF)
	c.ioLock.Unlock()

	return true, err
}

func dataFileName(id uint32) string { return fmt.Sprintf("%010d.data", id) }
func hintFileName(id uint32) string { return fmt.Sprintf("%010d.hint", id) }
