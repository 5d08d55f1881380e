// Package flusher is the store's single writer (spec.md §4.3): every Put
// and Remove enqueues a request on a bounded channel and blocks until a
// background goroutine has batched it with concurrent requests, appended
// the batch to the active file in one write, and updated the keydir. This
// is what lets concurrent callers share one sequential append stream
// without each of them taking a turn writing themselves.
package flusher

import (
	"sync"
	"time"

	"github.com/ananthvk/bitkeep/internal/fileset"
	"github.com/ananthvk/bitkeep/internal/keydir"
	"github.com/ananthvk/bitkeep/internal/record"
)

// Options configures batching behavior.
type Options struct {
	QueueCapacity int           // channel buffer size, backpressure point
	BatchBytes    int           // flush once pending payload reaches this many bytes
	BatchInterval time.Duration // flush a partial batch after this long
	Fsync         bool          // fsync the active file after every flushed batch
}

type result struct {
	err     error
	existed bool // for tombstone requests: whether the key had a live entry
}

type request struct {
	key       []byte
	value     []byte
	tombstone bool
	timestamp time.Time
	done      chan result
}

// Flusher owns the write side of the datastore: it drains a request
// channel, batches pending writes, and is the only goroutine that calls
// FileSet.Active().Append or FileSet.Rotate.
type Flusher struct {
	opts Options
	fs   *fileset.FileSet
	kd   *keydir.Keydir

	queue chan *request

	closeOnce sync.Once
	closed    chan struct{}
	done      chan struct{}
}

// New starts the background batching loop and returns a ready Flusher.
func New(fs *fileset.FileSet, kd *keydir.Keydir, opts Options) *Flusher {
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = 1024
	}
	if opts.BatchBytes <= 0 {
		opts.BatchBytes = 8 << 20
	}
	if opts.BatchInterval <= 0 {
		opts.BatchInterval = 50 * time.Microsecond
	}
	f := &Flusher{
		opts:   opts,
		fs:     fs,
		kd:     kd,
		queue:  make(chan *request, opts.QueueCapacity),
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go f.loop()
	return f
}

// Put enqueues a write and blocks until it has been durably appended to
// the active file and reflected in the keydir.
func (f *Flusher) Put(key, value []byte) error {
	res := f.submit(key, value, false, time.Now())
	return res.err
}

// Remove enqueues a tombstone write and reports whether the key had a live
// entry at the moment the tombstone was applied.
func (f *Flusher) Remove(key []byte) (bool, error) {
	res := f.submit(key, nil, true, time.Now())
	return res.existed, res.err
}

func (f *Flusher) submit(key, value []byte, tombstone bool, ts time.Time) result {
	req := &request{key: key, value: value, tombstone: tombstone, timestamp: ts, done: make(chan result, 1)}
	select {
	case <-f.closed:
		return result{err: ErrClosed}
	default:
	}
	select {
	case f.queue <- req:
	case <-f.closed:
		return result{err: ErrClosed}
	}
	return <-req.done
}

// Close stops accepting new requests and waits for the in-flight batch to
// finish.
func (f *Flusher) Close() error {
	f.closeOnce.Do(func() {
		close(f.closed)
	})
	<-f.done
	return nil
}

func (f *Flusher) loop() {
	defer close(f.done)
	ticker := time.NewTicker(f.opts.BatchInterval)
	defer ticker.Stop()

	var pending []*request
	var pendingBytes int

	flush := func() {
		if len(pending) == 0 {
			return
		}
		f.flushBatch(pending)
		pending = nil
		pendingBytes = 0
	}

	for {
		select {
		case req := <-f.queue:
			pending = append(pending, req)
			pendingBytes += len(req.key) + len(req.value) + record.HeaderSize
			if pendingBytes >= f.opts.BatchBytes {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-f.closed:
			// Drain whatever is already queued before shutting down.
			for {
				select {
				case req := <-f.queue:
					pending = append(pending, req)
				default:
					flush()
					return
				}
			}
		}
	}
}

// flushBatch appends a batch of pending requests to the active file in one
// write, updates the keydir, and notifies every waiter.
func (f *Flusher) flushBatch(pending []*request) {
	records := make([]*record.Record, len(pending))
	for i, req := range pending {
		if req.tombstone {
			records[i] = record.NewTombstoneWithTimestamp(req.key, req.timestamp)
		} else {
			records[i] = record.NewWithTimestamp(req.key, req.value, req.timestamp)
		}
	}

	active := f.fs.Active()
	offsets, err := active.Append(records)
	if err != nil {
		for _, req := range pending {
			req.done <- result{err: err}
		}
		return
	}

	existed := make([]bool, len(pending))
	for i, req := range pending {
		if req.tombstone {
			old, ok := f.kd.Delete(req.key)
			existed[i] = ok
			if ok {
				f.markDead(old)
			}
			// The tombstone record just appended to active is itself dead
			// weight from the moment it lands: it holds no live value, so
			// nothing will ever CompareAndReplace it during compaction.
			// Without this, a file full of tombstones for already-deleted
			// or never-existing keys could sit under CompactDeadRatio
			// forever despite being 100% reclaimable.
			active.MarkDead()
		} else {
			entry := keydir.Entry{
				FileID:      active.ID(),
				ValueOffset: offsets[i],
				ValueSize:   uint32(len(req.value)),
				Timestamp:   req.timestamp.UnixMicro(),
			}
			old, hadOld := f.kd.Put(req.key, entry)
			if hadOld {
				f.markDead(old)
			}
		}
	}

	if f.opts.Fsync {
		if err := active.Sync(); err != nil {
			for _, req := range pending {
				req.done <- result{err: err}
			}
			return
		}
	}

	for i, req := range pending {
		req.done <- result{existed: existed[i]}
	}

	if f.fs.ShouldRotate() {
		// Checked after the append, not before: the active file can exceed
		// MaxDataFileSize by up to one batch (fileset.go). A failed
		// rotation just means it keeps growing past the threshold; the
		// next flush retries the check.
		f.fs.Rotate()
	}
}

func (f *Flusher) markDead(old keydir.Entry) {
	lf, err := f.fs.Get(old.FileID)
	if err != nil {
		return
	}
	defer lf.Release()
	lf.MarkDead()
}
