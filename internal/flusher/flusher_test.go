package flusher

import (
	"sync"
	"testing"
	"time"

	"github.com/ananthvk/bitkeep/internal/fileset"
	"github.com/ananthvk/bitkeep/internal/keydir"
	"github.com/spf13/afero"
)

func newTestFlusher(t *testing.T, maxFileSize int64) (*Flusher, *fileset.FileSet, *keydir.Keydir) {
	t.Helper()
	fs := afero.NewMemMapFs()
	fset, err := fileset.Open(fs, "/data", maxFileSize)
	if err != nil {
		t.Fatalf("fileset.Open: %v", err)
	}
	kd := keydir.New()
	f := New(fset, kd, Options{QueueCapacity: 16, BatchBytes: 1 << 20, BatchInterval: 2 * time.Millisecond})
	t.Cleanup(func() {
		f.Close()
		fset.Close()
	})
	return f, fset, kd
}

func TestPutThenGetViaKeydir(t *testing.T) {
	f, fset, kd := newTestFlusher(t, 1<<20)

	if err := f.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	entry, ok := kd.Get([]byte("k"))
	if !ok {
		t.Fatalf("expected keydir entry after Put")
	}
	lf, err := fset.Get(entry.FileID)
	if err != nil {
		t.Fatalf("fset.Get: %v", err)
	}
	defer lf.Release()
	value, err := lf.ReadValueAt(entry.ValueOffset, entry.ValueSize)
	if err != nil {
		t.Fatalf("ReadValueAt: %v", err)
	}
	if string(value) != "v" {
		t.Errorf("expected v, got %q", value)
	}
}

func TestRemoveReportsExistence(t *testing.T) {
	f, _, _ := newTestFlusher(t, 1<<20)

	existed, err := f.Remove([]byte("missing"))
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if existed {
		t.Errorf("expected existed=false for a never-written key")
	}

	if err := f.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	existed, err = f.Remove([]byte("k"))
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !existed {
		t.Errorf("expected existed=true when removing a live key")
	}
}

func TestConcurrentPutsAllVisible(t *testing.T) {
	f, _, kd := newTestFlusher(t, 1<<20)

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := []byte{byte(i), byte(i >> 8)}
			if err := f.Put(key, []byte("value")); err != nil {
				t.Errorf("Put: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if kd.Len() != n {
		t.Fatalf("expected %d keys, got %d", n, kd.Len())
	}
}

func TestPutAfterCloseReturnsErrClosed(t *testing.T) {
	f, _, _ := newTestFlusher(t, 1<<20)
	f.Close()
	if err := f.Put([]byte("k"), []byte("v")); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestRotationHappensAcrossBatches(t *testing.T) {
	f, fset, _ := newTestFlusher(t, 16) // tiny threshold, forces rotation quickly

	for i := 0; i < 5; i++ {
		if err := f.Put([]byte{byte(i)}, []byte("0123456789")); err != nil {
			t.Fatalf("Put %d: %v", i, err)
		}
	}
	if len(fset.ImmutableIDs()) == 0 {
		t.Fatalf("expected at least one sealed file after exceeding MaxDataFileSize")
	}
}
