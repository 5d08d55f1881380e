// Package fileset is the store's view of the collection of log files under
// <dir>/data (spec.md §4.4): it owns the currently active file, hands out
// shared *logfile.LogFile handles for immutable files, and performs
// rotation when the active file crosses MaxDataFileSize. It does not decide
// WHEN to rotate in response to a write's size — ShouldRotate reports that
// back to the caller (the flusher), which calls Rotate after a batch has
// been appended, so the active file can exceed MaxDataFileSize by up to one
// batch.
package fileset

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/ananthvk/bitkeep/internal/logfile"
	"github.com/spf13/afero"
)

// FileSet manages the set of data files belonging to one datastore
// directory.
type FileSet struct {
	mu      sync.RWMutex
	fs      afero.Fs
	dataDir string

	maxDataFileSize int64

	files  map[uint32]*logfile.LogFile
	active *logfile.LogFile
	nextID uint32
}

// Open scans dataDir for existing *.data files and opens every one of them
// read-only, then creates a fresh active file with the next id after the
// highest existing one (or creates file 1 if the directory is empty).
func Open(afs afero.Fs, dataDir string, maxDataFileSize int64) (*FileSet, error) {
	if err := afs.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	ids, err := listDataFileIDs(afs, dataDir)
	if err != nil {
		return nil, err
	}

	s := &FileSet{
		fs:              afs,
		dataDir:         dataDir,
		maxDataFileSize: maxDataFileSize,
		files:           make(map[uint32]*logfile.LogFile),
	}

	if len(ids) == 0 {
		lf, err := logfile.Create(afs, dataDir, 1)
		if err != nil {
			return nil, err
		}
		s.files[1] = lf
		s.active = lf
		s.nextID = 2
		return s, nil
	}

	// Every existing id, the highest included, opens read-only and stays
	// sealed; a new file with the next id becomes the active one below —
	// restarting the process always starts a fresh active file, the same
	// tradeoff the teacher's file manager documents (simpler crash
	// recovery at the cost of a short file on every restart).
	for _, id := range ids[:len(ids)-1] {
		lf, err := logfile.Open(afs, dataDir, id)
		if err != nil {
			return nil, err
		}
		s.files[id] = lf
	}

	lastID := ids[len(ids)-1]
	sealedLast, err := logfile.Open(afs, dataDir, lastID)
	if err != nil {
		return nil, err
	}
	s.files[lastID] = sealedLast

	newActiveID := lastID + 1
	active, err := logfile.Create(afs, dataDir, newActiveID)
	if err != nil {
		return nil, err
	}
	s.files[newActiveID] = active
	s.active = active
	s.nextID = newActiveID + 1

	return s, nil
}

func listDataFileIDs(afs afero.Fs, dataDir string) ([]uint32, error) {
	entries, err := afero.ReadDir(afs, dataDir)
	if err != nil {
		return nil, err
	}
	var ids []uint32
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if filepath.Ext(name) != ".data" {
			continue
		}
		n, err := strconv.ParseUint(strings.TrimSuffix(name, ".data"), 10, 32)
		if err != nil {
			continue
		}
		ids = append(ids, uint32(n))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Active returns the current active file.
func (s *FileSet) Active() *logfile.LogFile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// ShouldRotate reports whether the active file has grown past the
// configured maximum and a new one should be started before the next
// batch.
func (s *FileSet) ShouldRotate() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active.Size() >= s.maxDataFileSize
}

// Rotate seals the current active file and starts a new one, returning the
// id of the file that was just sealed.
func (s *FileSet) Rotate() (sealedID uint32, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.active.Sync(); err != nil {
		return 0, err
	}
	sealedID = s.active.ID()

	next, err := logfile.Create(s.fs, s.dataDir, s.nextID)
	if err != nil {
		return 0, err
	}
	s.files[s.nextID] = next
	s.active = next
	s.nextID++
	return sealedID, nil
}

// Get returns the file with the given id, opening it lazily if it is not
// already held. The returned handle is retained on the caller's behalf —
// callers MUST call Release() on it when done, so a concurrent compaction
// swap (ReplaceCompacted/RemoveEmpty) cannot close the underlying file out
// from under an in-flight read.
func (s *FileSet) Get(id uint32) (*logfile.LogFile, error) {
	s.mu.RLock()
	lf, ok := s.files[id]
	s.mu.RUnlock()
	if ok {
		return lf.Retain(), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if lf, ok := s.files[id]; ok {
		return lf.Retain(), nil
	}
	lf, err := logfile.Open(s.fs, s.dataDir, id)
	if err != nil {
		return nil, err
	}
	s.files[id] = lf
	return lf.Retain(), nil
}

// ImmutableIDs returns the ids of all sealed (non-active) files, sorted
// ascending — the compactor's candidate set for a run.
func (s *FileSet) ImmutableIDs() []uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uint32, 0, len(s.files))
	for id := range s.files {
		if id == s.active.ID() {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// TotalImmutableBytes sums the on-disk size of every sealed file, used by
// the compactor's MergeMinDataFileRatio whole-run admission filter.
func (s *FileSet) TotalImmutableBytes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for id, lf := range s.files {
		if id == s.active.ID() {
			continue
		}
		total += lf.Size()
	}
	return total
}

// ReplaceCompacted atomically swaps a sealed file for its compacted
// replacement: the new LogFile takes over the same id, the old one is
// released (closed once the last reader finishes with it).
func (s *FileSet) ReplaceCompacted(id uint32, replacement *logfile.LogFile) error {
	s.mu.Lock()
	old, existed := s.files[id]
	s.files[id] = replacement
	s.mu.Unlock()
	if existed {
		return old.Release()
	}
	return nil
}

// RemoveEmpty drops a sealed file that compaction determined holds no live
// records at all, deleting it from disk.
func (s *FileSet) RemoveEmpty(id uint32) error {
	s.mu.Lock()
	lf, ok := s.files[id]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.files, id)
	s.mu.Unlock()

	path := lf.Path()
	if err := lf.Release(); err != nil {
		return err
	}
	return s.fs.Remove(path)
}

// AllIDs returns every known file id, sorted, active included — used by
// recovery to decide scan order.
func (s *FileSet) AllIDs() []uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uint32, 0, len(s.files))
	for id := range s.files {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Sync flushes the active file to stable storage.
func (s *FileSet) Sync() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active.Sync()
}

// Close releases every held file.
func (s *FileSet) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var first error
	for _, lf := range s.files {
		if err := lf.Release(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// DataDir returns the directory this FileSet manages, used by the
// compactor to place its temp files alongside the originals.
func (s *FileSet) DataDir() string { return s.dataDir }

// NextTempPath returns a path for a compaction-in-progress rewrite of the
// given file id.
func (s *FileSet) NextTempPath(id uint32) string {
	return filepath.Join(s.dataDir, fmt.Sprintf("%010d.data.tmp", id))
}
