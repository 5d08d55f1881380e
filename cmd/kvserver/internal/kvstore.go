package internal

import (
	"log/slog"
	"time"

	"github.com/ananthvk/bitkeep"
	"github.com/spf13/afero"
)

// Sync every 30s, independent of FsyncMode, as a durability backstop for
// whatever the last batch left unsynced.
const syncInterval = time.Second * 30

// KVStore wraps a *bitkeep.Store for the RESP front end. The store already
// runs its own background flusher and compactor internally; this just adds
// the connection-handling surface, lifecycle logging, and a periodic sync.
type KVStore struct {
	Path  string
	Store *bitkeep.Store
}

// NewKVStore opens (or creates) the datastore at datastorePath. Passing
// ":memory" backs it with an in-memory filesystem instead of the OS one,
// for quick experimentation without leaving files behind.
func NewKVStore(datastorePath string, opts ...bitkeep.Option) *KVStore {
	var fs afero.Fs
	if datastorePath == ":memory" {
		fs = afero.NewMemMapFs()
		datastorePath = "/in-memory-db"
	} else {
		fs = afero.NewOsFs()
	}

	start := time.Now()
	store, err := bitkeep.Open(fs, datastorePath, opts...)
	if err != nil {
		slog.Error("open failed", "path", datastorePath, "error", err)
		return nil
	}
	slog.Info("opened datastore", "path", datastorePath, "id", store.ID(), "took", time.Since(start))
	return &KVStore{Path: datastorePath, Store: store}
}

// StartBackgroundSync periodically forces the active file to stable
// storage, a backstop independent of FsyncMode.
func (kv *KVStore) StartBackgroundSync() {
	go func() {
		ticker := time.NewTicker(syncInterval)
		defer ticker.Stop()
		for range ticker.C {
			if err := kv.Store.Sync(); err != nil {
				slog.Warn("background sync failed", "error", err)
			}
		}
	}()
}

func (kv *KVStore) Close() error {
	if kv.Store == nil {
		return nil
	}
	slog.Info("closing store", "path", kv.Path)
	return kv.Store.Close()
}
