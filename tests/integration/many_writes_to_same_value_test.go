package integration

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/ananthvk/bitkeep"
	"github.com/spf13/afero"
)

func TestManyWritesToSameValue(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "bitkeep_many_writes_test_*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer func() {
		if err := os.RemoveAll(tempDir); err != nil {
			t.Logf("warning: failed to cleanup temp dir %s: %v", tempDir, err)
		}
	}()

	fs := afero.NewOsFs()
	dbPath := filepath.Join(tempDir, "test.db")

	store, err := bitkeep.Open(fs, dbPath, bitkeep.WithMaxDataFileSize(100))
	if err != nil {
		t.Fatalf("failed to create datastore: %v", err)
	}

	for i := 0; i < 50; i++ {
		key := []byte(fmt.Sprintf("initial_key_%d", i))
		value := []byte(strconv.Itoa(i))
		if err := store.Put(key, value); err != nil {
			t.Fatalf("failed to put key %s: %v", key, err)
		}
	}

	specialKey := []byte("thequickbrownfoxjumpsoverthelazydogs")
	counter := 0
	if err := store.Put(specialKey, []byte(strconv.Itoa(counter))); err != nil {
		t.Fatalf("failed to put special key: %v", err)
	}

	for i := 0; i < 50; i++ {
		key := []byte(fmt.Sprintf("random_key_%d", i))
		value := []byte(strconv.Itoa(i + 100))
		if err := store.Put(key, value); err != nil {
			t.Fatalf("failed to put random key %s: %v", key, err)
		}
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close datastore: %v", err)
	}

	// Reopen with the same low max data file size recorded in the metafile
	// at creation time, so writes below keep forcing rotations.
	store, err = bitkeep.Open(fs, dbPath, bitkeep.WithMaxDataFileSize(100))
	if err != nil {
		t.Fatalf("failed to reopen datastore: %v", err)
	}

	for i := 0; i < 100000; i++ {
		counter++
		if err := store.Put(specialKey, []byte(strconv.Itoa(counter))); err != nil {
			t.Fatalf("failed to put special key at iteration %d: %v", i, err)
		}
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close datastore after 100k writes: %v", err)
	}

	store, err = bitkeep.Open(fs, dbPath, bitkeep.WithMaxDataFileSize(100))
	if err != nil {
		t.Fatalf("failed to reopen datastore before compaction: %v", err)
	}

	val, err := store.Get(specialKey)
	if err != nil {
		t.Fatalf("failed to get special key: %v", err)
	}
	retrievedCounter, err := strconv.Atoi(string(val))
	if err != nil {
		t.Fatalf("failed to parse counter value: %v", err)
	}
	if retrievedCounter != counter {
		t.Errorf("expected counter %d, got %d", counter, retrievedCounter)
	}

	if _, err := store.Compact(); err != nil {
		t.Fatalf("compaction failed: %v", err)
	}

	for i := 0; i < 25000; i++ {
		counter++
		if err := store.Put(specialKey, []byte(strconv.Itoa(counter))); err != nil {
			t.Fatalf("failed to put special key at iteration %d (second batch): %v", i, err)
		}
	}

	if _, err := store.Compact(); err != nil {
		t.Fatalf("second compaction failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close datastore after second compaction: %v", err)
	}

	store, err = bitkeep.Open(fs, dbPath, bitkeep.WithMaxDataFileSize(100))
	if err != nil {
		t.Fatalf("failed to reopen datastore for final verification: %v", err)
	}
	defer store.Close()

	val, err = store.Get(specialKey)
	if err != nil {
		t.Fatalf("failed to get special key for final verification: %v", err)
	}
	finalCounter, err := strconv.Atoi(string(val))
	if err != nil {
		t.Fatalf("failed to parse final counter value: %v", err)
	}
	expectedCounter := 100000 + 25000
	if finalCounter != expectedCounter {
		t.Errorf("expected final counter %d, got %d", expectedCounter, finalCounter)
	}

	t.Logf("Test completed successfully. Final counter value: %d", finalCounter)
}
