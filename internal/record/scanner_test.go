package record

import (
	"fmt"
	"io"
	"testing"

	"github.com/spf13/afero"
)

func TestScannerScansInOrder(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFixture(t, fs, "0.data", testData)

	s, err := NewScanner(fs, "0.data")
	if err != nil {
		t.Fatalf("NewScanner: %v", err)
	}
	defer s.Close()

	for i, p := range testData {
		rec, _, err := s.Scan()
		if err != nil {
			t.Fatalf("record %d: Scan: %v", i, err)
		}
		if string(rec.Key) != string(p.key) || string(rec.Value) != string(p.value) {
			t.Errorf("record %d: expected (%q,%q), got (%q,%q)", i, p.key, p.value, rec.Key, rec.Value)
		}
	}

	if _, _, err := s.Scan(); err != io.EOF {
		t.Errorf("expected io.EOF at end of file, got %v", err)
	}
}

func TestScannerTruncatedTailIsCleanEOF(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFixture(t, fs, "1.data", testData)

	data, err := afero.ReadFile(fs, "1.data")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	// Truncate mid-way through the second record, simulating a crash during
	// a partial append.
	firstSize := HeaderSize + len(testData[0].key) + len(testData[0].value)
	truncateAt := firstSize + HeaderSize + 2
	if err := afero.WriteFile(fs, "1.data", data[:truncateAt], 0o666); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s, err := NewScanner(fs, "1.data")
	if err != nil {
		t.Fatalf("NewScanner: %v", err)
	}
	defer s.Close()

	rec, _, err := s.Scan()
	if err != nil {
		t.Fatalf("first record should scan cleanly: %v", err)
	}
	if string(rec.Key) != string(testData[0].key) {
		t.Errorf("expected first record key %q, got %q", testData[0].key, rec.Key)
	}

	if _, _, err := s.Scan(); err != io.EOF {
		t.Errorf("expected io.EOF for truncated tail, got %v", err)
	}
}

func TestScannerCorruptRecordIsCleanEOF(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFixture(t, fs, "2.data", testData[:2])

	f, err := fs.OpenFile("2.data", 2 /* os.O_RDWR */, 0o666)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	firstSize := int64(HeaderSize + len(testData[0].key) + len(testData[0].value))
	if _, err := f.WriteAt([]byte{0xFF}, firstSize+4); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	f.Close()

	s, err := NewScanner(fs, "2.data")
	if err != nil {
		t.Fatalf("NewScanner: %v", err)
	}
	defer s.Close()

	// The corrupted byte sits in the second record's timestamp, so the first
	// record still scans cleanly and the scan stops at the second.
	rec, _, err := s.Scan()
	if err != nil {
		t.Fatalf("first record should scan cleanly: %v", err)
	}
	if string(rec.Key) != string(testData[0].key) {
		t.Errorf("expected first record key %q, got %q", testData[0].key, rec.Key)
	}

	if _, _, err := s.Scan(); err != io.EOF {
		t.Errorf("expected io.EOF for corrupt record, got %v", err)
	}
}

func TestScannerHugeDeclaredSizeIsCleanEOF(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFixture(t, fs, "4.data", testData[:1])

	f, err := fs.OpenFile("4.data", 2 /* os.O_RDWR */, 0o666)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	// Corrupt value_size (header offset 16) to an implausibly large value,
	// simulating a bit-flipped header rather than a mere truncated tail.
	if _, err := f.WriteAt([]byte{0xFF, 0xFF, 0xFF, 0x7F}, 16); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	f.Close()

	s, err := NewScanner(fs, "4.data")
	if err != nil {
		t.Fatalf("NewScanner: %v", err)
	}
	defer s.Close()

	if _, _, err := s.Scan(); err != io.EOF {
		t.Errorf("expected io.EOF for a header declaring an oversized body, got %v", err)
	}
}

func TestScannerLargeFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	const numRecords = 1000

	w, err := NewWriter(fs, "3.data")
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for i := range numRecords {
		key := fmt.Appendf(nil, "key%d", i)
		value := fmt.Appendf(nil, "value%d", i)
		if _, err := w.Append([]*Record{New(key, value)}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	w.Close()

	s, err := NewScanner(fs, "3.data")
	if err != nil {
		t.Fatalf("NewScanner: %v", err)
	}
	defer s.Close()

	for i := range numRecords {
		rec, _, err := s.Scan()
		if err != nil {
			t.Fatalf("record %d: Scan: %v", i, err)
		}
		if string(rec.Key) != fmt.Sprintf("key%d", i) {
			t.Errorf("record %d: expected key%d, got %s", i, i, rec.Key)
		}
	}
	if _, _, err := s.Scan(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}
