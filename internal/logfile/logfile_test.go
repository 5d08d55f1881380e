package logfile

import (
	"io"
	"testing"

	"github.com/ananthvk/bitkeep/internal/record"
	"github.com/spf13/afero"
)

func TestCreateAppendRead(t *testing.T) {
	fs := afero.NewMemMapFs()
	fs.MkdirAll("/data", 0o755)
	lf, err := Create(fs, "/data", 1)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer lf.Release()

	offsets, err := lf.Append([]*record.Record{record.New([]byte("k"), []byte("v1"))})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	value, err := lf.ReadValueAt(offsets[0], 2)
	if err != nil {
		t.Fatalf("ReadValueAt: %v", err)
	}
	if string(value) != "v1" {
		t.Errorf("expected v1, got %q", value)
	}

	if lf.ID() != 1 {
		t.Errorf("expected id 1, got %d", lf.ID())
	}
	if lf.Size() == 0 {
		t.Errorf("expected nonzero size after append")
	}
	if lf.NumRecords() != 1 {
		t.Errorf("expected 1 record, got %d", lf.NumRecords())
	}
}

func TestOpenReadsExistingFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	fs.MkdirAll("/data", 0o755)
	lf, err := Create(fs, "/data", 7)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := lf.Append([]*record.Record{record.New([]byte("k"), []byte("value"))}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	lf.Release()

	reopened, err := Open(fs, "/data", 7)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reopened.Release()

	scanner, err := reopened.Scanner()
	if err != nil {
		t.Fatalf("Scanner: %v", err)
	}
	defer scanner.Close()
	rec, _, err := scanner.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if string(rec.Key) != "k" || string(rec.Value) != "value" {
		t.Errorf("unexpected record: %+v", rec)
	}
	if _, _, err := scanner.Scan(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestRefcountKeepsFileOpenUntilLastRelease(t *testing.T) {
	fs := afero.NewMemMapFs()
	fs.MkdirAll("/data", 0o755)
	lf, err := Create(fs, "/data", 1)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	lf.Retain()

	if err := lf.Release(); err != nil {
		t.Fatalf("first Release: %v", err)
	}
	// Still one outstanding ref; Append must still work.
	if _, err := lf.Append([]*record.Record{record.New([]byte("k"), []byte("v"))}); err != nil {
		t.Fatalf("Append after first Release: %v", err)
	}
	if err := lf.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
}

func TestMarkDeadAndSetRecordCounts(t *testing.T) {
	fs := afero.NewMemMapFs()
	fs.MkdirAll("/data", 0o755)
	lf, err := Create(fs, "/data", 1)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer lf.Release()

	lf.SetRecordCounts(10, 3)
	if lf.NumRecords() != 10 || lf.DeadRecords() != 3 {
		t.Fatalf("expected (10,3), got (%d,%d)", lf.NumRecords(), lf.DeadRecords())
	}
	lf.MarkDead()
	if lf.DeadRecords() != 4 {
		t.Errorf("expected 4 dead records, got %d", lf.DeadRecords())
	}
}
