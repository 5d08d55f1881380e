package record

import (
	"testing"

	"github.com/spf13/afero"
)

type kv struct {
	key   []byte
	value []byte
}

var testData = []kv{
	{key: []byte("xyz123"), value: []byte("some value stored")},
	{key: []byte("alice"), value: []byte(`{"username": "al12"}`)},
	{key: []byte("hh"), value: []byte("")},
	{key: []byte(""), value: []byte("empty key")},
	{key: []byte("no value"), value: []byte("")},
	{key: []byte("a"), value: []byte("b")},
	{key: []byte(string(make([]byte, 1000))), value: []byte("large key")},
}

func writeFixture(t *testing.T, fs afero.Fs, path string, pairs []kv) []int64 {
	t.Helper()
	w, err := NewWriter(fs, path)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()

	var records []*Record
	for _, p := range pairs {
		records = append(records, New(p.key, p.value))
	}
	offsets, err := w.Append(records)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	return offsets
}

func TestReaderReadValueAt(t *testing.T) {
	fs := afero.NewMemMapFs()
	offsets := writeFixture(t, fs, "0.data", testData)

	r, err := NewReader(fs, "0.data")
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	for i, p := range testData {
		value, err := r.ReadValueAt(offsets[i], uint32(len(p.value)))
		if err != nil {
			t.Fatalf("record %d: ReadValueAt: %v", i, err)
		}
		if string(value) != string(p.value) {
			t.Errorf("record %d: expected value %q, got %q", i, p.value, value)
		}
	}
}

func TestReaderSize(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFixture(t, fs, "3.data", testData)

	r, err := NewReader(fs, "3.data")
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	size, err := r.Size()
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	var want int64
	for _, p := range testData {
		want += int64(HeaderSize + len(p.key) + len(p.value))
	}
	if size != want {
		t.Errorf("expected size %d, got %d", want, size)
	}
}
