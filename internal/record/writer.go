package record

import (
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"

	"github.com/spf13/afero"
)

// Writer appends batches of records to a single file. It is single-writer:
// the caller (the flusher) never calls Append concurrently on the same
// Writer. Every call to Append builds the whole batch's byte image in one
// buffer, then issues exactly one Write, per spec.
type Writer struct {
	fs         afero.Fs
	file       afero.File
	currentPos int64
}

// NewWriter opens path for appending. If the file already has bytes, writes
// continue from the end of it.
func NewWriter(fs afero.Fs, path string) (*Writer, error) {
	file, err := fs.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o666)
	if err != nil {
		return nil, err
	}
	pos, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		file.Close()
		return nil, err
	}
	return &Writer{fs: fs, file: file, currentPos: pos}, nil
}

// Append encodes records into a single contiguous buffer and issues one
// Write call. It returns, for each record, the absolute offset in the file
// at which that record's value begins (just past the header and key) — the
// value_offset the keydir stores.
func (w *Writer) Append(records []*Record) ([]int64, error) {
	if len(records) == 0 {
		return nil, nil
	}
	var total int64
	for _, r := range records {
		total += r.Size
	}
	buf := make([]byte, 0, total)
	offsets := make([]int64, len(records))
	pos := w.currentPos
	for i, r := range records {
		buf = appendRecord(buf, r)
		offsets[i] = pos + int64(HeaderSize) + int64(len(r.Key))
		pos += r.Size
	}
	if _, err := w.file.Write(buf); err != nil {
		return nil, err
	}
	w.currentPos = pos
	return offsets, nil
}

// appendRecord encodes r and appends its bytes to dst, computing the crc32
// over the header (minus the crc field itself) plus key plus value.
func appendRecord(dst []byte, r *Record) []byte {
	start := len(dst)
	dst = append(dst, make([]byte, HeaderSize)...)
	header := dst[start : start+HeaderSize]

	binary.LittleEndian.PutUint64(header[4:], uint64(r.Header.Timestamp.UnixMicro()))
	binary.LittleEndian.PutUint32(header[12:], r.Header.KeySize)
	binary.LittleEndian.PutUint32(header[16:], r.Header.ValueSize)
	if r.Header.Tombstone {
		header[20] = 1
	} else {
		header[20] = 0
	}

	dst = append(dst, r.Key...)
	dst = append(dst, r.Value...)

	crc := crc32.ChecksumIEEE(dst[start+4:])
	binary.LittleEndian.PutUint32(header[0:], crc)
	return dst
}

// Size returns the current length of the file, i.e. the offset the next
// Append will start writing at.
func (w *Writer) Size() int64 {
	return w.currentPos
}

// Sync flushes buffered data and calls fsync on the underlying file.
func (w *Writer) Sync() error {
	return w.file.Sync()
}

// Close closes the underlying file descriptor without syncing.
func (w *Writer) Close() error {
	return w.file.Close()
}
