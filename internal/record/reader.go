package record

import (
	"encoding/binary"
	"os"
	"time"

	"github.com/spf13/afero"
)

// Reader performs positioned reads against a log file. It holds a read-only
// file descriptor and is safe for concurrent use: since files are
// append-only, an offset already reported by a Writer is stable forever, so
// concurrent ReadAt calls (and concurrent calls against an in-flight Append
// on the same underlying file) never race on the same bytes.
type Reader struct {
	file afero.File
}

// NewReader opens path read-only for positioned reads.
func NewReader(fs afero.Fs, path string) (*Reader, error) {
	file, err := fs.OpenFile(path, os.O_RDONLY, 0o666)
	if err != nil {
		return nil, err
	}
	return &Reader{file: file}, nil
}

// ReadValueAt reads the value_size bytes beginning at valueOffset — the
// layout the keydir addresses a live entry by. It does not touch the
// header or key and performs no checksum verification, matching the hot
// Get path where the keydir is already trusted to have a live entry.
func (r *Reader) ReadValueAt(valueOffset int64, valueSize uint32) ([]byte, error) {
	value := make([]byte, valueSize)
	if valueSize == 0 {
		return value, nil
	}
	if _, err := r.file.ReadAt(value, valueOffset); err != nil {
		return nil, err
	}
	return value, nil
}

// Size returns the current length of the underlying file.
func (r *Reader) Size() (int64, error) {
	info, err := r.file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Close closes the underlying file descriptor.
func (r *Reader) Close() error {
	return r.file.Close()
}

func decodeHeader(buf []byte) Header {
	h := Header{}
	h.CRC32 = binary.LittleEndian.Uint32(buf[0:])
	h.Timestamp = time.UnixMicro(int64(binary.LittleEndian.Uint64(buf[4:])))
	h.KeySize = binary.LittleEndian.Uint32(buf[12:])
	h.ValueSize = binary.LittleEndian.Uint32(buf[16:])
	h.Tombstone = buf[20] != 0
	return h
}
