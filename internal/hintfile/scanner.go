package hintfile

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"time"

	"github.com/spf13/afero"
)

const readerBufferSize = 1 << 20 // 1 MiB

// maxKeySize guards against a corrupted header's key_size field sending the
// scanner off to allocate an enormous buffer.
const maxKeySize = 1 << 20

// Scanner sequentially reads hint records from a .hint file.
type Scanner struct {
	file   afero.File
	reader *bufio.Reader
}

// NewScanner opens the hint file at path for sequential reading.
func NewScanner(fs afero.Fs, path string) (*Scanner, error) {
	file, err := fs.OpenFile(path, os.O_RDONLY, 0o666)
	if err != nil {
		return nil, err
	}
	return &Scanner{file: file, reader: bufio.NewReaderSize(file, readerBufferSize)}, nil
}

// Scan returns the next hint record, or io.EOF once the file is exhausted
// or its tail is truncated/corrupt — the same clean-EOF treatment the data
// file scanner gives a crashed-mid-write tail.
func (s *Scanner) Scan() (HintRecord, error) {
	var hbuf [HintRecordHeaderSize]byte
	if _, err := io.ReadFull(s.reader, hbuf[:]); err != nil {
		return HintRecord{}, io.EOF
	}

	rec := HintRecord{}
	rec.Timestamp = time.UnixMicro(int64(binary.LittleEndian.Uint64(hbuf[0:])))
	rec.KeySize = binary.LittleEndian.Uint32(hbuf[8:])
	rec.ValueSize = binary.LittleEndian.Uint32(hbuf[12:])
	rec.ValueOffset = int64(binary.LittleEndian.Uint64(hbuf[16:]))

	if rec.KeySize > maxKeySize {
		return HintRecord{}, io.EOF
	}

	rec.Key = make([]byte, rec.KeySize)
	if len(rec.Key) > 0 {
		if _, err := io.ReadFull(s.reader, rec.Key); err != nil {
			return HintRecord{}, io.EOF
		}
	}
	return rec, nil
}

// Close closes the underlying file.
func (s *Scanner) Close() error {
	return s.file.Close()
}
