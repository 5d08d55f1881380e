package record

import (
	"bufio"
	"hash/crc32"
	"io"
	"os"

	"github.com/spf13/afero"
)

const scannerBufferSize = 1 << 20 // 1 MiB

// Scanner sequentially reads records from a file, from offset 0 to EOF.
// It is the vehicle for recovery (rebuilding the keydir on open) and for
// the compactor's read side. A truncated tail or a failed checksum are both
// reported as io.EOF: scanning simply stops, the same as reaching the true
// end of the file — per spec, a crashed-mid-batch tail is not repaired
// here, just treated as bytes that never left the process.
type Scanner struct {
	file   afero.File
	reader *bufio.Reader
	offset int64
}

// NewScanner opens path and begins scanning from offset 0.
func NewScanner(fs afero.Fs, path string) (*Scanner, error) {
	file, err := fs.OpenFile(path, os.O_RDONLY, 0o666)
	if err != nil {
		return nil, err
	}
	return &Scanner{
		file:   file,
		reader: bufio.NewReaderSize(file, scannerBufferSize),
	}, nil
}

// Scan returns the next record together with its starting offset (from the
// beginning of the file). It returns io.EOF once the file is exhausted or
// its tail cannot be decoded as a complete, checksum-valid record.
func (s *Scanner) Scan() (Record, int64, error) {
	recordOffset := s.offset

	var hbuf [HeaderSize]byte
	if _, err := io.ReadFull(s.reader, hbuf[:]); err != nil {
		return Record{}, 0, io.EOF
	}
	header := decodeHeader(hbuf[:])

	if uint64(header.KeySize)+uint64(header.ValueSize) > maxBodySize {
		// An unverified header claiming a body this large is corruption,
		// not a real record; treat it the same as a truncated tail.
		return Record{}, 0, io.EOF
	}

	body := make([]byte, header.KeySize+header.ValueSize)
	if len(body) > 0 {
		if _, err := io.ReadFull(s.reader, body); err != nil {
			return Record{}, 0, io.EOF
		}
	}

	crc := crc32.ChecksumIEEE(hbuf[4:])
	crc = crc32.Update(crc, crc32.IEEETable, body)
	if crc != header.CRC32 {
		return Record{}, 0, io.EOF
	}

	rec := Record{
		Header: header,
		Key:    body[:header.KeySize],
		Value:  body[header.KeySize:],
		Size:   int64(HeaderSize) + int64(len(body)),
	}
	s.offset += rec.Size
	return rec, recordOffset, nil
}

// Offset returns how many bytes have been consumed so far.
func (s *Scanner) Offset() int64 {
	return s.offset
}

func (s *Scanner) Close() error {
	return s.file.Close()
}
