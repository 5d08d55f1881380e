package hintfile

import (
	"bufio"
	"encoding/binary"
	"os"

	"github.com/spf13/afero"
)

const writerBufferSize = 1 << 20 // 1 MiB

// Writer appends hint records to a .hint file. Callers write one record
// per live key found while compacting a data file, in the same order the
// keys appear in the rewritten file.
type Writer struct {
	file   afero.File
	writer *bufio.Writer
	buf    [HintRecordHeaderSize]byte
}

// NewWriter creates (or truncates) the hint file at path.
func NewWriter(fs afero.Fs, path string) (*Writer, error) {
	file, err := fs.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o666)
	if err != nil {
		return nil, err
	}
	return &Writer{file: file, writer: bufio.NewWriterSize(file, writerBufferSize)}, nil
}

// WriteHintRecord appends h.
func (w *Writer) WriteHintRecord(h *HintRecord) error {
	binary.LittleEndian.PutUint64(w.buf[0:], uint64(h.Timestamp.UnixMicro()))
	binary.LittleEndian.PutUint32(w.buf[8:], h.KeySize)
	binary.LittleEndian.PutUint32(w.buf[12:], h.ValueSize)
	binary.LittleEndian.PutUint64(w.buf[16:], uint64(h.ValueOffset))

	if _, err := w.writer.Write(w.buf[:]); err != nil {
		return err
	}
	_, err := w.writer.Write(h.Key)
	return err
}

// Sync flushes buffered data and fsyncs the underlying file.
func (w *Writer) Sync() error {
	if err := w.writer.Flush(); err != nil {
		return err
	}
	return w.file.Sync()
}

// Close flushes, syncs, and closes the hint file.
func (w *Writer) Close() error {
	if err := w.writer.Flush(); err != nil {
		w.file.Close()
		return err
	}
	if err := w.file.Sync(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}
