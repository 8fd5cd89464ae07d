// Package tracereader reads binary memory reference traces.
//
// A trace is a sequence of fixed-size little-endian records:
//
//	offset size field
//	0      4    address
//	4      1    request type
//	5      1    size
//	6      1    attributes
//	7      1    processor
//	8      4    time
package tracereader

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// RecordSize is the number of bytes in one trace record.
const RecordSize = 12

// ErrTruncatedRecord is returned when the trace ends in the middle of a
// record.
var ErrTruncatedRecord = errors.New("truncated trace record")

// A Record is one memory reference.
type Record struct {
	Addr    uint32
	ReqType uint8
	Size    uint8
	Attr    uint8
	Proc    uint8
	Time    uint32
}

// A Reader decodes records one by one.
type Reader struct {
	r     *bufio.Reader
	buf   [RecordSize]byte
	count uint64
}

// NewReader creates a Reader that decodes records from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next returns the next record. It returns io.EOF when the trace ends at a
// record boundary.
func (r *Reader) Next() (Record, error) {
	n, err := io.ReadFull(r.r, r.buf[:])
	if err == io.ErrUnexpectedEOF {
		return Record{}, fmt.Errorf("record %d has %d of %d bytes: %w",
			r.count, n, RecordSize, ErrTruncatedRecord)
	}

	if err != nil {
		return Record{}, err
	}

	r.count++

	return Record{
		Addr:    binary.LittleEndian.Uint32(r.buf[0:4]),
		ReqType: r.buf[4],
		Size:    r.buf[5],
		Attr:    r.buf[6],
		Proc:    r.buf[7],
		Time:    binary.LittleEndian.Uint32(r.buf[8:12]),
	}, nil
}

// NextAddress returns the address of the next record.
func (r *Reader) NextAddress() (uint32, error) {
	rec, err := r.Next()
	return rec.Addr, err
}

// Count returns the number of records decoded so far.
func (r *Reader) Count() uint64 {
	return r.count
}

// A File is a Reader over a trace file.
type File struct {
	*Reader
	f *os.File
}

// Open opens a trace file.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open trace file %s: %w", path, err)
	}

	return &File{Reader: NewReader(f), f: f}, nil
}

// Close closes the underlying file.
func (f *File) Close() error {
	return f.f.Close()
}

// Encode writes a record in the trace format. It is mostly used to produce
// synthetic traces.
func Encode(w io.Writer, rec Record) error {
	var buf [RecordSize]byte

	binary.LittleEndian.PutUint32(buf[0:4], rec.Addr)
	buf[4] = rec.ReqType
	buf[5] = rec.Size
	buf[6] = rec.Attr
	buf[7] = rec.Proc
	binary.LittleEndian.PutUint32(buf[8:12], rec.Time)

	_, err := w.Write(buf[:])

	return err
}
