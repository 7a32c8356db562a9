// Package block reads and writes block-structured event files.
//
// A file is a sequence of blocks. Each block is a 2-byte little-endian count of
// fixed size records followed by that many records.
package block

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

const (
	// RecordSize is the size in bytes of one event record.
	RecordSize = 6

	// DefaultRecordsPerBlock is the number of records per block used when splitting a record stream.
	DefaultRecordsPerBlock = 1024

	// MaxRecordsPerBlock is the largest count a block header can hold.
	MaxRecordsPerBlock = 1<<16 - 1

	headerSize = 2
)

var (
	// ErrTruncated is returned when a block ends before all of its records have been read.
	ErrTruncated = errors.New("truncated block")

	// ErrSizeMismatch is returned when block sizes do not account for the records of a flat stream.
	ErrSizeMismatch = errors.New("block sizes do not match records")
)

// A Reader reads blocks one at a time.
type Reader struct {
	r      *bufio.Reader
	header [headerSize]byte
	n      int
}

// NewReader returns a Reader reading from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next reads the next block and appends its records to buf.
// It returns the number of records in the block and the extended buffer.
// At the end of the input Next returns io.EOF.
func (br *Reader) Next(buf []byte) (int, []byte, error) {
	if _, err := io.ReadFull(br.r, br.header[:]); err != nil {
		if err == io.EOF {
			return 0, buf, io.EOF
		}
		return 0, buf, errors.Wrapf(ErrTruncated, "block %d header: %v", br.n, err)
	}
	count := int(binary.LittleEndian.Uint16(br.header[:]))

	start := len(buf)
	buf = append(buf, make([]byte, count*RecordSize)...)
	if _, err := io.ReadFull(br.r, buf[start:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return 0, buf[:start], errors.Wrapf(ErrTruncated, "block %d of %d records", br.n, count)
		}
		return 0, buf[:start], errors.Wrap(err, "")
	}
	br.n++
	return count, buf, nil
}

// ReadAll reads every block of r.
// It returns the record count of each block and all records concatenated.
func ReadAll(r io.Reader) ([]int, []byte, error) {
	br := NewReader(r)
	sizes := []int{}
	flat := []byte{}
	for {
		count, b, err := br.Next(flat)
		if err == io.EOF {
			return sizes, flat, nil
		}
		if err != nil {
			return nil, nil, err
		}
		flat = b
		sizes = append(sizes, count)
	}
}

// Total returns the number of records over all blocks.
func Total(sizes []int) int {
	n := 0
	for _, s := range sizes {
		n += s
	}
	return n
}

func writeBlock(w io.Writer, records []byte) error {
	var header [headerSize]byte
	binary.LittleEndian.PutUint16(header[:], uint16(len(records)/RecordSize))
	if _, err := w.Write(header[:]); err != nil {
		return errors.Wrap(err, "")
	}
	if _, err := w.Write(records); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// CheckSizes returns ErrSizeMismatch if a block size cannot be held by a block header.
func CheckSizes(sizes []int) error {
	for i, count := range sizes {
		if count < 0 || count > MaxRecordsPerBlock {
			return errors.Wrapf(ErrSizeMismatch, "block %d of %d records", i, count)
		}
	}
	return nil
}

// WriteAll chops flat back into blocks of the given record counts and writes them to w.
func WriteAll(w io.Writer, sizes []int, flat []byte) error {
	if err := CheckSizes(sizes); err != nil {
		return err
	}
	if Total(sizes)*RecordSize != len(flat) {
		return errors.Wrapf(ErrSizeMismatch, "%d records in %d bytes", Total(sizes), len(flat))
	}
	bw := bufio.NewWriter(w)
	offset := 0
	for _, count := range sizes {
		end := offset + count*RecordSize
		if err := writeBlock(bw, flat[offset:end]); err != nil {
			return err
		}
		offset = end
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// Split returns the block sizes that split n records into blocks of at most perBlock records.
func Split(n, perBlock int) ([]int, error) {
	if perBlock < 1 || perBlock > MaxRecordsPerBlock {
		return nil, errors.Errorf("invalid records per block %d", perBlock)
	}
	sizes := make([]int, 0, (n+perBlock-1)/perBlock)
	for n > 0 {
		count := perBlock
		if n < count {
			count = n
		}
		sizes = append(sizes, count)
		n -= count
	}
	return sizes, nil
}

// Blockify writes the records of flat to w in blocks of at most perBlock records.
// It returns the record count of each block written.
func Blockify(w io.Writer, flat []byte, perBlock int) ([]int, error) {
	if len(flat)%RecordSize != 0 {
		return nil, errors.Wrapf(ErrSizeMismatch, "%d bytes is not a whole number of records", len(flat))
	}
	sizes, err := Split(len(flat)/RecordSize, perBlock)
	if err != nil {
		return nil, err
	}
	if err := WriteAll(w, sizes, flat); err != nil {
		return nil, err
	}
	return sizes, nil
}
