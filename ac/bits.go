package ac

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
)

// A BitPacker packs bits into bytes, most significant bit first.
// Write errors are sticky: after the first failure further bits are dropped
// and the error is reported by Flush.
type BitPacker struct {
	w     *bufio.Writer
	acc   byte
	nacc  uint
	nbits int64
	err   error
}

// NewBitPacker returns a BitPacker writing to w.
func NewBitPacker(w io.Writer) *BitPacker {
	return &BitPacker{w: bufio.NewWriter(w)}
}

// WriteBit appends the low bit of bit to the stream.
// Its method value satisfies BitWriter.
func (bp *BitPacker) WriteBit(bit int) {
	bp.nbits++
	bp.acc = bp.acc<<1 | byte(bit&1)
	bp.nacc++
	if bp.nacc < 8 {
		return
	}
	if bp.err == nil {
		bp.err = bp.w.WriteByte(bp.acc)
	}
	bp.acc = 0
	bp.nacc = 0
}

// Bits returns the number of bits written so far, excluding padding.
func (bp *BitPacker) Bits() int64 {
	return bp.nbits
}

// Flush pads a trailing partial byte with zero bits and flushes the underlying writer.
func (bp *BitPacker) Flush() error {
	if bp.nacc > 0 {
		if bp.err == nil {
			bp.err = bp.w.WriteByte(bp.acc << (8 - bp.nacc))
		}
		bp.acc = 0
		bp.nacc = 0
	}
	if bp.err != nil {
		return errors.Wrap(bp.err, "")
	}
	if err := bp.w.Flush(); err != nil {
		bp.err = err
		return errors.Wrap(err, "")
	}
	return nil
}

// A BitUnpacker unpacks bytes into bits, most significant bit first.
// Past the end of its input it produces zero bits.
type BitUnpacker struct {
	r    *bufio.Reader
	acc  byte
	nacc uint
	eof  bool
	err  error
}

// NewBitUnpacker returns a BitUnpacker reading from r.
func NewBitUnpacker(r io.Reader) *BitUnpacker {
	return &BitUnpacker{r: bufio.NewReader(r)}
}

// ReadBit returns the next bit of the stream, or 0 once the stream is exhausted.
// Its method value satisfies BitReader.
func (bu *BitUnpacker) ReadBit() int {
	if bu.nacc == 0 {
		if bu.eof {
			return 0
		}
		b, err := bu.r.ReadByte()
		if err != nil {
			bu.eof = true
			if err != io.EOF {
				bu.err = err
			}
			return 0
		}
		bu.acc = b
		bu.nacc = 8
	}
	bu.nacc--
	return int(bu.acc>>bu.nacc) & 1
}

// Err returns the first read error other than io.EOF, if any.
func (bu *BitUnpacker) Err() error {
	if bu.err != nil {
		return errors.Wrap(bu.err, "")
	}
	return nil
}
