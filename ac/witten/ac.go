// Package witten implements the arithmetic coding algorithm described in
// Witten, Ian H.; Neal, Radford M.; Cleary, John G. (June 1987). "Arithmetic Coding for Data Compression". Communications of the ACM 30 (6): 520–540.
//
// The coder works on multi-symbol static models given as cumulative frequency tables.
// Bits are exchanged through callbacks, so the same Encoder and Decoder serve in-memory
// slices as well as packed byte streams, see ac.BitPacker and ac.BitUnpacker.
package witten

import (
	"math/bits"

	"github.com/bxepack/bxe/ac"
	"github.com/pkg/errors"
)

// MaxStateBits is the widest state supported. The full range 1<<n must fit in a uint64.
const MaxStateBits = 63

// state holds the interval registers and the range constants derived from the state width.
// Encoder and Decoder each embed their own copy.
type state struct {
	numBits  int
	half     uint64
	quarter  uint64
	minRange uint64
	mask     uint64

	low  uint64
	high uint64
}

func newState(numBits int) (state, error) {
	if numBits < 1 || numBits > MaxStateBits {
		return state{}, errors.Wrapf(ac.ErrStateBits, "%d bits", numBits)
	}
	full := uint64(1) << uint(numBits)
	s := state{
		numBits: numBits,
		half:    full >> 1,
		quarter: full >> 2,
		mask:    full - 1,
	}
	s.minRange = s.quarter + 2
	s.low = 0
	s.high = s.mask
	return s, nil
}

// checkModel reports whether model can be coded with this state width.
// A total above the minimum range could collapse a symbol's interval to nothing.
func (s *state) checkModel(model ac.Model) error {
	total := model.Total()
	if total == 0 {
		return ac.ErrZeroTotal
	}
	if total > s.minRange {
		return errors.Wrapf(ac.ErrTotalTooLarge, "total %d, %d state bits", total, s.numBits)
	}
	return nil
}

// scale returns arange*cum/total rounded down.
// cum <= total, so the quotient always fits in 64 bits.
func scale(arange, cum, total uint64) uint64 {
	hi, lo := bits.Mul64(arange, cum)
	q, _ := bits.Div64(hi, lo, total)
	return q
}

// narrow shrinks [low, high] to the slice of symbol.
func (s *state) narrow(model ac.Model, symbol int) {
	total := model.Total()
	arange := s.high - s.low + 1
	s.high = s.low + scale(arange, model.High(symbol), total) - 1
	s.low = s.low + scale(arange, model.Low(symbol), total)
}

// An Encoder carries the state required to encode one message.
// It is not safe for concurrent use.
type Encoder struct {
	state
	out         ac.BitWriter
	pendingBits uint64
}

// NewEncoder returns an Encoder with numBits wide registers that sends its bits to out.
func NewEncoder(numBits int, out ac.BitWriter) (*Encoder, error) {
	s, err := newState(numBits)
	if err != nil {
		return nil, err
	}
	return &Encoder{state: s, out: out}, nil
}

// PendingBits returns the number of underflow bits whose value is not yet decided.
func (e *Encoder) PendingBits() uint64 {
	return e.pendingBits
}

func (e *Encoder) bitPlusFollow(bit int) {
	e.out(bit)
	for ; e.pendingBits > 0; e.pendingBits-- {
		e.out(1 - bit)
	}
}

// Write encodes symbol under model.
func (e *Encoder) Write(model ac.Model, symbol int) error {
	if err := e.checkModel(model); err != nil {
		return err
	}
	if symbol < 0 || symbol >= model.SymbolCount() {
		return errors.Wrapf(ac.ErrSymbolRange, "symbol %d, alphabet %d", symbol, model.SymbolCount())
	}
	if model.Low(symbol) == model.High(symbol) {
		return errors.Wrapf(ac.ErrZeroFrequency, "symbol %d", symbol)
	}

	e.narrow(model, symbol)

	for {
		if e.high < e.half {
			e.bitPlusFollow(0)
		} else if e.low >= e.half {
			e.bitPlusFollow(1)
			e.low -= e.half
			e.high -= e.half
		} else if e.low >= e.quarter && e.high < 3*e.quarter {
			e.pendingBits++
			e.low -= e.quarter
			e.high -= e.quarter
		} else {
			break
		}

		e.low = (e.low << 1) & e.mask
		e.high = (e.high<<1)&e.mask | 1
	}
	return nil
}

// Finish emits the bits that disambiguate the final interval.
// The Encoder must not be written to afterwards.
func (e *Encoder) Finish() {
	e.pendingBits++
	if e.low < e.quarter {
		e.bitPlusFollow(0)
	} else {
		e.bitPlusFollow(1)
	}
}

// A Decoder carries the state required to decode one message.
// It is not safe for concurrent use.
type Decoder struct {
	state
	in   ac.BitReader
	code uint64
}

// NewDecoder returns a Decoder with numBits wide registers that pulls its bits from in.
// The first numBits bits are read immediately.
func NewDecoder(numBits int, in ac.BitReader) (*Decoder, error) {
	s, err := newState(numBits)
	if err != nil {
		return nil, err
	}
	d := &Decoder{state: s, in: in}
	for i := 0; i < numBits; i++ {
		d.code = d.code<<1 | d.readBit()
	}
	return d, nil
}

func (d *Decoder) readBit() uint64 {
	return uint64(d.in() & 1)
}

// Read decodes the next symbol under model.
// Decoding more symbols than were encoded, or under a different model,
// silently yields garbage: the bit stream carries no integrity information.
func (d *Decoder) Read(model ac.Model) (int, error) {
	if err := d.checkModel(model); err != nil {
		return -1, err
	}

	// Scale the code into the model's cumulative frequency space.
	// code lies in [low, high], so value < total.
	total := model.Total()
	arange := d.high - d.low + 1
	offset := d.code - d.low
	hi, lo := bits.Mul64(offset+1, total)
	lo, borrow := bits.Sub64(lo, 1, 0)
	hi -= borrow
	value, _ := bits.Div64(hi, lo, arange)

	// Find the symbol s with Low(s) <= value < High(s).
	start, end := 0, model.SymbolCount()
	for end-start > 1 {
		middle := int(uint(start+end) >> 1)
		if model.Low(middle) > value {
			end = middle
		} else {
			start = middle
		}
	}
	symbol := start

	d.narrow(model, symbol)

	// rescale interval
	for {
		if d.high < d.half {
			// do nothing
		} else if d.low >= d.half {
			d.low -= d.half
			d.high -= d.half
			d.code -= d.half
		} else if d.low >= d.quarter && d.high < 3*d.quarter {
			d.low -= d.quarter
			d.high -= d.quarter
			d.code -= d.quarter
		} else {
			break
		}

		d.low = (d.low << 1) & d.mask
		d.high = (d.high<<1)&d.mask | 1
		d.code = (d.code<<1)&d.mask | d.readBit()
	}
	return symbol, nil
}
