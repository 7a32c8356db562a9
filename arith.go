package bxe

import (
	"io"

	"github.com/bxepack/bxe/ac"
	"github.com/bxepack/bxe/ac/witten"
	"github.com/pkg/errors"
)

// maxPrealloc bounds the buffer allocated up front for a decoded stream, whose
// length comes from side tables that may be corrupt.
const maxPrealloc = 1 << 24

// EncodeArith arithmetic codes flat with a static byte model and writes the packed bits to w.
// It returns the model's frequencies, which the decoder needs.
func EncodeArith(w io.Writer, flat []byte, stateBits int) ([]uint64, error) {
	freqs := ac.ByteFrequencies(flat)
	model, err := ac.NewFrequencyTable(freqs)
	if err != nil {
		return nil, err
	}

	bp := ac.NewBitPacker(w)
	enc, err := witten.NewEncoder(stateBits, bp.WriteBit)
	if err != nil {
		return nil, err
	}
	for i, b := range flat {
		if err := enc.Write(model, int(b)); err != nil {
			return nil, errors.Wrapf(err, "byte %d", i)
		}
	}
	enc.Finish()
	if err := bp.Flush(); err != nil {
		return nil, err
	}
	return freqs, nil
}

// DecodeArith decodes n bytes from the packed bits in r, using the frequencies returned by EncodeArith.
func DecodeArith(r io.Reader, freqs []uint64, stateBits, n int) ([]byte, error) {
	model, err := ac.NewFrequencyTable(freqs)
	if err != nil {
		return nil, err
	}
	if model.SymbolCount() != 256 {
		return nil, errors.Errorf("%d frequencies, want 256", model.SymbolCount())
	}

	bu := ac.NewBitUnpacker(r)
	dec, err := witten.NewDecoder(stateBits, bu.ReadBit)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, errors.Errorf("negative length %d", n)
	}
	flat := make([]byte, 0, min(n, maxPrealloc))
	for i := 0; i < n; i++ {
		s, err := dec.Read(model)
		if err != nil {
			return nil, errors.Wrapf(err, "byte %d", i)
		}
		flat = append(flat, byte(s))
	}
	if err := bu.Err(); err != nil {
		return nil, err
	}
	return flat, nil
}
