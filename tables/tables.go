// Package tables persists the auxiliary tables a decoder needs alongside a compressed stream.
//
// Tables are stored as a protobuf message with the following schema:
//
//	message Tables {
//	  string codec = 1;
//	  uint32 state_bits = 2;
//	  repeated uint64 frequencies = 3 [packed = true];
//	  repeated uint32 block_sizes = 4 [packed = true];
//	  uint32 record_size = 5;
//	}
package tables

import (
	"io"
	"math"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	codecField       protowire.Number = 1
	stateBitsField   protowire.Number = 2
	frequenciesField protowire.Number = 3
	blockSizesField  protowire.Number = 4
	recordSizeField  protowire.Number = 5
)

// Tables describes how a flat record stream was compressed and how to re-chop it into blocks.
type Tables struct {
	Codec       string
	StateBits   int
	Frequencies []uint64
	BlockSizes  []int
	RecordSize  int
}

func appendPacked(b []byte, num protowire.Number, vs []uint64) []byte {
	if len(vs) == 0 {
		return b
	}
	var packed []byte
	for _, v := range vs {
		packed = protowire.AppendVarint(packed, v)
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, packed)
}

// Marshal returns the wire encoding of t.
func (t *Tables) Marshal() []byte {
	var b []byte
	if t.Codec != "" {
		b = protowire.AppendTag(b, codecField, protowire.BytesType)
		b = protowire.AppendString(b, t.Codec)
	}
	if t.StateBits != 0 {
		b = protowire.AppendTag(b, stateBitsField, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(t.StateBits))
	}
	b = appendPacked(b, frequenciesField, t.Frequencies)
	sizes := make([]uint64, len(t.BlockSizes))
	for i, s := range t.BlockSizes {
		sizes[i] = uint64(s)
	}
	b = appendPacked(b, blockSizesField, sizes)
	if t.RecordSize != 0 {
		b = protowire.AppendTag(b, recordSizeField, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(t.RecordSize))
	}
	return b
}

// consumeRepeated decodes one occurrence of a repeated varint field, packed or not.
func consumeRepeated(b []byte, typ protowire.Type, vs []uint64) ([]uint64, int, error) {
	switch typ {
	case protowire.VarintType:
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, 0, protowire.ParseError(n)
		}
		return append(vs, v), n, nil
	case protowire.BytesType:
		packed, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, 0, protowire.ParseError(n)
		}
		for len(packed) > 0 {
			v, m := protowire.ConsumeVarint(packed)
			if m < 0 {
				return nil, 0, protowire.ParseError(m)
			}
			vs = append(vs, v)
			packed = packed[m:]
		}
		return vs, n, nil
	default:
		return nil, 0, errors.Errorf("unexpected wire type %d", typ)
	}
}

func toInt(v uint64, field string) (int, error) {
	if v > math.MaxInt32 {
		return 0, errors.Errorf("%s %d out of range", field, v)
	}
	return int(v), nil
}

// Unmarshal decodes the wire encoding of a Tables message.
// Unknown fields are skipped.
func Unmarshal(b []byte) (*Tables, error) {
	t := &Tables{}
	var sizes []uint64
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, errors.Wrap(protowire.ParseError(n), "tag")
		}
		b = b[n:]

		var err error
		switch {
		case num == codecField && typ == protowire.BytesType:
			t.Codec, n = protowire.ConsumeString(b)
			if n < 0 {
				return nil, errors.Wrap(protowire.ParseError(n), "codec")
			}
		case num == stateBitsField && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, errors.Wrap(protowire.ParseError(n), "state bits")
			}
			if t.StateBits, err = toInt(v, "state bits"); err != nil {
				return nil, err
			}
		case num == recordSizeField && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, errors.Wrap(protowire.ParseError(n), "record size")
			}
			if t.RecordSize, err = toInt(v, "record size"); err != nil {
				return nil, err
			}
		case num == frequenciesField:
			t.Frequencies, n, err = consumeRepeated(b, typ, t.Frequencies)
			if err != nil {
				return nil, errors.Wrap(err, "frequencies")
			}
		case num == blockSizesField:
			sizes, n, err = consumeRepeated(b, typ, sizes)
			if err != nil {
				return nil, errors.Wrap(err, "block sizes")
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, errors.Wrapf(protowire.ParseError(n), "field %d", num)
			}
		}
		b = b[n:]
	}

	t.BlockSizes = make([]int, len(sizes))
	for i, v := range sizes {
		s, err := toInt(v, "block size")
		if err != nil {
			return nil, err
		}
		t.BlockSizes[i] = s
	}
	return t, nil
}

// Write writes the wire encoding of t to w.
func Write(w io.Writer, t *Tables) error {
	if _, err := w.Write(t.Marshal()); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// Read reads a Tables message occupying the rest of r.
func Read(r io.Reader) (*Tables, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return Unmarshal(b)
}
