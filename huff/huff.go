// Package huff compresses flat record streams with a static Huffman code.
//
// It is an alternative to arithmetic coding built on huff0. The stream is cut
// into chunks of at most ChunkSize bytes; each chunk carries its own code table
// so chunks decode independently. A chunk is laid out as
//
//	kind byte | varint decoded length | payload
//
// where the payload is a varint length followed by a huff0 1X block for
// kindHuff, the bytes themselves for kindRaw and a single byte for kindRLE.
package huff

import (
	"github.com/klauspost/compress/huff0"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// ChunkSize is the largest number of input bytes coded with one table.
const ChunkSize = 1 << 16

const (
	kindHuff byte = iota
	kindRaw
	kindRLE
)

// ErrCorrupt is returned when a compressed stream cannot be decoded.
var ErrCorrupt = errors.New("corrupt huffman stream")

// Encode compresses flat.
func Encode(flat []byte) ([]byte, error) {
	var out []byte
	s := &huff0.Scratch{Reuse: huff0.ReusePolicyNone}
	for len(flat) > 0 {
		n := len(flat)
		if n > ChunkSize {
			n = ChunkSize
		}
		chunk := flat[:n]
		flat = flat[n:]

		comp, _, err := huff0.Compress1X(chunk, s)
		switch err {
		case nil:
			out = append(out, kindHuff)
			out = protowire.AppendVarint(out, uint64(n))
			out = protowire.AppendVarint(out, uint64(len(comp)))
			out = append(out, comp...)
		case huff0.ErrIncompressible:
			out = append(out, kindRaw)
			out = protowire.AppendVarint(out, uint64(n))
			out = append(out, chunk...)
		case huff0.ErrUseRLE:
			out = append(out, kindRLE)
			out = protowire.AppendVarint(out, uint64(n))
			out = append(out, chunk[0])
		default:
			return nil, errors.Wrap(err, "")
		}
	}
	return out, nil
}

func consumeLength(b []byte, max int) (int, []byte, error) {
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, nil, errors.Wrap(ErrCorrupt, protowire.ParseError(n).Error())
	}
	if v > uint64(max) {
		return 0, nil, errors.Wrapf(ErrCorrupt, "length %d exceeds %d", v, max)
	}
	return int(v), b[n:], nil
}

// Decode decompresses data produced by Encode.
func Decode(data []byte) ([]byte, error) {
	var out []byte
	var s *huff0.Scratch
	for len(data) > 0 {
		kind := data[0]
		size, rest, err := consumeLength(data[1:], ChunkSize)
		if err != nil {
			return nil, err
		}
		if size == 0 {
			return nil, errors.Wrap(ErrCorrupt, "empty chunk")
		}

		switch kind {
		case kindRaw:
			if len(rest) < size {
				return nil, errors.Wrapf(ErrCorrupt, "raw chunk of %d bytes, %d left", size, len(rest))
			}
			out = append(out, rest[:size]...)
			data = rest[size:]
		case kindRLE:
			if len(rest) < 1 {
				return nil, errors.Wrap(ErrCorrupt, "rle chunk without value")
			}
			for i := 0; i < size; i++ {
				out = append(out, rest[0])
			}
			data = rest[1:]
		case kindHuff:
			clen, rest, err := consumeLength(rest, len(rest))
			if err != nil {
				return nil, err
			}
			var remain []byte
			s, remain, err = huff0.ReadTable(rest[:clen], s)
			if err != nil {
				return nil, errors.Wrap(ErrCorrupt, err.Error())
			}
			dec, err := s.Decoder().Decompress1X(make([]byte, 0, size), remain)
			if err != nil {
				return nil, errors.Wrap(ErrCorrupt, err.Error())
			}
			if len(dec) != size {
				return nil, errors.Wrapf(ErrCorrupt, "chunk decoded to %d bytes, want %d", len(dec), size)
			}
			out = append(out, dec...)
			data = rest[clen:]
		default:
			return nil, errors.Wrapf(ErrCorrupt, "chunk kind %d", kind)
		}
	}
	return out, nil
}
