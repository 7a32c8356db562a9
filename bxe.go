// Package bxe compresses block-structured event files.
//
// The records of all blocks are concatenated into one flat byte stream, which is coded
// with a static model computed from a full pass over the stream. Either a static
// arithmetic coder (see package ac/witten) or a static Huffman coder (see package huff)
// is used. The payload is accompanied by side tables holding the model and the record
// count of every block, from which Decompress rebuilds the original file.
//
// Below is an example of compressing and restoring a block file:
//
//	go run compress/main.go events.bxe
//	go run decompress/main.go events.bxe.arith
//	cmp events.bxe events.reconstructed.bxe
package bxe

import (
	"fmt"
	"io"

	"github.com/bxepack/bxe/block"
	"github.com/bxepack/bxe/huff"
	"github.com/bxepack/bxe/tables"
	"github.com/pkg/errors"
)

const (
	// CodecArith is static arithmetic coding.
	CodecArith = "arith"
	// CodecHuff is static Huffman coding.
	CodecHuff = "huff"

	// DefaultStateBits is the arithmetic coder state width used by default.
	DefaultStateBits = 32

	// MinArithStateBits is the narrowest state whose minimum range holds the
	// smallest byte model total of 256.
	MinArithStateBits = 10
)

// Codecs lists the supported codecs.
var Codecs = []string{CodecArith, CodecHuff}

var (
	// ErrCodec is returned for an unknown codec name.
	ErrCodec = errors.New("unknown codec")

	// ErrLengthMismatch is returned when a decoded stream does not hold exactly the records its tables announce.
	ErrLengthMismatch = errors.New("decoded length does not match block sizes")
)

// Options control compression.
type Options struct {
	Codec     string
	StateBits int
}

// DefaultOptions returns arithmetic coding with a 32-bit state.
func DefaultOptions() Options {
	return Options{Codec: CodecArith, StateBits: DefaultStateBits}
}

// Stats summarizes one compression run.
type Stats struct {
	Codec          string
	Blocks         int
	Records        int
	OriginalSize   int64 // bytes of records, excluding block headers
	CompressedSize int64 // bytes of payload, excluding side tables
	TablesSize     int64
}

// Ratio returns the compressed size as a fraction of the original size.
func (s *Stats) Ratio() float64 {
	if s.OriginalSize == 0 {
		return 0
	}
	return float64(s.CompressedSize) / float64(s.OriginalSize)
}

func (s *Stats) String() string {
	return fmt.Sprintf("%s: %d blocks, %d records, original size: %d bytes, compressed size: %d bytes (+%d bytes tables), compression ratio: %.2f%%",
		s.Codec, s.Blocks, s.Records, s.OriginalSize, s.CompressedSize, s.TablesSize, 100*s.Ratio())
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// Compress reads a block file from src, writes the compressed records to dst and
// the side tables needed to restore the file to tablesDst.
func Compress(dst, tablesDst io.Writer, src io.Reader, opts Options) (*Stats, error) {
	sizes, flat, err := block.ReadAll(src)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	t := &tables.Tables{
		Codec:      opts.Codec,
		BlockSizes: sizes,
		RecordSize: block.RecordSize,
	}
	cw := &countingWriter{w: dst}
	switch opts.Codec {
	case CodecArith:
		freqs, err := EncodeArith(cw, flat, opts.StateBits)
		if err != nil {
			return nil, err
		}
		t.StateBits = opts.StateBits
		t.Frequencies = freqs
	case CodecHuff:
		payload, err := huff.Encode(flat)
		if err != nil {
			return nil, err
		}
		if _, err := cw.Write(payload); err != nil {
			return nil, errors.Wrap(err, "")
		}
	default:
		return nil, errors.Wrapf(ErrCodec, "%q", opts.Codec)
	}

	tw := &countingWriter{w: tablesDst}
	if err := tables.Write(tw, t); err != nil {
		return nil, err
	}

	stats := &Stats{
		Codec:          opts.Codec,
		Blocks:         len(sizes),
		Records:        block.Total(sizes),
		OriginalSize:   int64(len(flat)),
		CompressedSize: cw.n,
		TablesSize:     tw.n,
	}
	return stats, nil
}

// Decompress restores the block file compressed into src and tablesSrc, writing it to dst.
func Decompress(dst io.Writer, src, tablesSrc io.Reader) error {
	t, err := tables.Read(tablesSrc)
	if err != nil {
		return err
	}
	if t.RecordSize != 0 && t.RecordSize != block.RecordSize {
		return errors.Errorf("record size %d, want %d", t.RecordSize, block.RecordSize)
	}
	if err := block.CheckSizes(t.BlockSizes); err != nil {
		return err
	}
	n := block.Total(t.BlockSizes) * block.RecordSize

	var flat []byte
	switch t.Codec {
	case CodecArith:
		flat, err = DecodeArith(src, t.Frequencies, t.StateBits, n)
		if err != nil {
			return err
		}
	case CodecHuff:
		data, err := io.ReadAll(src)
		if err != nil {
			return errors.Wrap(err, "")
		}
		flat, err = huff.Decode(data)
		if err != nil {
			return err
		}
	default:
		return errors.Wrapf(ErrCodec, "%q", t.Codec)
	}
	if len(flat) != n {
		return errors.Wrapf(ErrLengthMismatch, "%d bytes decoded, %d expected", len(flat), n)
	}

	return block.WriteAll(dst, t.BlockSizes, flat)
}
