// Package ac defines the models and bit interfaces the arithmetic coding algorithm requires.
// See its subpackages for particular finite precision realizations of the algorithm.
package ac

import (
	"github.com/pkg/errors"
)

var (
	// ErrStateBits is returned when a coder is configured with a state width outside [1, 63].
	ErrStateBits = errors.New("state size out of range")

	// ErrEmptyAlphabet is returned when a frequency table is built from no counts.
	ErrEmptyAlphabet = errors.New("empty alphabet")

	// ErrZeroTotal is returned when every count of a frequency table is zero.
	ErrZeroTotal = errors.New("frequency total is zero")

	// ErrSymbolRange is returned when a symbol lies outside the model's alphabet.
	ErrSymbolRange = errors.New("symbol out of range")

	// ErrZeroFrequency is returned when encoding a symbol whose count is zero.
	ErrZeroFrequency = errors.New("symbol has zero frequency")

	// ErrTotalTooLarge is returned when a model's total exceeds the minimum range of the coder state.
	ErrTotalTooLarge = errors.New("frequency total too large for state size")
)

// A Model is a static probabilistic model on a finite alphabet,
// expressed as cumulative symbol frequencies.
type Model interface {
	// SymbolCount returns the size of the alphabet.
	SymbolCount() int

	// Low returns the cumulative frequency of all symbols before symbol.
	Low(symbol int) uint64

	// High returns the cumulative frequency of all symbols up to and including symbol.
	High(symbol int) uint64

	// Total returns the sum of all frequencies.
	Total() uint64
}

// A BitWriter consumes the bits produced by an encoder, one call per bit, in emission order.
type BitWriter func(bit int)

// A BitReader produces the bits consumed by a decoder.
// It never signals exhaustion and returns 0 once its input has run out.
type BitReader func() int
