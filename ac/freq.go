package ac

import (
	"github.com/pkg/errors"
)

// A FrequencyTable is an immutable Model built from per-symbol counts.
type FrequencyTable struct {
	counts     []uint64
	cumulative []uint64 // cumulative[i] = counts[0] + ... + counts[i-1]
}

// NewFrequencyTable returns a FrequencyTable over len(counts) symbols.
// Zero counts are allowed as long as at least one count is positive.
func NewFrequencyTable(counts []uint64) (*FrequencyTable, error) {
	if len(counts) == 0 {
		return nil, ErrEmptyAlphabet
	}
	ft := &FrequencyTable{
		counts:     append([]uint64(nil), counts...),
		cumulative: make([]uint64, len(counts)+1),
	}
	var total uint64
	for i, c := range counts {
		if total+c < total {
			return nil, errors.Errorf("frequency total overflows at symbol %d", i)
		}
		total += c
		ft.cumulative[i+1] = total
	}
	if total == 0 {
		return nil, ErrZeroTotal
	}
	return ft, nil
}

func (ft *FrequencyTable) SymbolCount() int {
	return len(ft.counts)
}

// Count returns the frequency of symbol.
func (ft *FrequencyTable) Count(symbol int) uint64 {
	return ft.counts[symbol]
}

func (ft *FrequencyTable) Low(symbol int) uint64 {
	return ft.cumulative[symbol]
}

func (ft *FrequencyTable) High(symbol int) uint64 {
	return ft.cumulative[symbol+1]
}

func (ft *FrequencyTable) Total() uint64 {
	return ft.cumulative[len(ft.counts)]
}

// Counts returns a copy of the per-symbol counts.
func (ft *FrequencyTable) Counts() []uint64 {
	return append([]uint64(nil), ft.counts...)
}

// ByteFrequencies counts the occurrences of every byte value in data.
// Each count is floored to 1 so that any byte value remains encodable.
func ByteFrequencies(data []byte) []uint64 {
	freqs := make([]uint64, 256)
	for _, b := range data {
		freqs[b]++
	}
	for i, f := range freqs {
		if f == 0 {
			freqs[i] = 1
		}
	}
	return freqs
}
