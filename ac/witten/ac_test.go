package witten

import (
	"math/rand"
	"testing"

	"github.com/bxepack/bxe/ac"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

func newTable(t *testing.T, counts ...uint64) *ac.FrequencyTable {
	t.Helper()
	ft, err := ac.NewFrequencyTable(counts)
	if err != nil {
		t.Fatalf("%v", err)
	}
	return ft
}

func encode(t *testing.T, numBits int, model ac.Model, x []int) []int {
	t.Helper()
	encoded := []int{}
	enc, err := NewEncoder(numBits, func(bit int) { encoded = append(encoded, bit) })
	if err != nil {
		t.Fatalf("%v", err)
	}
	for i, s := range x {
		if err := enc.Write(model, s); err != nil {
			t.Fatalf("%d: %v", i, err)
		}
	}
	enc.Finish()
	return encoded
}

func decode(t *testing.T, numBits int, model ac.Model, encoded []int, n int) []int {
	t.Helper()
	pos := 0
	src := func() int {
		if pos >= len(encoded) {
			return 0
		}
		pos++
		return encoded[pos-1]
	}
	dec, err := NewDecoder(numBits, src)
	if err != nil {
		t.Fatalf("%v", err)
	}
	decoded := make([]int, 0, n)
	for i := 0; i < n; i++ {
		s, err := dec.Read(model)
		if err != nil {
			t.Fatalf("%d: %v", i, err)
		}
		decoded = append(decoded, s)
	}
	return decoded
}

func testEncode(t *testing.T, numBits int, model ac.Model, x []int) []int {
	t.Helper()
	encoded := encode(t, numBits, model, x)
	t.Logf("encoded bits: %d, symbols: %d", len(encoded), len(x))

	decoded := decode(t, numBits, model, encoded, len(x))
	if diff := cmp.Diff(x, decoded); diff != "" {
		t.Fatalf("decoded differs (-want +got):\n%s", diff)
	}
	return encoded
}

func TestConcreteExample(t *testing.T) {
	model := newTable(t, 1, 1, 1, 1)
	testEncode(t, 8, model, []int{0, 1, 2, 3, 0})
}

func TestRoundTripSkewed(t *testing.T) {
	counts := []uint64{}
	for i := 0; i < 40; i++ {
		counts = append(counts, uint64(i*i+1))
	}
	model := newTable(t, counts...)

	rng := rand.New(rand.NewSource(1))
	x := make([]int, 5000)
	for i := range x {
		// Draw according to the model so that the stream compresses.
		r := uint64(rng.Int63n(int64(model.Total())))
		for s := 0; s < model.SymbolCount(); s++ {
			if r < model.High(s) {
				x[i] = s
				break
			}
		}
	}

	for _, numBits := range []int{17, 24, 32, 48, 63} {
		testEncode(t, numBits, model, x)
	}
}

func TestDeterminism(t *testing.T) {
	model := newTable(t, 5, 1, 9, 3)
	x := []int{2, 2, 0, 3, 1, 2, 2, 2, 0, 0, 3}
	a := encode(t, 32, model, x)
	b := encode(t, 32, model, x)
	if !cmp.Equal(a, b) {
		t.Errorf("%v != %v", a, b)
	}
}

func TestDegenerateAlphabet(t *testing.T) {
	// One dominant symbol, one rare symbol, every other symbol absent.
	const total = 1 << 20
	counts := make([]uint64, 8)
	counts[3] = total - 1
	counts[6] = 1
	model := newTable(t, counts...)

	x := make([]int, 3000)
	for i := range x {
		x[i] = 3
	}
	x[0] = 6
	x[1500] = 6
	x[len(x)-1] = 6
	testEncode(t, 32, model, x)

	// At the limit where total equals the minimum range.
	s, _ := newState(22)
	counts[3] = s.minRange - 1
	testEncode(t, 22, newTable(t, counts...), x)
}

func TestSingleSymbol(t *testing.T) {
	model := newTable(t, 3, 1, 4, 1, 5)
	for s := 0; s < model.SymbolCount(); s++ {
		encoded := testEncode(t, 32, model, []int{s})
		if len(encoded) == 0 {
			t.Errorf("%d: empty bit stream", s)
		}
		if len(encoded) > 32 {
			t.Errorf("%d: %d bits for a single symbol", s, len(encoded))
		}
	}
}

func TestUniformDistribution(t *testing.T) {
	counts := make([]uint64, 256)
	for i := range counts {
		counts[i] = 1
	}
	model := newTable(t, counts...)

	rng := rand.New(rand.NewSource(42))
	x := make([]int, 1000)
	for i := range x {
		x[i] = rng.Intn(256)
	}
	encoded := testEncode(t, 32, model, x)
	if len(encoded) < 1000*8-8 || len(encoded) > 1000*8+32 {
		t.Errorf("%d bits, expected about %d", len(encoded), 1000*8)
	}
}

func TestCarryPropagation(t *testing.T) {
	// The middle symbol spans [quarter, 3*quarter) of a fresh interval,
	// so every occurrence is an underflow that leaves the interval full again.
	model := newTable(t, 1, 2, 1)
	const run = 300

	bits := []int{}
	enc, err := NewEncoder(32, func(bit int) { bits = append(bits, bit) })
	if err != nil {
		t.Fatalf("%v", err)
	}
	for i := 0; i < run; i++ {
		if err := enc.Write(model, 1); err != nil {
			t.Fatalf("%v", err)
		}
	}
	if len(bits) != 0 {
		t.Fatalf("%d bits emitted during underflow run", len(bits))
	}
	if enc.PendingBits() != run {
		t.Fatalf("pending %d != %d", enc.PendingBits(), run)
	}

	// Symbol 0 settles the interval in the lower half: a 0 followed by the run of 1s.
	if err := enc.Write(model, 0); err != nil {
		t.Fatalf("%v", err)
	}
	if enc.PendingBits() != 0 {
		t.Fatalf("pending %d", enc.PendingBits())
	}
	want := []int{0}
	for i := 0; i < run; i++ {
		want = append(want, 1)
	}
	want = append(want, 0)
	if diff := cmp.Diff(want, bits); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}

	// A second run resolved upwards, plus interleavings, must round-trip.
	x := []int{}
	for i := 0; i < run; i++ {
		x = append(x, 1)
	}
	x = append(x, 0)
	for i := 0; i < run; i++ {
		x = append(x, 1)
	}
	x = append(x, 2)
	for i := 0; i < 64; i++ {
		x = append(x, 1, 1, 1, i%3)
	}
	testEncode(t, 32, model, x)
	testEncode(t, 12, model, x)
}

func TestEncoderErrors(t *testing.T) {
	if _, err := NewEncoder(0, func(int) {}); errors.Cause(err) != ac.ErrStateBits {
		t.Errorf("%v", err)
	}
	if _, err := NewEncoder(-3, func(int) {}); errors.Cause(err) != ac.ErrStateBits {
		t.Errorf("%v", err)
	}
	if _, err := NewEncoder(MaxStateBits+1, func(int) {}); errors.Cause(err) != ac.ErrStateBits {
		t.Errorf("%v", err)
	}
	if _, err := NewDecoder(0, func() int { return 0 }); errors.Cause(err) != ac.ErrStateBits {
		t.Errorf("%v", err)
	}

	enc, err := NewEncoder(8, func(int) {})
	if err != nil {
		t.Fatalf("%v", err)
	}
	model := newTable(t, 1, 0, 1)
	tests := []struct {
		symbol int
		err    error
	}{
		{symbol: -1, err: ac.ErrSymbolRange},
		{symbol: 3, err: ac.ErrSymbolRange},
		{symbol: 1, err: ac.ErrZeroFrequency},
	}
	for _, tc := range tests {
		if err := enc.Write(model, tc.symbol); errors.Cause(err) != tc.err {
			t.Errorf("%d: %v != %v", tc.symbol, err, tc.err)
		}
	}

	// 8 bits give a minimum range of 66.
	big := newTable(t, 60, 7)
	if err := enc.Write(big, 0); errors.Cause(err) != ac.ErrTotalTooLarge {
		t.Errorf("%v", err)
	}
	dec, err := NewDecoder(8, func() int { return 1 })
	if err != nil {
		t.Fatalf("%v", err)
	}
	if _, err := dec.Read(big); errors.Cause(err) != ac.ErrTotalTooLarge {
		t.Errorf("%v", err)
	}
}

func TestDecoderZeroPadding(t *testing.T) {
	// Trailing zero bits of a finished stream may be dropped: the decoder pads with zeros.
	model := newTable(t, 2, 7, 1, 5)
	x := []int{1, 1, 3, 0, 1, 2, 1, 3, 3, 1}
	encoded := encode(t, 32, model, x)
	end := len(encoded)
	for end > 0 && encoded[end-1] == 0 {
		end--
	}
	decoded := decode(t, 32, model, encoded[:end], len(x))
	if diff := cmp.Diff(x, decoded); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestDecoderNeverPanics(t *testing.T) {
	// Arbitrary input decodes to some symbol of non-zero frequency.
	model := newTable(t, 3, 0, 1, 0, 9)
	rng := rand.New(rand.NewSource(7))
	dec, err := NewDecoder(32, func() int { return rng.Intn(2) })
	if err != nil {
		t.Fatalf("%v", err)
	}
	for i := 0; i < 10000; i++ {
		s, err := dec.Read(model)
		if err != nil {
			t.Fatalf("%v", err)
		}
		if s < 0 || s >= model.SymbolCount() || model.Low(s) == model.High(s) {
			t.Fatalf("%d: symbol %d", i, s)
		}
	}
}

func TestSmallStates(t *testing.T) {
	model := newTable(t, 1, 1)
	x := []int{0, 1, 1, 0, 0, 0, 1, 0, 1, 1, 1, 1}
	for numBits := 2; numBits <= 8; numBits++ {
		testEncode(t, numBits, model, x)
	}
}
