// Package xe encodes and decodes the fixed size event records carried by block files.
//
// An event is packed into an integer whose low bits hold the event type,
// followed by the type specific fields from least to most significant.
// On disk an event is stored big-endian in FieldsDefinition.SizeBytes bytes.
package xe

import (
	"io"

	"github.com/pkg/errors"
)

// An EventType identifies the kind of an encoded event.
type EventType uint8

const (
	CD           EventType = 0x00
	Trigger      EventType = 0x01
	ABSTimeStamp EventType = 0x02
)

func (t EventType) String() string {
	switch t {
	case CD:
		return "cd"
	case Trigger:
		return "trigger"
	case ABSTimeStamp:
		return "abs"
	default:
		return "unknown"
	}
}

// ErrEventType is returned when an event carries an unsupported type.
var ErrEventType = errors.New("event type not supported")

// An Encoded is a packed event.
type Encoded uint64

// A CDEvent is a change detection event.
type CDEvent struct {
	Timestamp uint64
	Polarity  uint32
	X         uint32
	Y         uint32
}

// A TriggerEvent is an external trigger event.
type TriggerEvent struct {
	Timestamp uint64
	Polarity  uint32
	TriggerID uint32
}

// FieldsDefinition holds the bit widths of every event field.
type FieldsDefinition struct {
	Size      uint // bits
	SizeBytes int
	TypeBits  uint

	ABSTimeStamp uint

	CDRelTimeStamp uint
	CDPolarity     uint
	CDX            uint
	CDY            uint

	TriggerRelTimeStamp uint
	TriggerPolarity     uint
	TriggerID           uint
	TriggerPadding      uint
}

// Reference returns the reference 48-bit event layout.
func Reference() FieldsDefinition {
	return FieldsDefinition{
		Size:      48,
		SizeBytes: 6,
		TypeBits:  2,

		ABSTimeStamp: 46,

		CDRelTimeStamp: 23,
		CDPolarity:     1,
		CDX:            11,
		CDY:            11,

		TriggerRelTimeStamp: 23,
		TriggerPolarity:     1,
		TriggerID:           8,
		TriggerPadding:      14,
	}
}

func mask(bits uint) uint64 {
	return uint64(1)<<bits - 1
}

// ReadEvent reads the next event from r.
// It returns io.EOF when r is exhausted on an event boundary and
// io.ErrUnexpectedEOF when an event is cut short.
func ReadEvent(r io.Reader, fdef FieldsDefinition) (Encoded, error) {
	var buf [8]byte
	b := buf[:fdef.SizeBytes]
	if _, err := io.ReadFull(r, b); err != nil {
		return 0, err
	}
	var e Encoded
	for _, c := range b {
		e = e<<8 | Encoded(c)
	}
	return e, nil
}

// WriteEvent writes e to w.
func WriteEvent(w io.Writer, fdef FieldsDefinition, e Encoded) error {
	var buf [8]byte
	b := buf[:fdef.SizeBytes]
	for i := range b {
		b[len(b)-1-i] = byte(e >> (8 * uint(i)))
	}
	if _, err := w.Write(b); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// DecodeType returns the type of e.
func DecodeType(e Encoded, fdef FieldsDefinition) (EventType, error) {
	t := EventType(uint64(e) & mask(fdef.TypeBits))
	switch t {
	case CD, Trigger, ABSTimeStamp:
		return t, nil
	default:
		return t, errors.Wrapf(ErrEventType, "type %d", t)
	}
}

// DecodeTimestamp returns the timestamp field of e: absolute for ABSTimeStamp events,
// relative to the current time base otherwise.
func DecodeTimestamp(e Encoded, fdef FieldsDefinition) (uint64, error) {
	t, err := DecodeType(e, fdef)
	if err != nil {
		return 0, err
	}
	v := uint64(e) >> fdef.TypeBits
	switch t {
	case ABSTimeStamp:
		return v & mask(fdef.ABSTimeStamp), nil
	case CD:
		return v & mask(fdef.CDRelTimeStamp), nil
	default:
		return v & mask(fdef.TriggerRelTimeStamp), nil
	}
}

// DecodeCD decodes a CD event relative to the time base absTimeBase.
func DecodeCD(e Encoded, absTimeBase uint64, fdef FieldsDefinition) (CDEvent, error) {
	if t, err := DecodeType(e, fdef); err != nil || t != CD {
		return CDEvent{}, errors.Wrapf(ErrEventType, "%v is not a cd event", t)
	}
	v := uint64(e) >> fdef.TypeBits
	var ev CDEvent
	ev.Timestamp = absTimeBase + v&mask(fdef.CDRelTimeStamp)
	v >>= fdef.CDRelTimeStamp
	ev.Polarity = uint32(v & mask(fdef.CDPolarity))
	v >>= fdef.CDPolarity
	ev.X = uint32(v & mask(fdef.CDX))
	v >>= fdef.CDX
	ev.Y = uint32(v & mask(fdef.CDY))
	return ev, nil
}

// DecodeTrigger decodes a trigger event relative to the time base absTimeBase.
func DecodeTrigger(e Encoded, absTimeBase uint64, fdef FieldsDefinition) (TriggerEvent, error) {
	if t, err := DecodeType(e, fdef); err != nil || t != Trigger {
		return TriggerEvent{}, errors.Wrapf(ErrEventType, "%v is not a trigger event", t)
	}
	v := uint64(e) >> fdef.TypeBits
	var ev TriggerEvent
	ev.Timestamp = absTimeBase + v&mask(fdef.TriggerRelTimeStamp)
	v >>= fdef.TriggerRelTimeStamp
	ev.Polarity = uint32(v & mask(fdef.TriggerPolarity))
	v >>= fdef.TriggerPolarity
	ev.TriggerID = uint32(v & mask(fdef.TriggerID))
	return ev, nil
}

// EncodeAbsTimestamp encodes an absolute time base event.
func EncodeAbsTimestamp(absTimeBase uint64, fdef FieldsDefinition) (Encoded, error) {
	if absTimeBase > mask(fdef.ABSTimeStamp) {
		return 0, errors.Errorf("time base %d overflows %d bits", absTimeBase, fdef.ABSTimeStamp)
	}
	return Encoded(absTimeBase<<fdef.TypeBits | uint64(ABSTimeStamp)), nil
}

func checkField(name string, v uint64, bits uint) error {
	if v > mask(bits) {
		return errors.Errorf("%s %d overflows %d bits", name, v, bits)
	}
	return nil
}

func relative(ts, absTimeBase uint64, bits uint) (uint64, error) {
	if ts < absTimeBase {
		return 0, errors.Errorf("timestamp %d before time base %d", ts, absTimeBase)
	}
	rel := ts - absTimeBase
	if err := checkField("relative timestamp", rel, bits); err != nil {
		return 0, err
	}
	return rel, nil
}

// EncodeCD encodes ev relative to the time base absTimeBase.
func EncodeCD(ev CDEvent, absTimeBase uint64, fdef FieldsDefinition) (Encoded, error) {
	rel, err := relative(ev.Timestamp, absTimeBase, fdef.CDRelTimeStamp)
	if err != nil {
		return 0, err
	}
	if err := checkField("polarity", uint64(ev.Polarity), fdef.CDPolarity); err != nil {
		return 0, err
	}
	if err := checkField("x", uint64(ev.X), fdef.CDX); err != nil {
		return 0, err
	}
	if err := checkField("y", uint64(ev.Y), fdef.CDY); err != nil {
		return 0, err
	}
	v := uint64(ev.Y)
	v = v<<fdef.CDX | uint64(ev.X)
	v = v<<fdef.CDPolarity | uint64(ev.Polarity)
	v = v<<fdef.CDRelTimeStamp | rel
	v = v<<fdef.TypeBits | uint64(CD)
	return Encoded(v), nil
}

// EncodeTrigger encodes ev relative to the time base absTimeBase.
func EncodeTrigger(ev TriggerEvent, absTimeBase uint64, fdef FieldsDefinition) (Encoded, error) {
	rel, err := relative(ev.Timestamp, absTimeBase, fdef.TriggerRelTimeStamp)
	if err != nil {
		return 0, err
	}
	if err := checkField("polarity", uint64(ev.Polarity), fdef.TriggerPolarity); err != nil {
		return 0, err
	}
	if err := checkField("trigger id", uint64(ev.TriggerID), fdef.TriggerID); err != nil {
		return 0, err
	}
	v := uint64(ev.TriggerID)
	v = v<<fdef.TriggerPolarity | uint64(ev.Polarity)
	v = v<<fdef.TriggerRelTimeStamp | rel
	v = v<<fdef.TypeBits | uint64(Trigger)
	return Encoded(v), nil
}

// UpdateAbsTimeBase advances *absTimeBase in steps of the relative timestamp range
// until next can be encoded relative to it. It reports whether the time base moved.
func UpdateAbsTimeBase(absTimeBase *uint64, next uint64, fdef FieldsDefinition) bool {
	step := uint64(1) << fdef.CDRelTimeStamp
	if next < *absTimeBase+step {
		return false
	}
	*absTimeBase += (next - *absTimeBase) / step * step
	return true
}

// A Writer writes events, inserting absolute time base events whenever a
// relative timestamp would overflow.
type Writer struct {
	w           io.Writer
	fdef        FieldsDefinition
	absTimeBase uint64
}

// NewWriter returns a Writer that starts at absTimeBase.
// The initial time base event is written immediately.
func NewWriter(w io.Writer, absTimeBase uint64, fdef FieldsDefinition) (*Writer, error) {
	ew := &Writer{w: w, fdef: fdef, absTimeBase: absTimeBase}
	if err := ew.writeTimeBase(); err != nil {
		return nil, err
	}
	return ew, nil
}

func (ew *Writer) writeTimeBase() error {
	e, err := EncodeAbsTimestamp(ew.absTimeBase, ew.fdef)
	if err != nil {
		return err
	}
	return WriteEvent(ew.w, ew.fdef, e)
}

// TimeBase returns the current absolute time base.
func (ew *Writer) TimeBase() uint64 {
	return ew.absTimeBase
}

// WriteCD writes ev.
func (ew *Writer) WriteCD(ev CDEvent) error {
	if ev.Timestamp < ew.absTimeBase {
		return errors.Errorf("timestamp %d before time base %d", ev.Timestamp, ew.absTimeBase)
	}
	if UpdateAbsTimeBase(&ew.absTimeBase, ev.Timestamp, ew.fdef) {
		if err := ew.writeTimeBase(); err != nil {
			return err
		}
	}
	e, err := EncodeCD(ev, ew.absTimeBase, ew.fdef)
	if err != nil {
		return err
	}
	return WriteEvent(ew.w, ew.fdef, e)
}

// WriteTrigger writes ev.
func (ew *Writer) WriteTrigger(ev TriggerEvent) error {
	if ev.Timestamp < ew.absTimeBase {
		return errors.Errorf("timestamp %d before time base %d", ev.Timestamp, ew.absTimeBase)
	}
	if UpdateAbsTimeBase(&ew.absTimeBase, ev.Timestamp, ew.fdef) {
		if err := ew.writeTimeBase(); err != nil {
			return err
		}
	}
	e, err := EncodeTrigger(ev, ew.absTimeBase, ew.fdef)
	if err != nil {
		return err
	}
	return WriteEvent(ew.w, ew.fdef, e)
}

// Histogram counts events by type. Events of unsupported types are counted under their raw type.
func Histogram(flat []byte, fdef FieldsDefinition) map[EventType]int {
	hist := make(map[EventType]int)
	for i := 0; i+fdef.SizeBytes <= len(flat); i += fdef.SizeBytes {
		var e Encoded
		for _, c := range flat[i : i+fdef.SizeBytes] {
			e = e<<8 | Encoded(c)
		}
		t, _ := DecodeType(e, fdef)
		hist[t]++
	}
	return hist
}
