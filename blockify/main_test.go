package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/bxepack/bxe/block"
	"github.com/bxepack/bxe/xe"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

func eventFile(t *testing.T, n int) (string, []byte) {
	t.Helper()
	fdef := xe.Reference()
	buf := bytes.NewBuffer(nil)
	w, err := xe.NewWriter(buf, 0, fdef)
	if err != nil {
		t.Fatalf("%v", err)
	}
	for i := 1; i < n; i++ {
		if err := w.WriteCD(xe.CDEvent{Timestamp: uint64(i), X: uint32(i % 640), Y: uint32(i % 480)}); err != nil {
			t.Fatalf("%v", err)
		}
	}
	name := filepath.Join(t.TempDir(), "events.xe")
	if err := os.WriteFile(name, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("%v", err)
	}
	return name, buf.Bytes()
}

func TestRun(t *testing.T) {
	name, events := eventFile(t, 2500)
	out := bytes.NewBuffer(nil)
	if err := run(out, name, 0, 1000); err != nil {
		t.Fatalf("%v", err)
	}
	sizes, flat, err := block.ReadAll(out)
	if err != nil {
		t.Fatalf("%v", err)
	}
	if diff := cmp.Diff([]int{1000, 1000, 500}, sizes); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if !bytes.Equal(events, flat) {
		t.Errorf("records differ")
	}
}

func TestRunMaxEvents(t *testing.T) {
	name, events := eventFile(t, 100)
	out := bytes.NewBuffer(nil)
	if err := run(out, name, 10, block.DefaultRecordsPerBlock); err != nil {
		t.Fatalf("%v", err)
	}
	sizes, flat, err := block.ReadAll(out)
	if err != nil {
		t.Fatalf("%v", err)
	}
	if diff := cmp.Diff([]int{10}, sizes); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if !bytes.Equal(events[:10*block.RecordSize], flat) {
		t.Errorf("records differ")
	}
}

func TestReadEventsTruncated(t *testing.T) {
	_, err := readEvents(bytes.NewReader(make([]byte, 8)), 0, xe.Reference())
	if errors.Cause(err) != io.ErrUnexpectedEOF {
		t.Errorf("%v", err)
	}
}

func TestTimeSpan(t *testing.T) {
	fdef := xe.Reference()
	buf := bytes.NewBuffer(nil)
	w, err := xe.NewWriter(buf, 0, fdef)
	if err != nil {
		t.Fatalf("%v", err)
	}
	step := uint64(1) << fdef.CDRelTimeStamp
	if err := w.WriteCD(xe.CDEvent{Timestamp: 7}); err != nil {
		t.Fatalf("%v", err)
	}
	if err := w.WriteTrigger(xe.TriggerEvent{Timestamp: 3*step + 11, TriggerID: 1}); err != nil {
		t.Fatalf("%v", err)
	}
	// An event of an unsupported type is skipped.
	if err := xe.WriteEvent(buf, fdef, xe.Encoded(3)); err != nil {
		t.Fatalf("%v", err)
	}

	first, last, n := timeSpan(buf.Bytes(), fdef)
	if first != 7 || last != 3*step+11 || n != 2 {
		t.Errorf("%d %d %d", first, last, n)
	}
}
