package main

import (
	"bufio"
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/bxepack/bxe/block"
	"github.com/bxepack/bxe/config"
	"github.com/bxepack/bxe/xe"
	"github.com/pkg/errors"
)

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	maxEvents := fs.Int("n", 0, "maximum number of events to read, 0 reads all")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] filename.xe > filename.bxe\n", os.Args[0])
		fs.PrintDefaults()
	}
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	cfg, err := config.Parse(fs, os.Args[1:])
	if err != nil {
		log.Fatalf("%+v", err)
	}
	name := fs.Arg(0)
	if name == "" {
		fs.Usage()
		os.Exit(1)
	}

	if err := run(os.Stdout, name, *maxEvents, cfg.BlockSize); err != nil {
		log.Fatalf("%+v", err)
	}
}

func readEvents(r io.Reader, maxEvents int, fdef xe.FieldsDefinition) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	for n := 0; maxEvents <= 0 || n < maxEvents; n++ {
		e, err := xe.ReadEvent(r, fdef)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "event %d", n)
		}
		if err := xe.WriteEvent(buf, fdef, e); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// timeSpan returns the timestamps of the first and last timed events of flat.
// Events of unsupported types are skipped.
func timeSpan(flat []byte, fdef xe.FieldsDefinition) (first, last uint64, n int) {
	var absTimeBase uint64
	r := bytes.NewReader(flat)
	for {
		e, err := xe.ReadEvent(r, fdef)
		if err != nil {
			return first, last, n
		}
		t, err := xe.DecodeType(e, fdef)
		if err != nil {
			continue
		}

		var ts uint64
		switch t {
		case xe.ABSTimeStamp:
			absTimeBase, _ = xe.DecodeTimestamp(e, fdef)
			continue
		case xe.CD:
			ev, _ := xe.DecodeCD(e, absTimeBase, fdef)
			ts = ev.Timestamp
		case xe.Trigger:
			ev, _ := xe.DecodeTrigger(e, absTimeBase, fdef)
			ts = ev.Timestamp
		}
		if n == 0 {
			first = ts
		}
		last = ts
		n++
	}
}

func run(w io.Writer, name string, maxEvents, perBlock int) error {
	f, err := os.Open(name)
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer f.Close()

	fdef := xe.Reference()
	flat, err := readEvents(bufio.NewReader(f), maxEvents, fdef)
	if err != nil {
		return errors.Wrapf(err, "%s", name)
	}

	bw := bufio.NewWriter(w)
	sizes, err := block.Blockify(bw, flat, perBlock)
	if err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, "")
	}

	hist := xe.Histogram(flat, fdef)
	log.Printf("%d events in %d blocks of at most %d records", block.Total(sizes), len(sizes), perBlock)
	for _, t := range []xe.EventType{xe.CD, xe.Trigger, xe.ABSTimeStamp} {
		log.Printf("%v: %d", t, hist[t])
	}
	if first, last, n := timeSpan(flat, fdef); n > 0 {
		log.Printf("%d timed events from %d to %d", n, first, last)
	}
	return nil
}
