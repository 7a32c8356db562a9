package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/bxepack/bxe/block"
	"github.com/bxepack/bxe/xe"
	"github.com/pkg/errors"
)

var abs = flag.Bool("abs", true, "precede the events with an absolute timestamp event at time base 0")

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] filename.bxe > filename.xe\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	name := flag.Arg(0)
	if name == "" {
		flag.Usage()
		os.Exit(1)
	}

	if err := run(os.Stdout, name, *abs); err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(w io.Writer, name string, abs bool) error {
	f, err := os.Open(name)
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer f.Close()
	sizes, flat, err := block.ReadAll(f)
	if err != nil {
		return errors.Wrapf(err, "%s", name)
	}

	bw := bufio.NewWriter(w)
	if abs {
		if _, err := xe.NewWriter(bw, 0, xe.Reference()); err != nil {
			return err
		}
	}
	if _, err := bw.Write(flat); err != nil {
		return errors.Wrap(err, "")
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, "")
	}
	log.Printf("%d events from %d blocks", block.Total(sizes), len(sizes))
	return nil
}
