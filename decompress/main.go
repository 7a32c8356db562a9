package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/bxepack/bxe"
	"github.com/bxepack/bxe/config"
	"github.com/pkg/errors"
)

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] filename.bxe.<codec>\n", os.Args[0])
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

	if err := run(cfg.OutputDir, name); err != nil {
		log.Fatalf("%+v", err)
	}
}

// reconstructedName maps events.bxe.arith to events.reconstructed.bxe.
func reconstructedName(name string) string {
	base := filepath.Base(name)
	for _, codec := range bxe.Codecs {
		base = strings.TrimSuffix(base, "."+codec)
	}
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + ".reconstructed" + ext
}

func run(outDir, name string) error {
	src, err := os.Open(name)
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer src.Close()
	tablesSrc, err := os.Open(name + ".tables")
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer tablesSrc.Close()

	out := filepath.Join(outDir, reconstructedName(name))
	dst, err := os.Create(out)
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer dst.Close()

	if err := bxe.Decompress(dst, src, tablesSrc); err != nil {
		return errors.Wrapf(err, "%s", name)
	}
	if err := dst.Close(); err != nil {
		return errors.Wrap(err, "")
	}
	log.Printf("%s -> %s", name, out)
	return nil
}
