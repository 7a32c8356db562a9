package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/bxepack/bxe"
	"github.com/bxepack/bxe/config"
	"github.com/pkg/errors"
)

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] filename.bxe\n", os.Args[0])
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

	if err := run(cfg, name); err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(cfg config.Configuration, name string) error {
	src, err := os.Open(name)
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer src.Close()

	base := filepath.Join(cfg.OutputDir, filepath.Base(name)+"."+cfg.Codec)
	dst, err := os.Create(base)
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer dst.Close()
	tablesDst, err := os.Create(base + ".tables")
	if err != nil {
		return errors.Wrap(err, "")
	}
	defer tablesDst.Close()

	stats, err := bxe.Compress(dst, tablesDst, src, cfg.Options())
	if err != nil {
		return errors.Wrapf(err, "%s", name)
	}
	if err := dst.Close(); err != nil {
		return errors.Wrap(err, "")
	}
	if err := tablesDst.Close(); err != nil {
		return errors.Wrap(err, "")
	}
	log.Printf("%s -> %s", name, base)
	log.Printf("%v", stats)
	return nil
}
