package main

import (
	"bytes"
	"flag"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/bxepack/bxe"
	"github.com/pkg/errors"
)

var (
	dataDir   = flag.String("d", "testdata", "directory of block files")
	stateBits = flag.Int("bits", bxe.DefaultStateBits, "arithmetic coder state width in bits")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	if err := run(*dataDir, *stateBits); err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(dir string, stateBits int) error {
	data, err := listFiles(dir)
	if err != nil {
		return errors.Wrap(err, "")
	}
	ratios, err := ratioMatrix(data, stateBits)
	if err != nil {
		return errors.Wrap(err, "")
	}

	if err := display(data, ratios); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

func display(data []string, ratios [][]float64) error {
	// Print the codecs as a header row followed by one comma separated row per file.
	buf := bytes.NewBuffer(nil)
	if _, err := buf.WriteString("file"); err != nil {
		return errors.Wrap(err, "")
	}
	for _, codec := range bxe.Codecs {
		if err := buf.WriteByte(','); err != nil {
			return errors.Wrap(err, "")
		}
		if _, err := buf.WriteString(codec); err != nil {
			return errors.Wrap(err, "")
		}
	}
	log.Printf("%s", buf.Bytes())

	for i, fpath := range data {
		buf.Reset()
		if _, err := buf.WriteString(filepath.Base(fpath)); err != nil {
			return errors.Wrap(err, "")
		}
		for _, r := range ratios[i] {
			if err := buf.WriteByte(','); err != nil {
				return errors.Wrap(err, "")
			}
			if _, err := buf.WriteString(strconv.FormatFloat(100*r, 'f', 2, 64)); err != nil {
				return errors.Wrap(err, "")
			}
		}
		log.Printf("%s", buf.Bytes())
	}
	return nil
}

func ratio(fpath, codec string, stateBits int) (float64, error) {
	f, err := os.Open(fpath)
	if err != nil {
		return -1, errors.Wrap(err, "")
	}
	defer f.Close()
	stats, err := bxe.Compress(io.Discard, io.Discard, f, bxe.Options{Codec: codec, StateBits: stateBits})
	if err != nil {
		return -1, errors.Wrapf(err, "%s", fpath)
	}
	return stats.Ratio(), nil
}

func ratioMatrix(data []string, stateBits int) ([][]float64, error) {
	mat := make([][]float64, 0, len(data))
	for _, fpath := range data {
		row := make([]float64, 0, len(bxe.Codecs))
		for _, codec := range bxe.Codecs {
			r, err := ratio(fpath, codec, stateBits)
			if err != nil {
				return nil, errors.Wrap(err, "")
			}
			row = append(row, r)
			log.Printf("\"%s\" %s: %.2f%%", fpath, codec, 100*r)
		}
		mat = append(mat, row)
	}
	return mat, nil
}

func listFiles(dir string) ([]string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	data := make([]string, 0, len(files))
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		fpath := filepath.Join(dir, f.Name())
		data = append(data, fpath)
	}
	return data, nil
}
