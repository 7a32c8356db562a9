package config

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/bxepack/bxe"
	"github.com/google/go-cmp/cmp"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	name := filepath.Join(t.TempDir(), "bxe.toml")
	if err := os.WriteFile(name, []byte(content), 0o644); err != nil {
		t.Fatalf("%v", err)
	}
	return name
}

func TestDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	config, err := Parse(newFlagSet(), []string{"in.bxe"})
	if err != nil {
		t.Fatalf("%v", err)
	}
	if diff := cmp.Diff(Default(), config); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestPrecedence(t *testing.T) {
	name := writeConfig(t, `
codec = "huff"
state_bits = 24
block_size = 512
output_dir = "/tmp/from-file"
`)

	// File only.
	config, err := Parse(newFlagSet(), []string{"-config", name})
	if err != nil {
		t.Fatalf("%v", err)
	}
	want := Configuration{Codec: "huff", StateBits: 24, BlockSize: 512, OutputDir: "/tmp/from-file"}
	if diff := cmp.Diff(want, config); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	// Environment overrides the file, flags override the environment.
	t.Setenv("BXE_BITS", "40")
	t.Setenv("BXE_OUT", "/tmp/from-env")
	fs := newFlagSet()
	maxEvents := fs.Int("n", 0, "")
	config, err = Parse(fs, []string{"--config=" + name, "-out", "/tmp/from-flag", "-n", "9", "in.bxe"})
	if err != nil {
		t.Fatalf("%v", err)
	}
	want = Configuration{Codec: "huff", StateBits: 40, BlockSize: 512, OutputDir: "/tmp/from-flag"}
	if diff := cmp.Diff(want, config); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if *maxEvents != 9 {
		t.Errorf("%d", *maxEvents)
	}
	if fs.Arg(0) != "in.bxe" {
		t.Errorf("%q", fs.Arg(0))
	}
}

func TestConfigFileFromEnv(t *testing.T) {
	name := writeConfig(t, `codec = "huff"`)
	t.Setenv("BXE_CONFIG", name)
	config, err := Parse(newFlagSet(), nil)
	if err != nil {
		t.Fatalf("%v", err)
	}
	if config.Codec != bxe.CodecHuff {
		t.Errorf("%q", config.Codec)
	}
}

func TestErrors(t *testing.T) {
	chdir(t, t.TempDir())
	tests := [][]string{
		{"-codec", "lzma"},
		{"-bits", "0"},
		{"-bits", "9"},
		{"-codec", "arith", "-bits", "1"},
		{"-bits", "64"},
		{"-block-size", "65536"},
		{"-out", ""},
		{"-config", filepath.Join(t.TempDir(), "missing.toml")},
		{"-config", writeConfig(t, "codec = ")},
		{"-bogus"},
	}
	for _, args := range tests {
		if _, err := Parse(newFlagSet(), args); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}

	t.Setenv("BXE_BITS", "many")
	if _, err := Parse(newFlagSet(), nil); err == nil {
		t.Errorf("expected error for bad environment value")
	}
}

func TestStateBitsPerCodec(t *testing.T) {
	chdir(t, t.TempDir())
	tests := []struct {
		args []string
		want int
	}{
		{args: []string{"-bits", "10"}, want: 10},
		{args: []string{"-codec", "huff", "-bits", "1"}, want: 1},
	}
	for _, tc := range tests {
		config, err := Parse(newFlagSet(), tc.args)
		if err != nil {
			t.Fatalf("%v: %v", tc.args, err)
		}
		if config.StateBits != tc.want {
			t.Errorf("%v: %d", tc.args, config.StateBits)
		}
	}
}

func TestFindConfigFile(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{args: nil, want: ""},
		{args: []string{"-config", "a.toml"}, want: "a.toml"},
		{args: []string{"--config", "b.toml"}, want: "b.toml"},
		{args: []string{"-config=c.toml", "x"}, want: "c.toml"},
		{args: []string{"-out", "config"}, want: ""},
		{args: []string{"--", "-config", "d.toml"}, want: ""},
	}
	for _, tc := range tests {
		if got := findConfigFile(tc.args); got != tc.want {
			t.Errorf("%v: %q != %q", tc.args, got, tc.want)
		}
	}
}

// chdir changes the working directory for the duration of the test,
// like testing.T.Chdir (Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("%v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("%v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatalf("%v", err)
		}
	})
}
