// Package config implements configuration parsing for the bxe tools.
package config

import (
	"flag"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bxepack/bxe"
	"github.com/bxepack/bxe/ac/witten"
	"github.com/bxepack/bxe/block"
	"github.com/pkg/errors"
)

const (
	envPrefix         = "BXE_"
	defaultConfigFile = "bxe.toml"
)

// Configuration specifies the options shared by the bxe tools.
type Configuration struct {
	Codec     string `toml:"codec"`
	StateBits int    `toml:"state_bits"`
	BlockSize int    `toml:"block_size"`
	OutputDir string `toml:"output_dir"`
}

// Default returns the configuration used when nothing else is specified.
func Default() Configuration {
	return Configuration{
		Codec:     bxe.CodecArith,
		StateBits: bxe.DefaultStateBits,
		BlockSize: block.DefaultRecordsPerBlock,
		OutputDir: ".",
	}
}

// Validate reports whether c describes a usable configuration.
func (c Configuration) Validate() error {
	switch c.Codec {
	case bxe.CodecArith, bxe.CodecHuff:
	default:
		return errors.Wrapf(bxe.ErrCodec, "%q", c.Codec)
	}
	minBits := 1
	if c.Codec == bxe.CodecArith {
		minBits = bxe.MinArithStateBits
	}
	if c.StateBits < minBits || c.StateBits > witten.MaxStateBits {
		return errors.Errorf("state bits %d not in [%d, %d]", c.StateBits, minBits, witten.MaxStateBits)
	}
	if c.BlockSize < 1 || c.BlockSize > block.MaxRecordsPerBlock {
		return errors.Errorf("block size %d not in [1, %d]", c.BlockSize, block.MaxRecordsPerBlock)
	}
	if c.OutputDir == "" {
		return errors.New("empty output directory")
	}
	return nil
}

// Parse registers the configuration flags on fs and parses args.
// Flags defined on fs by the caller are parsed as well.
//
// The precedence is:
//
//	command line flags > environment > configuration file > defaults
func Parse(fs *flag.FlagSet, args []string) (Configuration, error) {
	config := Default()

	configFile := findConfigFile(args)
	if configFile == "" {
		configFile = envValueForFlag("config")
	}
	if err := parseConfigFile(configFile, &config); err != nil {
		return config, err
	}

	fs.String("config", configFile, "configuration file")
	fs.StringVar(&config.Codec, "codec", config.Codec, "codec, arith or huff")
	fs.IntVar(&config.StateBits, "bits", config.StateBits, "arithmetic coder state width in bits")
	fs.IntVar(&config.BlockSize, "block-size", config.BlockSize, "records per block when splitting an event stream")
	fs.StringVar(&config.OutputDir, "out", config.OutputDir, "output directory")
	if err := fs.Parse(args); err != nil {
		return config, errors.Wrap(err, "")
	}

	if err := setUnsetFlagsFromEnv(fs); err != nil {
		return config, err
	}

	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

// The configuration file must be read before the flags so that flags take precedence,
// so the config flag is extracted directly.
func findConfigFile(args []string) string {
	for i, arg := range args {
		if arg == "--" {
			break
		}
		name := strings.TrimLeft(arg, "-")
		if name == arg {
			continue
		}
		if strings.HasPrefix(name, "config=") {
			return strings.TrimPrefix(name, "config=")
		}
		if name == "config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func parseConfigFile(configFile string, config *Configuration) error {
	explicit := configFile != ""
	if !explicit {
		configFile = defaultConfigFile
	}
	_, err := toml.DecodeFile(configFile, config)
	if os.IsNotExist(err) && !explicit {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "config file %s", configFile)
	}
	return nil
}

func setUnsetFlagsFromEnv(fs *flag.FlagSet) error {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	var err error
	fs.VisitAll(func(f *flag.Flag) {
		if set[f.Name] || err != nil {
			return
		}
		if val := envValueForFlag(f.Name); val != "" {
			if serr := fs.Set(f.Name, val); serr != nil {
				err = errors.Wrapf(serr, "environment %s", envKey(f.Name))
			}
		}
	})
	return err
}

func envKey(name string) string {
	return envPrefix + strings.ToUpper(strings.Replace(name, "-", "_", -1))
}

func envValueForFlag(name string) string {
	return os.Getenv(envKey(name))
}

// Options returns the compression options described by c.
func (c Configuration) Options() bxe.Options {
	return bxe.Options{Codec: c.Codec, StateBits: c.StateBits}
}
