// Package config loads export options from YAML, TOML or JSON files.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	mxs "github.com/flywave/go-mxs"
)

type Wireframe struct {
	Enabled bool    `yaml:"enabled" toml:"enabled" json:"enabled"`
	Radius  float64 `yaml:"radius" toml:"radius" json:"radius"`
	// Material is applied to the wire instances.
	Material string `yaml:"material" toml:"material" json:"material"`
}

// External describes the renderer side process that turns the manifest into
// the final scene file.
type External struct {
	Command string `yaml:"command" toml:"command" json:"command"`
	Script  string `yaml:"script" toml:"script" json:"script"`
	// Output is the scene file the process must produce.
	Output  string  `yaml:"output" toml:"output" json:"output"`
	Timeout float64 `yaml:"timeout" toml:"timeout" json:"timeout"`
}

func (e External) Enabled() bool { return e.Command != "" }

// TimeoutDuration converts the timeout in seconds.
func (e External) TimeoutDuration() time.Duration {
	return time.Duration(e.Timeout * float64(time.Second))
}

type Options struct {
	OutputDir         string    `yaml:"output_dir" toml:"output_dir" json:"output_dir"`
	Overwrite         bool      `yaml:"overwrite" toml:"overwrite" json:"overwrite"`
	Instancing        bool      `yaml:"instancing" toml:"instancing" json:"instancing"`
	KeepIntermediates bool      `yaml:"keep_intermediates" toml:"keep_intermediates" json:"keep_intermediates"`
	Preview           bool      `yaml:"preview" toml:"preview" json:"preview"`
	Wireframe         Wireframe `yaml:"wireframe" toml:"wireframe" json:"wireframe"`
	External          External  `yaml:"external" toml:"external" json:"external"`
	LogLevel          string    `yaml:"log_level" toml:"log_level" json:"log_level"`
}

func Defaults() Options {
	return Options{
		Instancing:        true,
		KeepIntermediates: true,
		Wireframe:         Wireframe{Radius: 0.01},
		External:          External{Timeout: 600},
		LogLevel:          "info",
	}
}

// Load reads options from path on top of the defaults. The format follows
// the file extension.
func Load(path string) (Options, error) {
	opts := Defaults()
	path, err := homedir.Expand(path)
	if err != nil {
		return opts, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &opts)
	case ".json":
		err = json.Unmarshal(data, &opts)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &opts)
	default:
		return opts, errors.Errorf("unknown config format %q", filepath.Ext(path))
	}
	if err != nil {
		return opts, errors.Wrapf(err, "decode %s", filepath.Base(path))
	}
	if err := opts.Expand(); err != nil {
		return opts, err
	}
	return opts, nil
}

// Expand resolves a leading ~ in every path option.
func (o *Options) Expand() error {
	for _, p := range []*string{&o.OutputDir, &o.External.Script, &o.External.Output} {
		if *p == "" {
			continue
		}
		v, err := homedir.Expand(*p)
		if err != nil {
			return errors.Wrapf(err, "expand %s", *p)
		}
		*p = v
	}
	return nil
}

func (o *Options) Level() logrus.Level {
	lv, err := logrus.ParseLevel(o.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lv
}

func (o *Options) Validate() error {
	if o.OutputDir == "" {
		return mxs.Invalid("", "output directory is not set")
	}
	if o.Wireframe.Enabled && o.Wireframe.Radius <= 0 {
		return mxs.Invalid("", "wireframe radius must be positive, got %g", o.Wireframe.Radius)
	}
	if o.External.Timeout < 0 {
		return mxs.Invalid("", "negative external timeout %g", o.External.Timeout)
	}
	if o.External.Enabled() && o.External.Output == "" {
		return mxs.Invalid("", "external command needs an output path")
	}
	if _, err := logrus.ParseLevel(o.LogLevel); err != nil {
		return mxs.ValidationError{Cause: err}
	}
	return nil
}

// Flags are command line values that take priority over the file when set.
type Flags struct {
	OutputDir   string
	Overwrite   bool
	NoInstances bool
	Wireframe   bool
	Preview     bool
	LogLevel    string
}

// Resolve applies the non-zero flags.
func (o *Options) Resolve(flags Flags) {
	if flags.OutputDir != "" {
		o.OutputDir = flags.OutputDir
	}
	if flags.Overwrite {
		o.Overwrite = true
	}
	if flags.NoInstances {
		o.Instancing = false
	}
	if flags.Wireframe {
		o.Wireframe.Enabled = true
	}
	if flags.Preview {
		o.Preview = true
	}
	if flags.LogLevel != "" {
		o.LogLevel = flags.LogLevel
	}
}
