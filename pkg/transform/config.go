// Copyright (c) Bartłomiej Płotka @bwplotka
// Licensed under the Apache License 2.0.

package transform

import (
	"bytes"
	"os"
	"strings"

	"github.com/bwplotka/stripattrs/pkg/attrstrip"
	"github.com/gobwas/glob"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Version int `yaml:"version"`

	// InputDir is a relative path that assumes input directory for component files and assets.
	InputDir string `yaml:"inputDir"`
	// OutputDir is a relative output directory that we expect all files to land in. It is recreated on every run.
	OutputDir string `yaml:"outputDir"`

	// ExtraInputGlobs allows to bring files from outside of input dir.
	ExtraInputGlobs []string `yaml:"extraInputGlobs"`

	// Strip is the stripping configuration used for all matched files.
	Strip attrstrip.Config `yaml:"strip"`

	// Transformations to apply. Files not matching any are copied as they are.
	Transformations []*TransformationConfig `yaml:"transformations"`

	// GitIgnored specifies if output dir should be git ignored or not.
	GitIgnored bool `yaml:"gitIgnored"`
}

type TransformationConfig struct {
	_glob glob.Glob

	// Glob matches files using https://github.com/gobwas/glob, relative to input dir.
	// After first match, file is no longer matching other elements.
	Glob string `yaml:"glob"`

	// Path is an optional different path for the file to be moved.
	Path string `yaml:"path"`

	// Attributes overrides attributes from strip configuration for matched files.
	Attributes []string `yaml:"attributes"`
}

// StripConfig returns stripping configuration for files matched by this transformation.
func (t *TransformationConfig) StripConfig(base attrstrip.Config) attrstrip.Config {
	if len(t.Attributes) == 0 {
		return base.WithAttributes()
	}
	base.Attributes = nil
	return base.WithAttributes(t.Attributes...)
}

func ParseConfig(c []byte) (Config, error) {
	cfg := Config{Strip: attrstrip.DefaultConfig()}
	dec := yaml.NewDecoder(bytes.NewReader(c))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, errors.Wrapf(err, "parsing template content %q", string(c))
	}

	if cfg.InputDir == "" {
		return Config{}, errors.New("inputDir field is required")
	}

	d, err := os.Stat(cfg.InputDir)
	if err != nil {
		return Config{}, err
	}
	if !d.IsDir() {
		return Config{}, errors.New("inputDir field is not pointing directory")
	}
	cfg.InputDir = strings.TrimSuffix(cfg.InputDir, "/")

	if cfg.OutputDir == "" {
		return Config{}, errors.New("outputDir field is required")
	}
	cfg.OutputDir = strings.TrimSuffix(cfg.OutputDir, "/")

	if err := cfg.Strip.Validate(); err != nil {
		return Config{}, errors.Wrap(err, "strip")
	}

	for i, f := range cfg.Transformations {
		f._glob, err = glob.Compile(f.Glob, '/')
		if err != nil {
			return Config{}, errors.Wrapf(err, "compiling glob %v", f.Glob)
		}
		if _, err := f.targetRelPath("file"); err != nil {
			return Config{}, errors.Wrapf(err, "transformations[%d]", i)
		}
		if err := f.StripConfig(cfg.Strip).Validate(); err != nil {
			return Config{}, errors.Wrapf(err, "transformations[%d]", i)
		}
	}
	return cfg, nil
}
