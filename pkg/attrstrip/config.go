// Copyright (c) Bartłomiej Płotka @bwplotka
// Licensed under the Apache License 2.0.

package attrstrip

import (
	"bytes"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultFlagName      = "STRIP_ATTRIBUTES"
	DefaultExpectedValue = "1"
)

// Config configures which attributes are stripped and when.
type Config struct {
	// FlagName is the name of the environment variable that enables stripping.
	FlagName string `yaml:"flagName"`
	// ExpectedValue is the value FlagName has to be set to, for stripping to happen.
	ExpectedValue string `yaml:"expectedValue"`
	// Attributes are names of attributes and object keys to remove, applied in order.
	Attributes []string `yaml:"attributes"`
}

// DefaultConfig returns configuration with default flag and no attributes, so stripping is a no-op.
func DefaultConfig() Config {
	return Config{
		FlagName:      DefaultFlagName,
		ExpectedValue: DefaultExpectedValue,
		Attributes:    []string{},
	}
}

// ParseConfig parses YAML configuration. Fields not present are defaulted, unknown fields are rejected.
func ParseConfig(c []byte) (Config, error) {
	cfg := DefaultConfig()
	if len(bytes.TrimSpace(c)) == 0 {
		return cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(c))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, errors.Wrapf(err, "parsing YAML content %q", string(c))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate returns error if configuration cannot be used.
func (c Config) Validate() error {
	if c.FlagName == "" {
		return errors.New("flagName field cannot be empty")
	}
	for i, a := range c.Attributes {
		if strings.TrimSpace(a) == "" {
			return errors.Errorf("attributes[%d]: attribute name cannot be empty", i)
		}
		if strings.TrimSpace(a) != a {
			return errors.Errorf("attributes[%d]: attribute name %q cannot have leading or trailing whitespace", i, a)
		}
	}
	return nil
}

// WithAttributes returns copy of configuration with given attributes appended.
func (c Config) WithAttributes(attrs ...string) Config {
	merged := make([]string, 0, len(c.Attributes)+len(attrs))
	merged = append(merged, c.Attributes...)
	c.Attributes = append(merged, attrs...)
	return c
}

// EnvLookup returns the value of the environment variable named by the key and whether it is set.
// os.LookupEnv is one.
type EnvLookup func(key string) (string, bool)

// ProcessEnv looks up variables in the environment of the running process.
var ProcessEnv EnvLookup = os.LookupEnv

// Enabled returns true if the environment has FlagName set to ExpectedValue.
// Nil lookup means there is no environment, so stripping is disabled.
func (c Config) Enabled(lookup EnvLookup) bool {
	if lookup == nil {
		return false
	}
	v, ok := lookup(c.FlagName)
	return ok && v == c.ExpectedValue
}
