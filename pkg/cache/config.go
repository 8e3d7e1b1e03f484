// Copyright (c) Bartłomiej Płotka @bwplotka
// Licensed under the Apache License 2.0.

package cache

import (
	"bytes"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type cacheType string

const (
	timeDay              = 24 * time.Hour
	defaultCacheValidity = 5 * timeDay
	cacheTypeEmpty       = cacheType("")
	cacheTypeNone        = cacheType("none")
	cacheTypeSQLite      = cacheType("sqlite")
)

// Config holds the cache configuration.
type Config struct {
	// type is the type of the cache.
	cacheType cacheType
	// Validity is the duration for which the cache is valid.
	Validity time.Duration

	cacheParser *configParser
}

// NewConfig is the constructor for Config.
func NewConfig() Config {
	return Config{
		cacheParser: newConfigParser(),
	}
}

// ParseConfig parses YAML cache configuration. Empty content means no cache.
func ParseConfig(c []byte) (Config, error) {
	cfg := NewConfig()
	if len(bytes.TrimSpace(c)) == 0 {
		return cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(c))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, errors.Wrapf(err, "parsing cache YAML content %q", string(c))
	}
	return cfg, nil
}

// IsSet tell whether a cache configuration is present.
func (c *Config) IsSet() bool {
	return c.cacheType != cacheTypeNone && c.cacheType != cacheTypeEmpty
}

// NewStorage returns storage for this configuration or nil if cache is not set. Storage has to be initialized with Init.
func (c *Config) NewStorage(filename string, clearCache bool) *SQLite3Storage {
	if !c.IsSet() {
		return nil
	}
	return &SQLite3Storage{
		Filename:   filename,
		Validity:   c.Validity,
		ClearCache: clearCache,
	}
}

// UnmarshalYAML puts the unmarshalled yaml data into the internal cache parser
// struct. This prevents access to the string data of validity.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	if c.cacheParser == nil {
		c.cacheParser = newConfigParser()
	}
	if err := value.Decode(c.cacheParser); err != nil {
		return err
	}
	return c.load()
}

// load validates the cache configuration from the parser and copy it
// into the configuration.
func (c *Config) load() error {
	switch c.cacheParser.Type {
	case cacheTypeSQLite:
		if c.cacheParser.Validity != "" {
			var err error
			c.Validity, err = time.ParseDuration(c.cacheParser.Validity)
			if err != nil {
				return errors.Wrap(err, "parsing cache validity duration")
			}
		}
	case cacheTypeNone, cacheTypeEmpty:
	default:
		return errors.Errorf("unsupported cache type %q", c.cacheParser.Type)
	}
	c.cacheType = c.cacheParser.Type
	return nil
}

// configParser represents a cache configuration that can be parsed.
// These fields are not embed in a unified Config struct to avoid accidental
// usage of the duration field as string.
type configParser struct {
	Type     cacheType `yaml:"type"`
	Validity string    `yaml:"validity"`
}

// newConfigParser is the constructor for ConfigParser.
func newConfigParser() *configParser {
	return &configParser{
		Validity: defaultCacheValidity.String(),
	}
}
