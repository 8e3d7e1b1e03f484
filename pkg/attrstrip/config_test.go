// Copyright (c) Bartłomiej Płotka @bwplotka
// Licensed under the Apache License 2.0.

package attrstrip

import (
	"testing"

	"github.com/efficientgo/core/testutil"
)

func TestParseConfig(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		cfg, err := ParseConfig([]byte("  \n"))
		testutil.Ok(t, err)
		testutil.Equals(t, DefaultConfig(), cfg)
	})
	t.Run("defaults for missing fields", func(t *testing.T) {
		cfg, err := ParseConfig([]byte("attributes: [data-testid, testid]"))
		testutil.Ok(t, err)
		testutil.Equals(t, Config{
			FlagName:      DefaultFlagName,
			ExpectedValue: DefaultExpectedValue,
			Attributes:    []string{"data-testid", "testid"},
		}, cfg)
	})
	t.Run("all fields", func(t *testing.T) {
		cfg, err := ParseConfig([]byte(`flagName: E2E
expectedValue: "yes"
attributes:
  - data-qa
`))
		testutil.Ok(t, err)
		testutil.Equals(t, Config{FlagName: "E2E", ExpectedValue: "yes", Attributes: []string{"data-qa"}}, cfg)
	})
	t.Run("unknown field", func(t *testing.T) {
		_, err := ParseConfig([]byte("attrs: [a]"))
		testutil.NotOk(t, err)
	})
	t.Run("empty flag name", func(t *testing.T) {
		_, err := ParseConfig([]byte(`flagName: ""`))
		testutil.NotOk(t, err)
	})
	t.Run("invalid attribute names", func(t *testing.T) {
		_, err := ParseConfig([]byte(`attributes: ["a", ""]`))
		testutil.NotOk(t, err)
		testutil.Equals(t, "attributes[1]: attribute name cannot be empty", err.Error())

		_, err = ParseConfig([]byte(`attributes: [" a"]`))
		testutil.NotOk(t, err)
	})
}

func TestConfig_Enabled(t *testing.T) {
	cfg := DefaultConfig()
	testutil.Assert(t, !cfg.Enabled(nil))
	testutil.Assert(t, !cfg.Enabled(env()))
	testutil.Assert(t, !cfg.Enabled(env(DefaultFlagName, "true")))
	testutil.Assert(t, !cfg.Enabled(env(DefaultFlagName, " 1")))
	testutil.Assert(t, cfg.Enabled(env(DefaultFlagName, "1")))

	cfg.ExpectedValue = ""
	testutil.Assert(t, !cfg.Enabled(env()))
	testutil.Assert(t, cfg.Enabled(env(DefaultFlagName, "")))
}

func TestConfig_WithAttributes(t *testing.T) {
	base := DefaultConfig().WithAttributes("a")
	c1 := base.WithAttributes("b")
	c2 := base.WithAttributes("c")

	testutil.Equals(t, []string{"a"}, base.Attributes)
	testutil.Equals(t, []string{"a", "b"}, c1.Attributes)
	testutil.Equals(t, []string{"a", "c"}, c2.Attributes)
}
