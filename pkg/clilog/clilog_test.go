// Copyright (c) Bartłomiej Płotka @bwplotka
// Licensed under the Apache License 2.0.

package clilog

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/efficientgo/core/testutil"
	"github.com/go-kit/log/level"
)

func TestLogger(t *testing.T) {
	b := bytes.Buffer{}
	l := New(&b, false)

	testutil.Ok(t, level.Info(l).Log("msg", "stripped files", "count", 2))
	testutil.Ok(t, level.Warn(l).Log("msg", "cache disabled", "path", "some dir/x.db"))
	testutil.Ok(t, level.Error(l).Log("err", errors.New("strip command failed")))
	testutil.Ok(t, level.Debug(l).Log("msg", "skipping", "err", "cached", "empty", ""))
	testutil.Ok(t, l.Log("odd"))

	testutil.Equals(t, `stripped files count=2
WARN: cache disabled path="some dir/x.db"
ERROR: strip command failed
DEBUG: skipping: cached empty=""
odd=(MISSING)
`, b.String())
}

func TestLogger_Colors(t *testing.T) {
	b := bytes.Buffer{}
	testutil.Ok(t, level.Error(New(&b, true)).Log("msg", "boom"))
	testutil.Assert(t, strings.HasPrefix(b.String(), "\x1b[31;1mERROR\x1b["), b.String())
	testutil.Assert(t, strings.HasSuffix(b.String(), "m: boom\n"), b.String())
}
