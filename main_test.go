// Copyright (c) Bartłomiej Płotka @bwplotka
// Licensed under the Apache License 2.0.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bwplotka/stripattrs/pkg/attrstrip"
	"github.com/bwplotka/stripattrs/pkg/yamlgen"
	"github.com/efficientgo/core/testutil"
	"github.com/prometheus/client_golang/prometheus"
)

func TestStripConfig(t *testing.T) {
	cfg, err := stripConfig([]byte("flagName: E2E\nattributes: [data-testid]"), `testid 'data qa' "data-x"`)
	testutil.Ok(t, err)
	testutil.Equals(t, "E2E", cfg.FlagName)
	testutil.Equals(t, attrstrip.DefaultExpectedValue, cfg.ExpectedValue)
	testutil.Equals(t, []string{"data-testid", "testid", "data qa", "data-x"}, cfg.Attributes)

	cfg, err = stripConfig(nil, "")
	testutil.Ok(t, err)
	testutil.Equals(t, attrstrip.DefaultConfig(), cfg)

	_, err = stripConfig(nil, `"unclosed`)
	testutil.NotOk(t, err)

	_, err = stripConfig(nil, `" data-testid"`)
	testutil.NotOk(t, err)

	_, err = stripConfig([]byte("yolo: 1"), "")
	testutil.NotOk(t, err)
}

func TestExampleConfigs(t *testing.T) {
	b := bytes.Buffer{}
	testutil.Ok(t, yamlgen.GenerateExamples(&b, exampleConfigs()...))

	docs := strings.Split(b.String(), "---\n")
	testutil.Equals(t, 2, len(docs))

	// Examples are valid configuration.
	cfg, err := attrstrip.ParseConfig([]byte(docs[0]))
	testutil.Ok(t, err)
	testutil.Equals(t, []string{"data-testid", "testid"}, cfg.Attributes)
	testutil.Assert(t, strings.Contains(docs[1], "inputDir: src\n"), docs[1])
	testutil.Assert(t, strings.Contains(docs[1], "    path: /components/**\n"), docs[1])
}

func TestDumpMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := attrstrip.New(
		attrstrip.DefaultConfig().WithAttributes("data-testid"),
		attrstrip.WithActivation(true),
		attrstrip.WithMetrics(attrstrip.NewMetrics(reg)),
	)
	testutil.Equals(t, `<div >x</div>`, s.Transform(`<div data-testid="a">x</div>`).Code)

	dir := t.TempDir()
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	testutil.Ok(t, dumpMetrics(reg, dir, now))

	d, err := snapshotDir(dir, now)
	testutil.Ok(t, err)
	b, err := os.ReadFile(filepath.Join(d, "metrics"))
	testutil.Ok(t, err)

	out := string(b)
	testutil.Assert(t, strings.Contains(out, `stripattrs_documents_total{result="stripped"} 1`), out)
	testutil.Assert(t, strings.Contains(out, `stripattrs_attributes_removed_total{pass="textual"} 1`), out)
	testutil.Assert(t, strings.HasSuffix(out, "# EOF\n"), out)
}
