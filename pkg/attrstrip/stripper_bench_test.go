// Copyright (c) Bartłomiej Płotka @bwplotka
// Licensed under the Apache License 2.0.

package attrstrip

import (
	"testing"

	"github.com/efficientgo/core/testutil"
	"golang.org/x/tools/txtar"
)

func BenchmarkStripper_Transform(b *testing.B) {
	a, err := txtar.ParseFile("testdata/component.txtar")
	testutil.Ok(b, err)

	var input string
	for _, f := range a.Files {
		if f.Name == "input.svelte" {
			input = string(f.Data)
		}
	}

	s := enabled("data-testid", "testid")
	b.ReportAllocs()
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		_ = s.Transform(input)
	}
}
