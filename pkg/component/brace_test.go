// Copyright (c) Bartłomiej Płotka @bwplotka
// Licensed under the Apache License 2.0.

package component

import (
	"testing"

	"github.com/efficientgo/core/testutil"
)

func TestMatchBrace(t *testing.T) {
	for _, tcase := range []struct {
		src   string
		open  int
		match string
	}{
		{src: `{}`, match: `{}`},
		{src: `a={b} c`, open: 2, match: `{b}`},
		{src: `{{ a: { b: 1 } }} rest}`, match: `{{ a: { b: 1 } }}`},
		{src: `{"}"}`, match: `{"}"}`},
		{src: `{'\'}'}`, match: `{'\'}'}`},
		{src: "{`}`}", match: "{`}`}"},
		{src: "{`${ {a: 1}.a }}`} x", match: "{`${ {a: 1}.a }}`}"},
		{src: "{`a ${`b ${c}`}`}", match: "{`a ${`b ${c}`}`}"},
		{src: `{x /* } */} y}`, match: `{x /* } */}`},
		{src: "{x // don't }\n} y}", match: "{x // don't }\n}"},
		{src: `{a / b} c}`, match: `{a / b}`},
		{src: `{"//"} c}`, match: `{"//"}`},
	} {
		t.Run(tcase.src, func(t *testing.T) {
			end, ok := MatchBrace(tcase.src, tcase.open)
			testutil.Assert(t, ok, "expected match")
			testutil.Equals(t, tcase.match, tcase.src[tcase.open:end])
		})
	}
}

func TestMatchBrace_NoMatch(t *testing.T) {
	for _, tcase := range []struct {
		src  string
		open int
	}{
		{src: ``},
		{src: `a`},
		{src: `{`},
		{src: `{a: {b}`},
		{src: `{"}`},
		{src: "{`${}"},
		{src: `{x /* }`},
		{src: `{x // }`},
		{src: `{}`, open: 5},
		{src: `{}`, open: -1},
	} {
		t.Run(tcase.src, func(t *testing.T) {
			_, ok := MatchBrace(tcase.src, tcase.open)
			testutil.Assert(t, !ok, "expected no match")
		})
	}
}
