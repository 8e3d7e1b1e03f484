// Copyright (c) Bartłomiej Płotka @bwplotka
// Licensed under the Apache License 2.0.

package attrstrip

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bwplotka/stripattrs/pkg/component"
)

var (
	doubleCommaRe      = regexp.MustCompile(`,\s*,`)
	commaAfterOpenRe   = regexp.MustCompile(`\{\s*,`)
	commaBeforeCloseRe = regexp.MustCompile(`,\s*\}`)
)

// patterns matches all textual forms of a single attribute name.
type patterns struct {
	name string

	// quoted matches ` name="value"` and ` name='value'`. Group 1 is the leading whitespace.
	quoted *regexp.Regexp
	// expression matches ` name={`, the rest of the value is found by brace matching. Group 1 is the leading whitespace.
	expression *regexp.Regexp
	// property matches `name: value,` inside braces. Group 1 is the text before and group 3 the text after the pair.
	property *regexp.Regexp
}

func newPatterns(name string) *patterns {
	n := regexp.QuoteMeta(name)
	return &patterns{
		name:       name,
		quoted:     regexp.MustCompile(fmt.Sprintf(`(\s+)%s\s*=\s*(?:"(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*')`, n)),
		expression: regexp.MustCompile(fmt.Sprintf(`(\s+)%s\s*=\s*\{`, n)),
		// Key has to open the span or follow whitespace or comma, so e.g `foobar:` is not matched for `bar`.
		property: regexp.MustCompile(fmt.Sprintf(`(\{|\{[^}]*?[\s,])(?:%[1]s|'%[1]s'|"%[1]s")\s*:\s*[^,}]+(,?\s*)([^}]*\})`, n)),
	}
}

// strip removes all occurrences of the attribute from code. It returns new code and number of removed occurrences.
func (p *patterns) strip(code string) (_ string, removed int) {
	var n int
	code, n = replaceAll(p.quoted, code, func(s string, m []int) string { return s[m[2]:m[3]] })
	removed += n

	code, n = removeExpressions(p.expression, code)
	removed += n

	code, n = replaceAll(p.property, code, func(s string, m []int) string { return s[m[2]:m[3]] + s[m[6]:m[7]] })
	return code, removed + n
}

// replaceAll is like regexp.ReplaceAllString, but repl gets submatch indexes and the number of matches is returned.
func replaceAll(re *regexp.Regexp, s string, repl func(s string, m []int) string) (string, int) {
	matches := re.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, 0
	}

	var b strings.Builder
	b.Grow(len(s))
	last := 0
	for _, m := range matches {
		b.WriteString(s[last:m[0]])
		b.WriteString(repl(s, m))
		last = m[1]
	}
	b.WriteString(s[last:])
	return b.String(), len(matches)
}

// removeExpressions removes ` name={...}` attributes, keeping the leading whitespace. Value span is found with
// component.MatchBrace, so nested braces are handled. Unbalanced values are left as they are.
func removeExpressions(re *regexp.Regexp, s string) (string, int) {
	var (
		b       strings.Builder
		last    int
		removed int
	)
	for _, m := range re.FindAllStringSubmatchIndex(s, -1) {
		if m[0] < last {
			// Inside of already removed value.
			continue
		}
		end, ok := component.MatchBrace(s, m[1]-1)
		if !ok {
			continue
		}
		b.WriteString(s[last:m[0]])
		b.WriteString(s[m[2]:m[3]])
		last = end
		removed++
	}
	if removed == 0 {
		return s, 0
	}
	b.WriteString(s[last:])
	return b.String(), removed
}

// cleanup removes punctuation left after removing object keys: doubled commas and commas next to braces.
func cleanup(code string) string {
	code = doubleCommaRe.ReplaceAllString(code, ",")
	code = commaAfterOpenRe.ReplaceAllString(code, "{")
	return commaBeforeCloseRe.ReplaceAllString(code, "}")
}
