// Copyright (c) Bartłomiej Płotka @bwplotka
// Licensed under the Apache License 2.0.

// Package gitdiff prints line diffs between two versions of a file in unified format, as git diff does.
package gitdiff

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DefaultContextLines is the number of unchanged lines printed around each change.
const DefaultContextLines = 3

type line struct {
	op   diffmatchpatch.Operation
	text string
	// a and b are 1-based line numbers in the old and new version. Zero if line is not present there.
	a, b int
}

// Diff is a line by line difference between two versions of a file.
type Diff struct {
	aName, bName string
	lines        []line
}

// Compare returns diff between a and b, diffed line by line.
func Compare(a, aName, b, bName string) Diff {
	dmp := diffmatchpatch.New()
	ac, bc, lineArray := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ac, bc, false), lineArray)

	d := Diff{aName: aName, bName: bName}
	var aNo, bNo int
	for _, chunk := range diffs {
		for _, text := range strings.Split(strings.TrimSuffix(chunk.Text, "\n"), "\n") {
			l := line{op: chunk.Type, text: text}
			if chunk.Type != diffmatchpatch.DiffInsert {
				aNo++
				l.a = aNo
			}
			if chunk.Type != diffmatchpatch.DiffDelete {
				bNo++
				l.b = bNo
			}
			d.lines = append(d.lines, l)
		}
	}
	return d
}

// CompareBytes is like Compare, but for byte slices.
func CompareBytes(a []byte, aName string, b []byte, bName string) Diff {
	return Compare(string(a), aName, string(b), bName)
}

// Empty returns true if both versions are the same.
func (d Diff) Empty() bool {
	for _, l := range d.lines {
		if l.op != diffmatchpatch.DiffEqual {
			return false
		}
	}
	return true
}

// Unified prints diff in unified format with given number of context lines around changes.
func (d Diff) Unified(contextLines int) []byte {
	if d.Empty() {
		return nil
	}

	var buf bytes.Buffer
	_, _ = fmt.Fprintln(&buf, "---", d.aName)
	_, _ = fmt.Fprintln(&buf, "+++", d.bName)

	for _, h := range d.hunks(contextLines) {
		aStart, aCount := d.span(h[0], h[1], func(l line) int { return l.a })
		bStart, bCount := d.span(h[0], h[1], func(l line) int { return l.b })
		_, _ = fmt.Fprintf(&buf, "@@ -%d,%d +%d,%d @@\n", aStart, aCount, bStart, bCount)

		for _, l := range d.lines[h[0]:h[1]] {
			switch l.op {
			case diffmatchpatch.DiffInsert:
				_ = buf.WriteByte('+')
			case diffmatchpatch.DiffDelete:
				_ = buf.WriteByte('-')
			default:
				_ = buf.WriteByte(' ')
			}
			_, _ = buf.WriteString(l.text)
			_ = buf.WriteByte('\n')
		}
	}
	return buf.Bytes()
}

func (d Diff) String() string { return string(d.Unified(DefaultContextLines)) }

// hunks returns [start, end) ranges of lines to print. Changes closer than 2*contextLines are printed together.
func (d Diff) hunks(contextLines int) (ret [][2]int) {
	last := -1
	for i, l := range d.lines {
		if l.op == diffmatchpatch.DiffEqual {
			continue
		}
		start, end := max(0, i-contextLines), min(len(d.lines), i+contextLines+1)
		if last >= 0 && start <= ret[last][1] {
			ret[last][1] = end
			continue
		}
		ret = append(ret, [2]int{start, end})
		last++
	}
	return ret
}

// span returns the first line number and number of lines present in one version, given by num, for lines[from:to].
// For empty spans start is the number of the line just before, as in git.
func (d Diff) span(from, to int, num func(line) int) (start, count int) {
	for _, l := range d.lines[from:to] {
		n := num(l)
		if n == 0 {
			continue
		}
		if count == 0 {
			start = n
		}
		count++
	}
	if count > 0 {
		return start, count
	}
	for i := from - 1; i >= 0; i-- {
		if n := num(d.lines[i]); n > 0 {
			return n, 0
		}
	}
	return 0, 0
}
