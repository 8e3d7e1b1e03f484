// Copyright (c) Bartłomiej Płotka @bwplotka
// Licensed under the Apache License 2.0.

// Package clilog implements go-kit logger printing human readable lines for command line usage.
package clilog

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/mattn/go-isatty"
)

type logger struct {
	w      io.Writer
	colors map[string]*color.Color
}

// New returns logger that prints message first, then error and rest of key values. Level is printed only
// if different than info. Writer w has to be safe for concurrent use.
func New(w io.Writer, colors bool) log.Logger {
	l := &logger{
		w: w,
		colors: map[string]*color.Color{
			level.DebugValue().String(): color.New(color.FgHiBlack),
			level.InfoValue().String():  color.New(color.FgCyan),
			level.WarnValue().String():  color.New(color.FgYellow),
			level.ErrorValue().String(): color.New(color.FgRed, color.Bold),
		},
	}
	for _, c := range l.colors {
		if colors {
			c.EnableColor()
			continue
		}
		c.DisableColor()
	}
	return l
}

// IsTerminal returns true if given file is a terminal, so colors can be used.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (l *logger) Log(keyvals ...interface{}) error {
	var (
		lvl, msg, errMsg string
		rest             []string
	)
	for i := 0; i < len(keyvals); i += 2 {
		k := fmt.Sprint(keyvals[i])
		v := "(MISSING)"
		if i+1 < len(keyvals) {
			v = fmt.Sprint(keyvals[i+1])
		}

		switch {
		case keyvals[i] == level.Key():
			lvl = v
		case k == "msg":
			msg = v
		case k == "err":
			errMsg = v
		default:
			rest = append(rest, k+"="+quote(v))
		}
	}

	b := strings.Builder{}
	if lvl != "" && lvl != level.InfoValue().String() {
		c, ok := l.colors[lvl]
		if !ok {
			c = l.colors[level.InfoValue().String()]
		}
		b.WriteString(c.Sprint(strings.ToUpper(lvl)))
		b.WriteString(": ")
	}
	b.WriteString(msg)
	if errMsg != "" {
		if msg != "" {
			b.WriteString(": ")
		}
		b.WriteString(errMsg)
	}
	if len(rest) > 0 {
		if msg != "" || errMsg != "" {
			b.WriteString(" ")
		}
		b.WriteString(l.colors[level.DebugValue().String()].Sprint(strings.Join(rest, " ")))
	}
	b.WriteString("\n")

	_, err := io.WriteString(l.w, b.String())
	return err
}

func quote(v string) string {
	if v == "" || strings.ContainsAny(v, " \t\n\"=") {
		return strconv.Quote(v)
	}
	return v
}
