// Copyright (c) Bartłomiej Płotka @bwplotka
// Licensed under the Apache License 2.0.

// Taken from Thanos project.
//
// Copyright (c) The Thanos Authors.
// Licensed under the Apache License 2.0.
package extkingpin

import (
	"context"
	"sort"

	"github.com/alecthomas/kingpin/v2"
	"github.com/go-kit/log"
	"github.com/pkg/errors"
)

type FlagClause interface {
	Flag(name, help string) *kingpin.FlagClause
}

type ArgClause interface {
	Arg(name, help string) *kingpin.ArgClause
}

// Run is a function executed when command was selected.
type Run func(ctx context.Context, logger log.Logger) error

type AppClause interface {
	FlagClause
	ArgClause
	Command(cmd string, help string) AppClause
	Flags() []*kingpin.FlagModel
	Run(r Run)
}

// App is a wrapper around kingpin.Application for easier use.
type App struct {
	FlagClause
	app  *kingpin.Application
	runs map[string]Run
}

// NewApp returns new App.
func NewApp(app *kingpin.Application) *App {
	app.HelpFlag.Short('h')
	return &App{
		app:        app,
		FlagClause: app,
		runs:       map[string]Run{},
	}
}

// Parse parses given arguments and returns full name of the selected command (e.g. "config example") with its runner.
// Commands without runner, like groups of subcommands, cannot be selected.
func (a *App) Parse(args []string) (cmd string, runner Run, _ error) {
	cmd, err := a.app.Parse(args)
	if err != nil {
		return "", nil, errors.Wrapf(err, "parsing commandline arguments: %v", args)
	}
	runner, ok := a.runs[cmd]
	if !ok {
		return "", nil, errors.Errorf("command %q cannot be run, expected one of %v", cmd, a.Commands())
	}
	return cmd, runner, nil
}

// Usage writes usage for given arguments to application's usage writer.
func (a *App) Usage(args []string) {
	a.app.Usage(args)
}

// Commands returns sorted names of all runnable commands.
func (a *App) Commands() []string {
	cmds := make([]string, 0, len(a.runs))
	for c := range a.runs {
		cmds = append(cmds, c)
	}
	sort.Strings(cmds)
	return cmds
}

func (a *App) Command(cmd string, help string) AppClause {
	c := a.app.Command(cmd, help)
	return &appClause{
		c:          c,
		FlagClause: c,
		ArgClause:  c,
		runs:       a.runs,
		prefix:     cmd,
	}
}

type appClause struct {
	c *kingpin.CmdClause

	FlagClause
	ArgClause
	runs   map[string]Run
	prefix string
}

func (a *appClause) Command(cmd string, help string) AppClause {
	c := a.c.Command(cmd, help)
	return &appClause{
		c:          c,
		FlagClause: c,
		ArgClause:  c,
		runs:       a.runs,
		prefix:     a.prefix + " " + cmd,
	}
}

func (a *appClause) Run(s Run) {
	a.runs[a.prefix] = s
}

func (a *appClause) Flags() []*kingpin.FlagModel {
	return a.c.Model().Flags
}
