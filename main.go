// Copyright (c) Bartłomiej Płotka @bwplotka
// Licensed under the Apache License 2.0.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/bwplotka/stripattrs/pkg/attrstrip"
	"github.com/bwplotka/stripattrs/pkg/cache"
	"github.com/bwplotka/stripattrs/pkg/clilog"
	"github.com/bwplotka/stripattrs/pkg/extkingpin"
	"github.com/bwplotka/stripattrs/pkg/filestrip"
	"github.com/bwplotka/stripattrs/pkg/transform"
	"github.com/bwplotka/stripattrs/pkg/version"
	"github.com/bwplotka/stripattrs/pkg/yamlgen"
	"github.com/charmbracelet/glamour"
	"github.com/efficientgo/core/errcapture"
	"github.com/efficientgo/core/logerrcapture"
	extflag "github.com/efficientgo/tools/extkingpin"
	"github.com/felixge/fgprof"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/mattn/go-shellwords"
	"github.com/oklog/run"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/theckman/yacspin"
)

const (
	logFormatLogfmt = "logfmt"
	logFormatJson   = "json"
	logFormatCLILog = "clilog"

	cacheFile = ".stripattrscache"
)

func setupLogger(logLevel, logFormat string) log.Logger {
	var lvl level.Option
	switch logLevel {
	case "error":
		lvl = level.AllowError()
	case "warn":
		lvl = level.AllowWarn()
	case "info":
		lvl = level.AllowInfo()
	case "debug":
		lvl = level.AllowDebug()
	default:
		panic("unexpected log level")
	}
	switch logFormat {
	case logFormatJson:
		return level.NewFilter(log.NewJSONLogger(log.NewSyncWriter(os.Stderr)), lvl)
	case logFormatLogfmt:
		return level.NewFilter(log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr)), lvl)
	case logFormatCLILog:
		fallthrough
	default:
		return level.NewFilter(clilog.New(log.NewSyncWriter(os.Stderr), clilog.IsTerminal(os.Stderr)), lvl)
	}
}

func main() {
	app := extkingpin.NewApp(kingpin.New(filepath.Base(os.Args[0]), `Strips test-only attributes (e.g. data-testid) from UI component sources when activation environment variable is set.`).Version(version.Version))
	logLevel := app.Flag("log.level", "Log filtering level.").
		Default("info").Enum("error", "warn", "info", "debug")
	logFormat := app.Flag("log.format", "Log format to use.").
		Default(logFormatCLILog).Enum(logFormatLogfmt, logFormatJson, logFormatCLILog)
	// Profiling and metrics.
	profilesPath := app.Flag("profiles.path", "Path to directory where CPU and heap profiles will be saved; If empty, no profiling will be enabled.").ExistingDir()
	metricsPath := app.Flag("metrics.path", "Path to directory where metrics are saved in OpenMetrics format; If empty, no metrics will be saved.").ExistingDir()

	ctx, cancel := context.WithCancel(context.Background())
	registerStrip(ctx, app, metricsPath)
	registerTransform(ctx, app, metricsPath)
	registerConfig(ctx, app)

	cmd, runner, err := app.Parse(os.Args[1:])
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		app.Usage(os.Args[1:])
		os.Exit(2)
	}
	logger := setupLogger(*logLevel, *logFormat)

	if *profilesPath != "" {
		finalize, err := snapshotProfiles(*profilesPath)
		if err != nil {
			level.Error(logger).Log("err", errors.Wrapf(err, "%s profiles init failed", cmd))
			os.Exit(1)
		}
		defer logerrcapture.Do(logger, finalize, "profiles")
	}

	var g run.Group
	g.Add(func() error {
		return runner(ctx, logger)
	}, func(err error) {
		cancel()
	})

	// Listen for termination signals.
	{
		cancel := make(chan struct{})
		g.Add(func() error {
			return interrupt(logger, cancel)
		}, func(error) {
			close(cancel)
		})
	}

	if err := g.Run(); err != nil {
		if *logLevel == "debug" {
			// Use %+v for github.com/pkg/errors error to print with stack.
			level.Error(logger).Log("err", fmt.Sprintf("%+v", errors.Wrapf(err, "%s command failed", cmd)))
			os.Exit(1)
		}
		level.Error(logger).Log("err", errors.Wrapf(err, "%s command failed", cmd))
		os.Exit(1)
	}
}

func snapshotDir(dir string, now time.Time) (string, error) {
	d := filepath.Join(dir, strings.ReplaceAll(now.Format(time.UnixDate), " ", "_"))
	return d, os.MkdirAll(d, os.ModePerm)
}

func snapshotProfiles(dir string) (func() error, error) {
	d, err := snapshotDir(dir, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(d, "fgprof.pb.gz"), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.ModePerm)
	if err != nil {
		return nil, err
	}

	m, err := os.OpenFile(filepath.Join(d, "memprof.pb.gz"), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.ModePerm)
	if err != nil {
		return nil, err
	}
	defer func() { _ = m.Close() }()
	runtime.GC()

	if err := pprof.WriteHeapProfile(m); err != nil {
		return nil, err
	}

	fgFunc := fgprof.Start(f, fgprof.FormatPprof)

	return func() (err error) {
		defer errcapture.Do(&err, f.Close, "close")
		return fgFunc()
	}, nil
}

// dumpMetrics dumps metrics from registry into file in dir using OpenMetrics format.
func dumpMetrics(reg *prometheus.Registry, dir string, now time.Time) (err error) {
	mfs, err := reg.Gather()
	if err != nil {
		return err
	}
	d, err := snapshotDir(dir, now)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(d, "metrics"), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.ModePerm)
	if err != nil {
		return err
	}
	defer errcapture.Do(&err, f.Close, "close metrics file")

	ts := now.UnixMilli()
	for _, mf := range mfs {
		for _, metric := range mf.Metric {
			metric.TimestampMs = &ts
		}
		if _, err := expfmt.MetricFamilyToOpenMetrics(f, mf); err != nil {
			return err
		}
	}
	_, err = expfmt.FinalizeOpenMetrics(f)
	return err
}

func interrupt(logger log.Logger, cancel <-chan struct{}) error {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-c:
		level.Info(logger).Log("msg", "caught signal. Exiting.", "signal", s)
		return nil
	case <-cancel:
		return errors.New("canceled")
	}
}

type cacheFlags struct {
	config *extflag.PathOrContent
	file   *string
	clear  *bool
}

func registerCacheFlags(cmd extkingpin.FlagClause) *cacheFlags {
	return &cacheFlags{
		config: extflag.RegisterPathOrContent(cmd, "cache.config", "YAML file with cache configuration, with format defined in github.com/bwplotka/stripattrs/pkg/cache.Config, e.g. 'type: sqlite'. Empty means no cache.", extflag.WithEnvSubstitution()),
		file:   cmd.Flag("cache.file", "Path to cache database file.").Default(cacheFile).String(),
		clear:  cmd.Flag("cache.clear", "If true, entire cache database will be dropped and rebuilt. Useful in case cache needs to be cleared immediately from CI runner cache.").Bool(),
	}
}

// fileOptions returns filestrip options using cache if configured. Returned close function has to be called once done.
func (c *cacheFlags) fileOptions(logger log.Logger) ([]filestrip.Option, func() error, error) {
	content, err := c.config.Content()
	if err != nil {
		return nil, nil, err
	}
	cfg, err := cache.ParseConfig(content)
	if err != nil {
		return nil, nil, err
	}

	storage := cfg.NewStorage(*c.file, *c.clear)
	if storage == nil {
		return nil, func() error { return nil }, nil
	}
	if err := storage.Init(); err != nil {
		return nil, nil, errors.Wrapf(err, "init cache %v", *c.file)
	}
	level.Debug(logger).Log("msg", "using cache", "file", *c.file, "validity", cfg.Validity)
	return []filestrip.Option{filestrip.WithCache(storage)}, storage.Close, nil
}

// stripConfig parses configuration and appends attributes given as shell words, e.g. `data-testid "data-qa"`.
func stripConfig(content []byte, attributes string) (attrstrip.Config, error) {
	cfg, err := attrstrip.ParseConfig(content)
	if err != nil {
		return attrstrip.Config{}, err
	}
	extra, err := shellwords.Parse(attributes)
	if err != nil {
		return attrstrip.Config{}, errors.Wrapf(err, "parsing attributes %q", attributes)
	}
	cfg = cfg.WithAttributes(extra...)
	return cfg, cfg.Validate()
}

func registerStrip(_ context.Context, app *extkingpin.App, metricsPath *string) {
	cmd := app.Command("strip", "Strips configured attributes in-place from given component files, if activation environment variable is set. Example: STRIP_ATTRIBUTES=1 stripattrs strip --attributes=data-testid src/*.svelte")
	files := cmd.Arg("files", "Component file(s) to process.").Required().ExistingFiles()
	cfg := extflag.RegisterPathOrContent(cmd, "config", "YAML file with format defined in github.com/bwplotka/stripattrs/pkg/attrstrip.Config", extflag.WithEnvSubstitution())
	attributes := cmd.Flag("attributes", "Attribute names to strip, separated by spaces and quoted like shell words. Appended to attributes from configuration.").String()
	force := cmd.Flag("force", "If true, attributes are stripped regardless of activation environment variable.").Bool()
	checkOnly := cmd.Flag("check", "If true, strip will not modify the given files, instead it will fail if files contain attributes to strip").Bool()
	concurrency := cmd.Flag("concurrency", "Maximum number of files processed at once.").Default("1").Int()
	caching := registerCacheFlags(cmd)

	cmd.Run(func(ctx context.Context, logger log.Logger) (err error) {
		if len(*files) == 0 {
			return errors.New("no files to strip")
		}

		content, err := cfg.Content()
		if err != nil {
			return err
		}
		c, err := stripConfig(content, *attributes)
		if err != nil {
			return err
		}

		var reg *prometheus.Registry
		if *metricsPath != "" {
			reg = prometheus.NewRegistry()
		}
		sOpts := []attrstrip.Option{attrstrip.WithLogger(logger), attrstrip.WithMetrics(attrstrip.NewMetrics(reg))}
		if *force {
			sOpts = append(sOpts, attrstrip.WithActivation(true))
		}
		s := attrstrip.New(c, sOpts...)
		if !s.Enabled() {
			level.Info(logger).Log("msg", "stripping not enabled, nothing to do; set environment variable or use --force", "env", c.FlagName, "expected", c.ExpectedValue)
			return nil
		}

		opts, closeCache, err := caching.fileOptions(logger)
		if err != nil {
			return err
		}
		defer logerrcapture.Do(logger, closeCache, "close cache")
		opts = append(opts, filestrip.WithConcurrency(*concurrency))

		if *checkOnly {
			diffs, err := filestrip.IsStripped(ctx, logger, s, *files, opts...)
			if err != nil {
				return err
			}
			if err := dumpIfEnabled(reg, *metricsPath); err != nil {
				return err
			}
			if len(diffs) == 0 {
				return nil
			}
			diffOut, err := renderDiff(diffs)
			if err != nil {
				return err
			}
			return errors.Errorf("files not stripped: %v", diffOut)
		}

		if clilog.IsTerminal(os.Stderr) {
			var (
				progress filestrip.Option
				stop     func(success bool) error
			)
			progress, stop, err = startSpinner(len(*files))
			if err != nil {
				return err
			}
			defer func() { logerrcapture.Do(logger, func() error { return stop(err == nil) }, "stop spinner") }()
			opts = append(opts, progress)
		}
		if err := filestrip.Strip(ctx, logger, s, *files, opts...); err != nil {
			return err
		}
		return dumpIfEnabled(reg, *metricsPath)
	})
}

func renderDiff(diffs filestrip.Diffs) (string, error) {
	grender, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return "", err
	}
	return grender.Render("\n```diff\n" + diffs.String() + "\n```\n")
}

// startSpinner starts terminal spinner showing stripping progress. Stop has to be called once files are processed.
func startSpinner(total int) (filestrip.Option, func(success bool) error, error) {
	spinner, err := yacspin.New(yacspin.Config{
		Writer:            os.Stderr,
		Frequency:         100 * time.Millisecond,
		CharSet:           yacspin.CharSets[14],
		Suffix:            " stripping",
		SuffixAutoColon:   true,
		StopCharacter:     "✓",
		StopColors:        []string{"fgGreen"},
		StopMessage:       fmt.Sprintf("%d files", total),
		StopFailCharacter: "✗",
		StopFailColors:    []string{"fgRed"},
		StopFailMessage:   "failed",
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "new spinner")
	}
	if err := spinner.Start(); err != nil {
		return nil, nil, errors.Wrap(err, "start spinner")
	}

	var done atomic.Int64
	progress := filestrip.WithProgress(func(path string) {
		spinner.Message(fmt.Sprintf("%d/%d %s", done.Add(1), total, path))
	})
	return progress, func(success bool) error {
		if success {
			return spinner.Stop()
		}
		return spinner.StopFail()
	}, nil
}

func dumpIfEnabled(reg *prometheus.Registry, metricsPath string) error {
	if reg == nil {
		return nil
	}
	return dumpMetrics(reg, metricsPath, time.Now().UTC())
}

func registerTransform(_ context.Context, app *extkingpin.App, metricsPath *string) {
	cmd := app.Command("transform", "Copies input directory into output directory, stripping attributes from files matching configured globs. For example to produce production sources next to the ones used in e2e tests.")
	cfg := extflag.RegisterPathOrContent(cmd, "config", "Path to the YAML file with format defined in github.com/bwplotka/stripattrs/pkg/transform.Config", extflag.WithEnvSubstitution(), extflag.WithRequired())
	force := cmd.Flag("force", "If true, attributes are stripped regardless of activation environment variable.").Bool()
	concurrency := cmd.Flag("concurrency", "Maximum number of files processed at once.").Default("1").Int()
	caching := registerCacheFlags(cmd)

	cmd.Run(func(ctx context.Context, logger log.Logger) error {
		content, err := cfg.Content()
		if err != nil {
			return err
		}

		var reg *prometheus.Registry
		if *metricsPath != "" {
			reg = prometheus.NewRegistry()
		}
		sOpts := []attrstrip.Option{attrstrip.WithLogger(logger), attrstrip.WithMetrics(attrstrip.NewMetrics(reg))}
		if *force {
			sOpts = append(sOpts, attrstrip.WithActivation(true))
		}

		fOpts, closeCache, err := caching.fileOptions(logger)
		if err != nil {
			return err
		}
		defer logerrcapture.Do(logger, closeCache, "close cache")
		fOpts = append(fOpts, filestrip.WithConcurrency(*concurrency))

		if err := transform.Dir(ctx, logger, content, transform.WithStripperOptions(sOpts...), transform.WithFileOptions(fOpts...)); err != nil {
			return err
		}
		return dumpIfEnabled(reg, *metricsPath)
	})
}

func exampleConfigs() []yamlgen.Example {
	strip := attrstrip.DefaultConfig().WithAttributes("data-testid", "testid")
	return []yamlgen.Example{
		{Name: "strip --config: github.com/bwplotka/stripattrs/pkg/attrstrip.Config", Config: strip},
		{
			Name: "transform --config: github.com/bwplotka/stripattrs/pkg/transform.Config",
			Config: transform.Config{
				Version:         1,
				InputDir:        "src",
				OutputDir:       "build/src",
				ExtraInputGlobs: []string{},
				Strip:           strip,
				Transformations: []*transform.TransformationConfig{
					{Glob: "lib/**.svelte", Path: "/components/**", Attributes: []string{"data-qa"}},
					{Glob: "**.svelte", Attributes: []string{}},
				},
				GitIgnored: true,
			},
		},
	}
}

func registerConfig(_ context.Context, app *extkingpin.App) {
	cmd := app.Command("config", "Configuration helpers.")
	example := cmd.Command("example", "Prints example YAML configurations for strip and transform commands.")
	example.Run(func(context.Context, log.Logger) error {
		return yamlgen.GenerateExamples(os.Stdout, exampleConfigs()...)
	})
}
