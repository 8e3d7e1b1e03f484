// Copyright (c) Bartłomiej Płotka @bwplotka
// Licensed under the Apache License 2.0.

// Package attrstrip removes configured attributes from component sources, e.g. test ids from production builds.
//
// Stripping happens only if the environment flag from Config is set to the expected value. Otherwise, and for an
// empty attribute list, sources are returned unchanged. Source is parsed first and the attributes are removed from
// the tree, but the returned code is always produced by textual rewriting of the original source, so sources the
// parser does not understand are still stripped.
package attrstrip

import (
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Result is the outcome of a transformation.
type Result struct {
	Code string
}

// Stripper strips attributes from component sources. It is safe for concurrent use.
type Stripper struct {
	cfg        Config
	names      map[string]struct{}
	patterns   []*patterns
	env        EnvLookup
	activation *bool

	logger  log.Logger
	metrics *Metrics
}

// Option is a functional option type for Stripper objects.
type Option func(*Stripper)

// WithEnv allows you to override the environment the activation flag is read from. Nil means no environment,
// so the stripper is disabled.
func WithEnv(lookup EnvLookup) Option {
	return func(s *Stripper) {
		s.env = lookup
	}
}

// WithActivation allows you to decide if stripping is enabled, regardless of the environment.
func WithActivation(enabled bool) Option {
	return func(s *Stripper) {
		s.activation = &enabled
	}
}

// WithLogger allows you to set logger for debug information about each transformation.
func WithLogger(logger log.Logger) Option {
	return func(s *Stripper) {
		s.logger = logger
	}
}

// WithMetrics allows you to record stripping metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Stripper) {
		s.metrics = m
	}
}

// New returns Stripper for given configuration. By default, activation flag is read from the process environment.
func New(cfg Config, opts ...Option) *Stripper {
	s := &Stripper{
		cfg:    cfg.WithAttributes(),
		names:  make(map[string]struct{}, len(cfg.Attributes)),
		env:    ProcessEnv,
		logger: log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}

	for _, a := range s.cfg.Attributes {
		s.names[a] = struct{}{}
		s.patterns = append(s.patterns, newPatterns(a))
	}
	return s
}

// Config returns configuration of this stripper.
func (s *Stripper) Config() Config { return s.cfg.WithAttributes() }

// Enabled returns true if the stripper will modify sources.
func (s *Stripper) Enabled() bool {
	if s.activation != nil {
		return *s.activation
	}
	return s.cfg.Enabled(s.env)
}

// Transform strips configured attributes from content if stripping is enabled.
// It never fails; content the parser cannot understand is still rewritten textually.
func (s *Stripper) Transform(content string) Result {
	if !s.Enabled() {
		s.metrics.documents.WithLabelValues(resultDisabled).Inc()
		return Result{Code: content}
	}
	if len(s.patterns) == 0 {
		s.metrics.documents.WithLabelValues(resultUnchanged).Inc()
		return Result{Code: content}
	}

	// Tree is discarded, we only look at what would be removed.
	structural, err := s.structural(content)
	if err != nil {
		s.metrics.parseFailures.Inc()
		level.Debug(s.logger).Log("msg", "structural pass skipped, source could not be parsed", "err", err)
	} else {
		s.metrics.removed.WithLabelValues(passStructural).Add(float64(structural.total()))
	}

	code, textual := s.textual(content)
	s.metrics.removed.WithLabelValues(passTextual).Add(float64(textual))
	level.Debug(s.logger).Log(
		"msg", "stripped attributes",
		"scriptProperties", structural.ScriptProperties,
		"attributes", structural.Attributes,
		"expressionProperties", structural.ExpressionProperties,
		"textual", textual,
	)

	if code == content {
		s.metrics.documents.WithLabelValues(resultUnchanged).Inc()
	} else {
		s.metrics.documents.WithLabelValues(resultStripped).Inc()
	}
	return Result{Code: code}
}

// textual rewrites content for each attribute in order, then cleans up punctuation.
func (s *Stripper) textual(content string) (string, int) {
	var removed int
	code := content
	for _, p := range s.patterns {
		var n int
		code, n = p.strip(code)
		removed += n
	}
	return cleanup(code), removed
}

// Transform strips attributes from content using cfg, if the process environment enables it.
func Transform(content string, cfg Config) Result {
	return New(cfg).Transform(content)
}
