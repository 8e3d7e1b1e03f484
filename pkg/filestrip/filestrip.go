// Copyright (c) Bartłomiej Płotka @bwplotka
// Licensed under the Apache License 2.0.

// Package filestrip applies attribute stripping to files on disk.
package filestrip

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"sync"

	"github.com/bwplotka/stripattrs/pkg/attrstrip"
	"github.com/bwplotka/stripattrs/pkg/gitdiff"
	"github.com/efficientgo/core/errcapture"
	"github.com/efficientgo/core/merrors"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// Cache remembers file contents that do not need stripping anymore. Entries are keyed by path and a digest of
// stripper configuration and file content.
type Cache interface {
	IsProcessed(path, digest string) (bool, error)
	Processed(path, digest string) error
}

type options struct {
	cache       Cache
	concurrency int
	onFile      func(path string)
}

// Option is a functional option type for Strip and IsStripped.
type Option func(*options)

// WithCache allows you to skip files which were already stripped with the same configuration and not changed since.
func WithCache(c Cache) Option {
	return func(o *options) {
		o.cache = c
	}
}

// WithConcurrency allows you to process up to n files at once. Default is 1.
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

// WithProgress allows you to get notified when a file is about to be processed. It might be called concurrently.
func WithProgress(fn func(path string)) Option {
	return func(o *options) {
		o.onFile = fn
	}
}

func newOptions(opts []Option) options {
	o := options{concurrency: 1}
	for _, opt := range opts {
		opt(&o)
	}
	if o.concurrency < 1 {
		o.concurrency = 1
	}
	return o
}

// Strip strips attributes from given files in-place. It keeps going on errors and returns all of them.
func Strip(ctx context.Context, logger log.Logger, s *attrstrip.Stripper, files []string, opts ...Option) error {
	o := newOptions(opts)
	digestPrefix := configDigest(s)

	return forEach(ctx, o, files, func(fn string) error {
		in, err := os.ReadFile(fn)
		if err != nil {
			return errors.Wrapf(err, "read %v", fn)
		}

		skip, err := isCached(o.cache, fn, digestPrefix, in)
		if err != nil {
			return err
		}
		if skip {
			level.Debug(logger).Log("msg", "skipping file, cached as already stripped", "file", fn)
			return nil
		}

		out := []byte(s.Transform(string(in)).Code)
		if bytes.Equal(in, out) {
			return markCached(o.cache, fn, digestPrefix, in)
		}
		if err := writeInPlace(fn, out); err != nil {
			return err
		}
		level.Debug(logger).Log("msg", "stripped file", "file", fn)

		// Stripping once does not always remove everything (e.g. repeated object keys), so the new content
		// is cached only if another pass would not change it.
		if o.cache == nil || s.Transform(string(out)).Code != string(out) {
			return nil
		}
		return markCached(o.cache, fn, digestPrefix, out)
	})
}

// Diffs are differences between files and their stripped versions.
type Diffs []gitdiff.Diff

func (d Diffs) String() string {
	if len(d) == 0 {
		return "files the same; no diff"
	}

	b := bytes.Buffer{}
	for _, diff := range d {
		_, _ = b.Write(diff.Unified(gitdiff.DefaultContextLines))
	}
	return b.String()
}

// IsStripped strips given files without writing them and returns diff for each file that would change.
// If diff is empty it means no file contains attributes to strip.
func IsStripped(ctx context.Context, logger log.Logger, s *attrstrip.Stripper, files []string, opts ...Option) (Diffs, error) {
	o := newOptions(opts)
	digestPrefix := configDigest(s)

	files = unique(files)

	// Diffs are stored per file to keep them in the order of files.
	perFile := make([]*gitdiff.Diff, len(files))
	index := make(map[string]int, len(files))
	for i, fn := range files {
		index[fn] = i
	}

	err := forEach(ctx, o, files, func(fn string) error {
		in, err := os.ReadFile(fn)
		if err != nil {
			return errors.Wrapf(err, "read %v", fn)
		}

		skip, err := isCached(o.cache, fn, digestPrefix, in)
		if err != nil {
			return err
		}
		if skip {
			level.Debug(logger).Log("msg", "skipping file, cached as already stripped", "file", fn)
			return nil
		}

		out := []byte(s.Transform(string(in)).Code)
		if bytes.Equal(in, out) {
			return markCached(o.cache, fn, digestPrefix, in)
		}
		d := gitdiff.CompareBytes(in, fn, out, fn+" (stripped)")
		perFile[index[fn]] = &d
		return nil
	})

	var diffs Diffs
	for _, d := range perFile {
		if d != nil {
			diffs = append(diffs, *d)
		}
	}
	return diffs, err
}

// forEach runs f once for each distinct file with bounded concurrency. It stops scheduling new files once ctx is done.
func forEach(ctx context.Context, o options, files []string, f func(fn string) error) error {
	var (
		mu   sync.Mutex
		errs = merrors.New()
		g    errgroup.Group
	)
	g.SetLimit(o.concurrency)

	for _, fn := range unique(files) {
		if ctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if o.onFile != nil {
				o.onFile(fn)
			}
			if err := f(fn); err != nil {
				mu.Lock()
				errs.Add(err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	errs.Add(ctx.Err())
	return errs.Err()
}

// unique returns files without duplicates, keeping the first occurrence order.
func unique(files []string) []string {
	seen := make(map[string]struct{}, len(files))
	ret := make([]string, 0, len(files))
	for _, fn := range files {
		if _, ok := seen[fn]; ok {
			continue
		}
		seen[fn] = struct{}{}
		ret = append(ret, fn)
	}
	return ret
}

func writeInPlace(fn string, b []byte) (err error) {
	file, err := os.OpenFile(fn, os.O_RDWR, 0)
	if err != nil {
		return errors.Wrapf(err, "open %v", fn)
	}
	defer errcapture.Do(&err, file.Close, "close file %v", fn)

	n, err := file.WriteAt(b, 0)
	if err != nil {
		return errors.Wrapf(err, "write %v", fn)
	}
	return errors.Wrapf(file.Truncate(int64(n)), "truncate %v", fn)
}

// configDigest identifies configuration of the stripper, so cached entries are invalidated once it changes.
func configDigest(s *attrstrip.Stripper) string {
	// Enabled state matters too: disabled stripper does not strip anything.
	b, _ := yaml.Marshal(struct {
		Config  attrstrip.Config `yaml:"config"`
		Enabled bool             `yaml:"enabled"`
	}{Config: s.Config(), Enabled: s.Enabled()})
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

func contentDigest(prefix string, content []byte) string {
	h := sha256.New()
	_, _ = io.WriteString(h, prefix)
	_, _ = h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

func isCached(c Cache, fn, prefix string, content []byte) (bool, error) {
	if c == nil {
		return false, nil
	}
	ok, err := c.IsProcessed(fn, contentDigest(prefix, content))
	return ok, errors.Wrapf(err, "check cache for %v", fn)
}

func markCached(c Cache, fn, prefix string, content []byte) error {
	if c == nil {
		return nil
	}
	return errors.Wrapf(c.Processed(fn, contentDigest(prefix, content)), "update cache for %v", fn)
}
