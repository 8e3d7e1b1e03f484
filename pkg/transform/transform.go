// Copyright (c) Bartłomiej Płotka @bwplotka
// Licensed under the Apache License 2.0.

package transform

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bwplotka/stripattrs/pkg/attrstrip"
	"github.com/bwplotka/stripattrs/pkg/filestrip"
	"github.com/efficientgo/core/errcapture"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

type options struct {
	stripperOpts []attrstrip.Option
	fileOpts     []filestrip.Option
}

// Option is a functional option type for Dir.
type Option func(*options)

// WithStripperOptions allows you to pass options to every stripper created for transformations.
func WithStripperOptions(opts ...attrstrip.Option) Option {
	return func(o *options) {
		o.stripperOpts = append(o.stripperOpts, opts...)
	}
}

// WithFileOptions allows you to pass options used when stripping copied files.
func WithFileOptions(opts ...filestrip.Option) Option {
	return func(o *options) {
		o.fileOpts = append(o.fileOpts, opts...)
	}
}

// Dir copies input directory into output directory using given configuration, stripping
// attributes from files matched by transformations.
func Dir(ctx context.Context, logger log.Logger, configContent []byte, opts ...Option) error {
	c, err := ParseConfig(configContent)
	if err != nil {
		return err
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	_, err = os.Stat(c.OutputDir)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if !os.IsNotExist(err) {
		if err := os.RemoveAll(c.OutputDir); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(c.OutputDir, os.ModePerm); err != nil {
		return err
	}
	if c.GitIgnored {
		if err = os.WriteFile(filepath.Join(c.OutputDir, ".gitignore"), []byte("*"), os.ModePerm); err != nil {
			return err
		}
	}

	tr := &transformer{
		c:       c,
		logger:  logger,
		toStrip: map[*TransformationConfig][]string{},
	}

	for _, extra := range c.ExtraInputGlobs {
		matches, err := filepath.Glob(extra)
		if err != nil {
			return err
		}

		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil {
				return err
			}
			if info.IsDir() {
				continue
			}
			// Extra files are outside of input dir, so they land in output dir relative to the glob's static prefix.
			relPath, err := extraRelPath(extra, m)
			if err != nil {
				return errors.Wrapf(err, "rel path for %v", m)
			}
			if err := tr.transformRelFile(m, relPath); err != nil {
				return err
			}
		}
	}

	// Copy files, preserving dir structure.
	if err := filepath.Walk(c.InputDir, tr.transformFile); err != nil {
		return errors.Wrap(err, "walk")
	}

	// Once all files are in place, strip them.
	for _, t := range c.Transformations {
		files := tr.toStrip[t]
		if len(files) == 0 {
			continue
		}
		s := attrstrip.New(t.StripConfig(c.Strip), o.stripperOpts...)
		if err := filestrip.Strip(ctx, logger, s, files, o.fileOpts...); err != nil {
			return errors.Wrapf(err, "strip files matching %v", t.Glob)
		}
	}
	return nil
}

type transformer struct {
	c      Config
	logger log.Logger

	toStrip map[*TransformationConfig][]string
}

func (t *transformer) transformFile(path string, info os.FileInfo, err error) error {
	if err != nil {
		return err
	}
	if info.IsDir() {
		if path != t.c.InputDir && filepath.Clean(path) == filepath.Clean(t.c.OutputDir) {
			// Output dir inside input dir.
			return filepath.SkipDir
		}
		return nil
	}

	// All relative paths are in relation to either input or output dirs.
	relPath, err := filepath.Rel(t.c.InputDir, path)
	if err != nil {
		return errors.Wrap(err, "rel path to input dir")
	}
	return t.transformRelFile(path, relPath)
}

// transformRelFile copies file into output dir under relPath, or under the path mapped by the first matching
// transformation, which then queues it for stripping.
func (t *transformer) transformRelFile(path, relPath string) error {
	tr, ok := firstMatch(filepath.ToSlash(relPath), t.c.Transformations)
	if !ok {
		target, err := t.outputPath(relPath)
		if err != nil {
			return err
		}
		level.Debug(t.logger).Log("msg", "copying without transformation", "in", path, "relPath", relPath, "target", target)
		return copyFiles(path, target)
	}

	targetRelPath, err := tr.targetRelPath(relPath)
	if err != nil {
		return errors.Wrapf(err, "target path for %v", path)
	}
	target, err := t.outputPath(filepath.FromSlash(targetRelPath))
	if err != nil {
		return err
	}
	level.Debug(t.logger).Log("msg", "copying with transformation", "in", path, "relPath", relPath, "target", target)
	if err := copyFiles(path, target); err != nil {
		return err
	}
	t.toStrip[tr] = append(t.toStrip[tr], target)
	return nil
}

// outputPath returns path of relPath in output dir. Paths leaving output dir are rejected.
func (t *transformer) outputPath(relPath string) (string, error) {
	target := filepath.Join(t.c.OutputDir, relPath)
	rel, err := filepath.Rel(t.c.OutputDir, target)
	if err != nil {
		return "", errors.Wrapf(err, "rel path of %v to output dir", target)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Errorf("target path %v is outside of output dir %v", target, t.c.OutputDir)
	}
	return target, nil
}

// extraRelPath returns path of the file matched by extra input glob, relative to the glob's static prefix.
func extraRelPath(glob, match string) (string, error) {
	prefix := globPrefix(filepath.ToSlash(glob))
	if prefix == "" {
		return filepath.Base(match), nil
	}
	return filepath.Rel(filepath.FromSlash(prefix), match)
}

func firstMatch(relPath string, trs []*TransformationConfig) (*TransformationConfig, bool) {
	for _, tr := range trs {
		if tr._glob.Match(relPath) {
			return tr, true
		}
	}
	return nil, false
}

// targetRelPath returns path of the file in output dir, relative to output dir.
// Path with leading / is relative to output dir, otherwise it is relative to the directory of the file.
// Directories matched by the static prefix of the glob (e.g. "a/" for "a/**") are not part of that directory.
// Path suffix * is replaced with file name and suffix ** with the file path, relative to the glob prefix.
func (t TransformationConfig) targetRelPath(relPath string) (string, error) {
	if t.Path == "" {
		return relPath, nil
	}

	relPath = filepath.ToSlash(relPath)
	trimmed := strings.TrimPrefix(relPath, globPrefix(t.Glob))
	if strings.HasPrefix(t.Path, "/") {
		p := strings.TrimPrefix(t.Path, "/")
		switch {
		case strings.HasSuffix(p, "**"):
			return path.Join(strings.TrimSuffix(p, "**"), trimmed), nil
		case strings.HasSuffix(p, "*"):
			return path.Join(strings.TrimSuffix(p, "*"), path.Base(relPath)), nil
		}
		return path.Clean(p), nil
	}

	if strings.HasSuffix(t.Path, "**") {
		return "", errors.Errorf("path has to be absolute if suffix /** is used, got %v", t.Path)
	}
	dir := path.Dir(trimmed)
	if strings.HasSuffix(t.Path, "*") {
		return path.Join(dir, strings.TrimSuffix(t.Path, "*"), path.Base(relPath)), nil
	}
	return path.Join(dir, t.Path), nil
}

// globPrefix returns directories of the glob before the first special character, e.g. "a/b/" for "a/b/*.svelte".
func globPrefix(g string) string {
	i := strings.IndexAny(g, "*?[{\\")
	if i < 0 {
		return ""
	}
	return g[:strings.LastIndex(g[:i], "/")+1]
}

func copyFiles(src, dst string) (err error) {
	sourceFileStat, err := os.Stat(src)
	if err != nil {
		return errors.Wrap(err, "cpy source")
	}

	if !sourceFileStat.Mode().IsRegular() {
		return errors.Errorf("%s is not a regular file", src)
	}
	if dstStat, err := os.Stat(dst); err == nil && os.SameFile(sourceFileStat, dstStat) {
		return errors.Errorf("cannot copy %s into itself", src)
	}

	source, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, "cpy source")
	}
	defer errcapture.Do(&err, source.Close, "src close")

	if err := os.MkdirAll(filepath.Dir(dst), os.ModePerm); err != nil {
		return err
	}

	destination, err := os.Create(dst)
	if err != nil {
		return errors.Wrap(err, "cpy dest")
	}
	defer errcapture.Do(&err, destination.Close, "dst close")

	_, err = io.Copy(destination, source)
	return err
}
