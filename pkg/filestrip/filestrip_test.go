// Copyright (c) Bartłomiej Płotka @bwplotka
// Licensed under the Apache License 2.0.

package filestrip

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/bwplotka/stripattrs/pkg/attrstrip"
	"github.com/bwplotka/stripattrs/pkg/cache"
	"github.com/efficientgo/core/testutil"
	"github.com/go-kit/log"
)

const (
	withIDs    = "<div data-testid=\"a\">\n\t<p>text</p>\n</div>\n"
	withoutIDs = "<div >\n\t<p>text</p>\n</div>\n"
)

func stripper() *attrstrip.Stripper {
	return attrstrip.New(attrstrip.DefaultConfig().WithAttributes("data-testid"), attrstrip.WithActivation(true))
}

func writeFiles(t *testing.T, contents ...string) []string {
	t.Helper()

	dir := t.TempDir()
	var files []string
	for i, c := range contents {
		fn := filepath.Join(dir, fmt.Sprintf("file%d.svelte", i))
		testutil.Ok(t, os.WriteFile(fn, []byte(c), os.ModePerm))
		files = append(files, fn)
	}
	return files
}

func read(t *testing.T, fn string) string {
	t.Helper()

	b, err := os.ReadFile(fn)
	testutil.Ok(t, err)
	return string(b)
}

func TestStrip(t *testing.T) {
	files := writeFiles(t, withIDs, withoutIDs, withIDs)

	testutil.Ok(t, Strip(context.Background(), log.NewNopLogger(), stripper(), files))
	for _, fn := range files {
		testutil.Equals(t, withoutIDs, read(t, fn))
	}

	t.Run("disabled", func(t *testing.T) {
		files := writeFiles(t, withIDs)
		s := attrstrip.New(attrstrip.DefaultConfig().WithAttributes("data-testid"), attrstrip.WithActivation(false))
		testutil.Ok(t, Strip(context.Background(), log.NewNopLogger(), s, files))
		testutil.Equals(t, withIDs, read(t, files[0]))
	})
	t.Run("missing files are reported and others are stripped", func(t *testing.T) {
		files := writeFiles(t, withIDs, withIDs)
		files = append([]string{filepath.Join(t.TempDir(), "missing.svelte")}, files...)
		files = append(files, filepath.Join(t.TempDir(), "missing2.svelte"))

		err := Strip(context.Background(), log.NewNopLogger(), stripper(), files, WithConcurrency(2))
		testutil.NotOk(t, err)
		testutil.Equals(t, withoutIDs, read(t, files[1]))
		testutil.Equals(t, withoutIDs, read(t, files[2]))
	})
	t.Run("cancelled", func(t *testing.T) {
		files := writeFiles(t, withIDs)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		testutil.NotOk(t, Strip(ctx, log.NewNopLogger(), stripper(), files))
		testutil.Equals(t, withIDs, read(t, files[0]))
	})
}

func TestStrip_Concurrency(t *testing.T) {
	var contents []string
	for i := 0; i < 50; i++ {
		contents = append(contents, withIDs)
	}
	files := writeFiles(t, contents...)

	var (
		mu   sync.Mutex
		seen = map[string]int{}
	)
	testutil.Ok(t, Strip(context.Background(), log.NewNopLogger(), stripper(), files, WithConcurrency(8), WithProgress(func(fn string) {
		mu.Lock()
		seen[fn]++
		mu.Unlock()
	})))
	testutil.Equals(t, len(files), len(seen))
	for _, fn := range files {
		testutil.Equals(t, 1, seen[fn])
		testutil.Equals(t, withoutIDs, read(t, fn))
	}
}

func TestStrip_DuplicatedFiles(t *testing.T) {
	files := writeFiles(t, withIDs, withIDs)
	var dup []string
	for i := 0; i < 10; i++ {
		dup = append(dup, files...)
	}

	var (
		mu   sync.Mutex
		seen = map[string]int{}
	)
	testutil.Ok(t, Strip(context.Background(), log.NewNopLogger(), stripper(), dup, WithConcurrency(4), WithProgress(func(fn string) {
		mu.Lock()
		seen[fn]++
		mu.Unlock()
	})))
	for _, fn := range files {
		testutil.Equals(t, 1, seen[fn])
		testutil.Equals(t, withoutIDs, read(t, fn))
	}

	testutil.Ok(t, os.WriteFile(files[1], []byte(withIDs), os.ModePerm))
	diffs, err := IsStripped(context.Background(), log.NewNopLogger(), stripper(), append(dup, files[1]), WithConcurrency(4))
	testutil.Ok(t, err)
	testutil.Equals(t, 1, len(diffs))
	testutil.Assert(t, strings.HasPrefix(diffs.String(), "--- "+files[1]+"\n"), diffs.String())
}

func TestIsStripped(t *testing.T) {
	files := writeFiles(t, withoutIDs, withIDs, withIDs)

	diffs, err := IsStripped(context.Background(), log.NewNopLogger(), stripper(), files, WithConcurrency(3))
	testutil.Ok(t, err)
	testutil.Equals(t, 2, len(diffs))
	testutil.Equals(t, fmt.Sprintf(`--- %[1]s
+++ %[1]s (stripped)
@@ -1,3 +1,3 @@
-<div data-testid="a">
+<div >
 	<p>text</p>
 </div>
--- %[2]s
+++ %[2]s (stripped)
@@ -1,3 +1,3 @@
-<div data-testid="a">
+<div >
 	<p>text</p>
 </div>
`, files[1], files[2]), diffs.String())

	// Nothing was written.
	testutil.Equals(t, withIDs, read(t, files[1]))

	t.Run("stripped", func(t *testing.T) {
		diffs, err := IsStripped(context.Background(), log.NewNopLogger(), stripper(), files[:1])
		testutil.Ok(t, err)
		testutil.Equals(t, 0, len(diffs))
		testutil.Equals(t, "files the same; no diff", diffs.String())
	})
}

type countingCache struct {
	mu sync.Mutex
	*cache.SQLite3Storage

	hits int
}

func (c *countingCache) IsProcessed(path, digest string) (bool, error) {
	ok, err := c.SQLite3Storage.IsProcessed(path, digest)
	if ok {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
	}
	return ok, err
}

func TestStrip_Cache(t *testing.T) {
	storage := &cache.SQLite3Storage{Filename: filepath.Join(t.TempDir(), "cache.db")}
	testutil.Ok(t, storage.Init())
	t.Cleanup(func() { testutil.Ok(t, storage.Close()) })

	c := &countingCache{SQLite3Storage: storage}
	files := writeFiles(t, withIDs, withoutIDs)

	testutil.Ok(t, Strip(context.Background(), log.NewNopLogger(), stripper(), files, WithCache(c)))
	testutil.Equals(t, 0, c.hits)

	// Both files are now stripped and cached.
	testutil.Ok(t, Strip(context.Background(), log.NewNopLogger(), stripper(), files, WithCache(c)))
	testutil.Equals(t, 2, c.hits)

	// Changed file is stripped again.
	testutil.Ok(t, os.WriteFile(files[0], []byte(withIDs), os.ModePerm))
	testutil.Ok(t, Strip(context.Background(), log.NewNopLogger(), stripper(), files, WithCache(c)))
	testutil.Equals(t, 3, c.hits)
	testutil.Equals(t, withoutIDs, read(t, files[0]))

	// Different configuration does not use old entries.
	other := attrstrip.New(attrstrip.DefaultConfig().WithAttributes("data-testid", "data-qa"), attrstrip.WithActivation(true))
	diffs, err := IsStripped(context.Background(), log.NewNopLogger(), other, files, WithCache(c))
	testutil.Ok(t, err)
	testutil.Equals(t, 0, len(diffs))
	testutil.Equals(t, 3, c.hits)
}

func TestStrip_CacheRepeatedKeys(t *testing.T) {
	const repeated = "<script>\n\tconst props = { bar: 1, bar: 2 };\n</script>\n"

	s := attrstrip.New(attrstrip.DefaultConfig().WithAttributes("bar"), attrstrip.WithActivation(true))
	// Single pass leaves the second key behind.
	once := s.Transform(repeated).Code
	testutil.Assert(t, once != repeated && s.Transform(once).Code != once, once)

	uncached := writeFiles(t, repeated)
	for i := 0; i < 2; i++ {
		testutil.Ok(t, Strip(context.Background(), log.NewNopLogger(), s, uncached))
	}

	storage := &cache.SQLite3Storage{Filename: filepath.Join(t.TempDir(), "cache.db")}
	testutil.Ok(t, storage.Init())
	t.Cleanup(func() { testutil.Ok(t, storage.Close()) })

	c := &countingCache{SQLite3Storage: storage}
	files := writeFiles(t, repeated)
	for i := 0; i < 2; i++ {
		testutil.Ok(t, Strip(context.Background(), log.NewNopLogger(), s, files, WithCache(c)))
	}
	testutil.Equals(t, 0, c.hits)
	testutil.Equals(t, read(t, uncached[0]), read(t, files[0]))
	testutil.Assert(t, !strings.Contains(read(t, files[0]), "bar"), read(t, files[0]))

	// Now content is stable, so it is cached.
	testutil.Ok(t, Strip(context.Background(), log.NewNopLogger(), s, files, WithCache(c)))
	testutil.Equals(t, 1, c.hits)
}
