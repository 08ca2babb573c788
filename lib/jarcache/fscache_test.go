// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jarcache

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/remoting/lib/clock"
)

func newTestCache(t *testing.T, options FSCacheOptions) *FSCache {
	t.Helper()
	if options.Root == "" {
		options.Root = t.TempDir()
	}
	cache, err := NewFSCache(options)
	if err != nil {
		t.Fatalf("NewFSCache() error: %v", err)
	}
	return cache
}

func bytesFetcher(content []byte) Fetcher {
	return FetcherFunc(func(_ context.Context, _ Key, w io.Writer) error {
		_, err := w.Write(content)
		return err
	})
}

func TestPathLayout(t *testing.T) {
	cache := newTestCache(t, FSCacheOptions{Root: "/cache"})
	key := Key{Sum1: 0xab123456789abcde, Sum2: 0x0123456789abcdef}

	want := filepath.Join("/cache", "ab", "123456789abcde0123456789abcdef.jar")
	if got := cache.Path(key); got != want {
		t.Errorf("Path() = %s, want %s", got, want)
	}
}

func TestLookupMissAndHit(t *testing.T) {
	cache := newTestCache(t, FSCacheOptions{})
	key := Key{Sum1: 1, Sum2: 2}

	if _, ok := cache.Lookup(key); ok {
		t.Error("Lookup() hit on empty cache")
	}

	path, err := cache.Retrieve(context.Background(), key, bytesFetcher([]byte("artifact bytes")))
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if path != cache.Path(key) {
		t.Errorf("Retrieve() path = %s, want %s", path, cache.Path(key))
	}

	hit, ok := cache.Lookup(key)
	if !ok {
		t.Fatal("Lookup() miss after Retrieve")
	}
	content, err := os.ReadFile(hit)
	if err != nil {
		t.Fatalf("reading cached artifact: %v", err)
	}
	if string(content) != "artifact bytes" {
		t.Errorf("cached content = %q", content)
	}
}

func TestLookupTouchRefreshesModTime(t *testing.T) {
	fake := clock.Fake(time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC))
	cache := newTestCache(t, FSCacheOptions{Touch: true, Clock: fake})
	key := Key{Sum1: 3, Sum2: 4}

	if _, err := cache.Retrieve(context.Background(), key, bytesFetcher([]byte("x"))); err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}

	fake.Advance(48 * time.Hour)
	path, ok := cache.Lookup(key)
	if !ok {
		t.Fatal("Lookup() miss")
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error: %v", err)
	}
	if !info.ModTime().Equal(fake.Now()) {
		t.Errorf("mtime = %v, want touched to %v", info.ModTime(), fake.Now())
	}
}

func TestRetrieveRemovesTemporaryFiles(t *testing.T) {
	cache := newTestCache(t, FSCacheOptions{})
	key := Key{Sum1: 5, Sum2: 6}

	if _, err := cache.Retrieve(context.Background(), key, bytesFetcher([]byte("content"))); err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}

	var stray []string
	filepath.Walk(cache.root, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() && strings.HasSuffix(path, ".tmp") {
			stray = append(stray, path)
		}
		return nil
	})
	if len(stray) != 0 {
		t.Errorf("temporary files left behind: %v", stray)
	}
}

func TestRetrieveFetchFailure(t *testing.T) {
	cache := newTestCache(t, FSCacheOptions{})
	key := Key{Sum1: 7, Sum2: 8}
	boom := errors.New("peer hung up")

	_, err := cache.Retrieve(context.Background(), key, FetcherFunc(
		func(_ context.Context, _ Key, w io.Writer) error {
			w.Write([]byte("partial"))
			return boom
		}))

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Retrieve() error = %v, want *FetchError", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("FetchError does not wrap the cause: %v", err)
	}
	if _, ok := cache.Lookup(key); ok {
		t.Error("failed fetch left a cached artifact")
	}
}

func TestRetrieveVerifyMismatch(t *testing.T) {
	cache := newTestCache(t, FSCacheOptions{Verify: true})
	// Key deliberately does not match the fetched content.
	key := Key{Sum1: 9, Sum2: 10}

	_, err := cache.Retrieve(context.Background(), key, bytesFetcher([]byte("not what the key says")))
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Retrieve() error = %v, want *FetchError", err)
	}
	if !strings.Contains(err.Error(), "checksum") {
		t.Errorf("verify failure message lacks checksum detail: %v", err)
	}
}

func TestRetrieveVerifyMatch(t *testing.T) {
	cache := newTestCache(t, FSCacheOptions{Verify: true})
	content := []byte("the genuine artifact")
	key, err := Checksum(bytes.NewReader(content))
	if err != nil {
		t.Fatalf("Checksum() error: %v", err)
	}

	path, err := cache.Retrieve(context.Background(), key, bytesFetcher(content))
	if err != nil {
		t.Fatalf("Retrieve() with matching checksum error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("verified artifact missing: %v", err)
	}
}

func TestConcurrentRetrievesShareOneFetch(t *testing.T) {
	cache := newTestCache(t, FSCacheOptions{})
	key := Key{Sum1: 11, Sum2: 12}

	var fetches int
	var mu sync.Mutex
	started := make(chan struct{})
	release := make(chan struct{})
	fetcher := FetcherFunc(func(_ context.Context, _ Key, w io.Writer) error {
		mu.Lock()
		fetches++
		mu.Unlock()
		close(started)
		<-release
		_, err := w.Write([]byte("shared"))
		return err
	})

	type result struct {
		path string
		err  error
	}
	results := make(chan result, 2)
	go func() {
		path, err := cache.Retrieve(context.Background(), key, fetcher)
		results <- result{path, err}
	}()
	<-started
	go func() {
		path, err := cache.Retrieve(context.Background(), key, fetcher)
		results <- result{path, err}
	}()

	// Give the second retrieve a moment to join the inflight fetch,
	// then let the fetch finish.
	time.Sleep(50 * time.Millisecond)
	close(release)

	for i := 0; i < 2; i++ {
		r := <-results
		if r.err != nil {
			t.Fatalf("Retrieve() error: %v", r.err)
		}
		if r.path != cache.Path(key) {
			t.Errorf("Retrieve() path = %s", r.path)
		}
	}
	if fetches != 1 {
		t.Errorf("fetcher invoked %d times, want 1 (inflight de-duplication)", fetches)
	}
}

func TestRetrieveLosingRaceIsSuccess(t *testing.T) {
	// Two independent cache handles sharing one directory model two
	// processes. The outer fetch completes after a competitor has
	// already materialized the identical key; existence of the
	// correctly placed file is the success criterion.
	root := t.TempDir()
	cacheA := newTestCache(t, FSCacheOptions{Root: root})
	cacheB := newTestCache(t, FSCacheOptions{Root: root})
	key := Key{Sum1: 13, Sum2: 14}
	content := []byte("same artifact either way")

	fetcher := FetcherFunc(func(ctx context.Context, k Key, w io.Writer) error {
		// Competitor wins while our fetch is still streaming.
		if _, err := cacheB.Retrieve(ctx, k, bytesFetcher(content)); err != nil {
			return err
		}
		_, err := w.Write(content)
		return err
	})

	path, err := cacheA.Retrieve(context.Background(), key, fetcher)
	if err != nil {
		t.Fatalf("Retrieve() after losing the race error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading artifact: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Errorf("artifact content = %q", data)
	}

	// Exactly one artifact file exists for the key.
	entries, err := filepath.Glob(filepath.Join(root, "*", "*.jar"))
	if err != nil {
		t.Fatalf("Glob() error: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("found %d artifact files, want 1: %v", len(entries), entries)
	}
}

func TestNewFSCacheRequiresRoot(t *testing.T) {
	if _, err := NewFSCache(FSCacheOptions{}); err == nil {
		t.Error("NewFSCache() without root succeeded, want error")
	}
}

func TestKeyStringParseRoundTrip(t *testing.T) {
	key := Key{Sum1: 0xdeadbeefcafe0123, Sum2: 0x456789abcdef0011}
	s := key.String()
	if len(s) != 32 {
		t.Fatalf("String() = %q, want 32 hex digits", s)
	}
	parsed, err := ParseKey(s)
	if err != nil {
		t.Fatalf("ParseKey(%q) error: %v", s, err)
	}
	if parsed != key {
		t.Errorf("ParseKey(String()) = %+v, want %+v", parsed, key)
	}

	if _, err := ParseKey("short"); err == nil {
		t.Error("ParseKey(short) succeeded, want error")
	}
}

func TestChecksumIsContentAddressed(t *testing.T) {
	keyA, err := Checksum(bytes.NewReader([]byte("artifact A")))
	if err != nil {
		t.Fatalf("Checksum() error: %v", err)
	}
	keyA2, err := Checksum(bytes.NewReader([]byte("artifact A")))
	if err != nil {
		t.Fatalf("Checksum() error: %v", err)
	}
	keyB, err := Checksum(bytes.NewReader([]byte("artifact B")))
	if err != nil {
		t.Fatalf("Checksum() error: %v", err)
	}

	if keyA != keyA2 {
		t.Error("identical content produced different keys")
	}
	if keyA == keyB {
		t.Error("different content produced identical keys")
	}

	path := filepath.Join(t.TempDir(), "artifact")
	if err := os.WriteFile(path, []byte("artifact A"), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	fromFile, err := ChecksumFile(path)
	if err != nil {
		t.Fatalf("ChecksumFile() error: %v", err)
	}
	if fromFile != keyA {
		t.Errorf("ChecksumFile() = %s, want %s", fromFile, keyA)
	}
}

func TestReapEvictsOldestFirst(t *testing.T) {
	root := t.TempDir()
	cache := newTestCache(t, FSCacheOptions{Root: root})

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	var keys []Key
	for i := 0; i < 4; i++ {
		key := Key{Sum1: uint64(i) << 56, Sum2: uint64(i)}
		keys = append(keys, key)
		if _, err := cache.Retrieve(context.Background(), key, bytesFetcher(bytes.Repeat([]byte("x"), 100))); err != nil {
			t.Fatalf("Retrieve() error: %v", err)
		}
		// Stagger mtimes: keys[0] is the coldest.
		stamp := base.Add(time.Duration(i) * time.Hour)
		if err := os.Chtimes(cache.Path(key), stamp, stamp); err != nil {
			t.Fatalf("Chtimes() error: %v", err)
		}
	}

	report, err := Reap(root, 250, nil)
	if err != nil {
		t.Fatalf("Reap() error: %v", err)
	}
	if report.Removed != 2 || report.Freed != 200 {
		t.Errorf("report = %+v, want 2 removed, 200 freed", report)
	}
	if report.Kept != 200 {
		t.Errorf("report.Kept = %d, want 200", report.Kept)
	}

	for i, key := range keys {
		_, ok := cache.Lookup(key)
		wantCached := i >= 2
		if ok != wantCached {
			t.Errorf("keys[%d] cached = %v, want %v", i, ok, wantCached)
		}
	}
}

func TestReapUnderBudgetRemovesNothing(t *testing.T) {
	root := t.TempDir()
	cache := newTestCache(t, FSCacheOptions{Root: root})
	key := Key{Sum1: 1, Sum2: 1}
	if _, err := cache.Retrieve(context.Background(), key, bytesFetcher([]byte("small"))); err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}

	report, err := Reap(root, 1<<20, nil)
	if err != nil {
		t.Fatalf("Reap() error: %v", err)
	}
	if report.Removed != 0 {
		t.Errorf("report.Removed = %d, want 0", report.Removed)
	}
	if _, ok := cache.Lookup(key); !ok {
		t.Error("artifact evicted despite being under budget")
	}
}
