package crawler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"webrag/pkg/cache"
	"webrag/pkg/config"
	"webrag/pkg/models"
	"webrag/pkg/process"
	"webrag/pkg/utils"
)

type fakeHTMLFetcher struct {
	mu    sync.Mutex
	calls int
	html  string
	err   error
}

func (f *fakeHTMLFetcher) FetchHTML(_ context.Context, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.html, nil
}

func (f *fakeHTMLFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newSourceUnderTest(t *testing.T, mode models.CacheMode) (*CachingSource, *fakeHTMLFetcher, *cache.PageCache) {
	t.Helper()

	appCfg := &config.AppConfig{}
	if _, err := appCfg.Validate(); err != nil {
		t.Fatalf("default config validation failed: %v", err)
	}

	fetcher := &fakeHTMLFetcher{
		html: `<html><head><title>Cached</title></head><body><p>Hello cached world</p></body></html>`,
	}
	processor := process.NewPageProcessor(appCfg.Fetch, testLogger())

	pageCache, err := cache.NewPageCache(t.TempDir(), "s.test", testLogger())
	if err != nil {
		t.Fatalf("failed to open page cache: %v", err)
	}
	t.Cleanup(func() { _ = pageCache.Close() })

	return NewCachingSource(fetcher, processor, pageCache, mode, testLogger()), fetcher, pageCache
}

func TestCachingSource_BypassNeverTouchesCache(t *testing.T) {
	src, fetcher, pageCache := newSourceUnderTest(t, models.CacheModeBypass)

	for i := 0; i < 2; i++ {
		if _, err := src.FetchPage(context.Background(), "https://s.test/page"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if fetcher.callCount() != 2 {
		t.Errorf("fetcher calls = %d, want 2 (bypass never serves from cache)", fetcher.callCount())
	}
	if pageCache.Len() != 0 {
		t.Errorf("cache entries = %d, want 0 (bypass never writes)", pageCache.Len())
	}
}

func TestCachingSource_EnabledServesSecondFetchFromCache(t *testing.T) {
	src, fetcher, pageCache := newSourceUnderTest(t, models.CacheModeEnabled)

	first, err := src.FetchPage(context.Background(), "https://s.test/page")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := src.FetchPage(context.Background(), "https://s.test/page")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fetcher.callCount() != 1 {
		t.Errorf("fetcher calls = %d, want 1 (second fetch served from cache)", fetcher.callCount())
	}
	if pageCache.Len() != 1 {
		t.Errorf("cache entries = %d, want 1", pageCache.Len())
	}
	if first.Content != second.Content || first.URL != second.URL {
		t.Error("cached record should round-trip identically")
	}
}

func TestCachingSource_ReadOnlyNeverWrites(t *testing.T) {
	src, fetcher, pageCache := newSourceUnderTest(t, models.CacheModeReadOnly)

	for i := 0; i < 2; i++ {
		if _, err := src.FetchPage(context.Background(), "https://s.test/page"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if fetcher.callCount() != 2 {
		t.Errorf("fetcher calls = %d, want 2 (read-only cache stays empty)", fetcher.callCount())
	}
	if pageCache.Len() != 0 {
		t.Errorf("cache entries = %d, want 0", pageCache.Len())
	}
}

func TestCachingSource_WriteOnlyNeverReads(t *testing.T) {
	src, fetcher, pageCache := newSourceUnderTest(t, models.CacheModeWriteOnly)

	for i := 0; i < 2; i++ {
		if _, err := src.FetchPage(context.Background(), "https://s.test/page"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if fetcher.callCount() != 2 {
		t.Errorf("fetcher calls = %d, want 2 (write-only ignores existing entries)", fetcher.callCount())
	}
	if pageCache.Len() != 1 {
		t.Errorf("cache entries = %d, want 1", pageCache.Len())
	}
}

func TestCachingSource_FetchErrorWrapped(t *testing.T) {
	src, fetcher, pageCache := newSourceUnderTest(t, models.CacheModeEnabled)
	fetcher.err = errors.New("connection refused")

	_, err := src.FetchPage(context.Background(), "https://s.test/page")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, utils.ErrFetchFailed) {
		t.Errorf("expected ErrFetchFailed, got %v", err)
	}
	if pageCache.Len() != 0 {
		t.Errorf("failed fetch must not be cached, got %d entries", pageCache.Len())
	}
}

func TestCachingSource_NilCache(t *testing.T) {
	appCfg := &config.AppConfig{}
	if _, err := appCfg.Validate(); err != nil {
		t.Fatalf("default config validation failed: %v", err)
	}
	fetcher := &fakeHTMLFetcher{html: "<html><body><p>no cache wired</p></body></html>"}
	processor := process.NewPageProcessor(appCfg.Fetch, testLogger())
	src := NewCachingSource(fetcher, processor, nil, models.CacheModeEnabled, testLogger())

	for i := 0; i < 2; i++ {
		if _, err := src.FetchPage(context.Background(), "https://s.test/page"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if fetcher.callCount() != 2 {
		t.Errorf("fetcher calls = %d, want 2", fetcher.callCount())
	}
}
