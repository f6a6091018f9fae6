package discover

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"webrag/pkg/models"
	"webrag/pkg/utils"
)

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

// fakeSource serves scripted pages. links maps a URL to the internal link
// targets on its page; failures maps a URL to how many leading calls fail;
// denied maps a URL to a permanent error.
type fakeSource struct {
	mu       sync.Mutex
	links    map[string][]string
	failures map[string]int
	denied   map[string]error
	calls    map[string]int
}

func newFakeSource(links map[string][]string) *fakeSource {
	return &fakeSource{
		links:    links,
		failures: make(map[string]int),
		denied:   make(map[string]error),
		calls:    make(map[string]int),
	}
}

func (f *fakeSource) FetchPage(_ context.Context, pageURL string) (*models.PageRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[pageURL]++
	if err, ok := f.denied[pageURL]; ok {
		return nil, err
	}
	if f.calls[pageURL] <= f.failures[pageURL] {
		return nil, fmt.Errorf("%w: %s", utils.ErrFetchFailed, pageURL)
	}
	refs := make([]models.LinkRef, 0, len(f.links[pageURL]))
	for _, href := range f.links[pageURL] {
		refs = append(refs, models.LinkRef{Href: href})
	}
	return &models.PageRecord{
		URL:           pageURL,
		Content:       "content of " + pageURL,
		HTML:          "<html></html>",
		InternalLinks: refs,
	}, nil
}

func (f *fakeSource) callCount(pageURL string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[pageURL]
}

func TestDiscoverer_BreadthFirstOrder(t *testing.T) {
	source := newFakeSource(map[string][]string{
		"https://s.test/":  {"https://s.test/a", "https://s.test/b"},
		"https://s.test/a": {"https://s.test/c"},
		"https://s.test/b": {"https://s.test/d"},
	})

	discovered, pages := NewDiscoverer(source, 100, testLogger()).Discover(context.Background(), "https://s.test/")

	want := []string{
		"https://s.test/",
		"https://s.test/a",
		"https://s.test/b",
		"https://s.test/c",
		"https://s.test/d",
	}
	if len(discovered) != len(want) {
		t.Fatalf("discovered %v, want %v", discovered, want)
	}
	for i := range want {
		if discovered[i] != want[i] {
			t.Errorf("discovered[%d] = %q, want %q (breadth-first order)", i, discovered[i], want[i])
		}
	}
	if len(pages) != len(want) {
		t.Errorf("expected %d pages, got %d", len(want), len(pages))
	}
	for i, page := range pages {
		if page.URL != want[i] {
			t.Errorf("pages[%d].URL = %q, want %q", i, page.URL, want[i])
		}
	}
}

func TestDiscoverer_FetchesEachURLOnce(t *testing.T) {
	// Dense cross-linking, including cycles back to the start page
	source := newFakeSource(map[string][]string{
		"https://s.test/":  {"https://s.test/a", "https://s.test/b"},
		"https://s.test/a": {"https://s.test/b", "https://s.test/"},
		"https://s.test/b": {"https://s.test/a", "https://s.test/"},
	})

	discovered, _ := NewDiscoverer(source, 100, testLogger()).Discover(context.Background(), "https://s.test/")

	if len(discovered) != 3 {
		t.Fatalf("discovered = %v", discovered)
	}
	for _, u := range discovered {
		if n := source.callCount(u); n != 1 {
			t.Errorf("%s fetched %d times, want 1", u, n)
		}
	}
}

func TestDiscoverer_StopsAtLimit(t *testing.T) {
	// Every page links to the next; unlimited chain
	links := make(map[string][]string)
	for i := 0; i < 50; i++ {
		links[pageURL(i)] = []string{pageURL(i + 1)}
	}
	source := newFakeSource(links)

	discovered, pages := NewDiscoverer(source, 5, testLogger()).Discover(context.Background(), pageURL(0))

	if len(discovered) != 5 {
		t.Errorf("expected exactly 5 discovered URLs, got %d", len(discovered))
	}
	if len(pages) != 5 {
		t.Errorf("expected exactly 5 pages, got %d", len(pages))
	}
	if n := source.callCount(pageURL(5)); n != 0 {
		t.Errorf("URL beyond the limit was fetched %d times", n)
	}
}

func TestDiscoverer_FailureSkipsPageAndContinues(t *testing.T) {
	source := newFakeSource(map[string][]string{
		"https://s.test/":   {"https://s.test/broken", "https://s.test/ok"},
		"https://s.test/ok": {},
	})
	source.failures["https://s.test/broken"] = 100

	discovered, pages := NewDiscoverer(source, 100, testLogger()).Discover(context.Background(), "https://s.test/")

	if len(discovered) != 2 {
		t.Fatalf("discovered = %v", discovered)
	}
	if discovered[0] != "https://s.test/" || discovered[1] != "https://s.test/ok" {
		t.Errorf("discovered = %v", discovered)
	}
	for _, page := range pages {
		if page.URL == "https://s.test/broken" {
			t.Error("failed page must not appear in results")
		}
	}
}

func TestDiscoverer_RobotsDisallowedPageSkipped(t *testing.T) {
	source := newFakeSource(map[string][]string{
		"https://s.test/":     {"https://s.test/private", "https://s.test/open"},
		"https://s.test/open": {},
	})
	source.denied["https://s.test/private"] = fmt.Errorf("%w: https://s.test/private", utils.ErrRobotsDisallowed)

	discovered, pages := NewDiscoverer(source, 100, testLogger()).Discover(context.Background(), "https://s.test/")

	if len(discovered) != 2 || discovered[0] != "https://s.test/" || discovered[1] != "https://s.test/open" {
		t.Errorf("discovered = %v, want the disallowed URL dropped", discovered)
	}
	for _, page := range pages {
		if page.URL == "https://s.test/private" {
			t.Error("disallowed page must not appear in results")
		}
	}
}

func TestDiscoverer_FailedURLRetriedWhenLinkedAgain(t *testing.T) {
	// /flaky fails once; /b links back to it after the failure
	source := newFakeSource(map[string][]string{
		"https://s.test/":      {"https://s.test/flaky", "https://s.test/b"},
		"https://s.test/b":     {"https://s.test/flaky"},
		"https://s.test/flaky": {},
	})
	source.failures["https://s.test/flaky"] = 1

	discovered, _ := NewDiscoverer(source, 100, testLogger()).Discover(context.Background(), "https://s.test/")

	if n := source.callCount("https://s.test/flaky"); n != 2 {
		t.Errorf("flaky URL fetched %d times, want 2 (failure does not mark visited)", n)
	}
	found := false
	for _, u := range discovered {
		if u == "https://s.test/flaky" {
			found = true
		}
	}
	if !found {
		t.Errorf("flaky URL should be discovered on retry; discovered = %v", discovered)
	}
}

func TestDiscoverer_StartPageFailureMeansNothingDiscovered(t *testing.T) {
	source := newFakeSource(map[string][]string{})
	source.failures["https://s.test/"] = 100

	discovered, pages := NewDiscoverer(source, 100, testLogger()).Discover(context.Background(), "https://s.test/")

	if len(discovered) != 0 || len(pages) != 0 {
		t.Errorf("expected empty result, got %v / %d pages", discovered, len(pages))
	}
}

func TestDiscoverer_CancelledContext(t *testing.T) {
	source := newFakeSource(map[string][]string{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	discovered, _ := NewDiscoverer(source, 100, testLogger()).Discover(ctx, "https://s.test/")

	if len(discovered) != 0 {
		t.Errorf("expected no discovery with cancelled context, got %v", discovered)
	}
	if n := source.callCount("https://s.test/"); n != 0 {
		t.Errorf("no fetch should run with cancelled context, got %d", n)
	}
}

func pageURL(i int) string {
	return fmt.Sprintf("https://s.test/page-%d", i)
}
