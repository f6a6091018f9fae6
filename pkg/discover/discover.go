package discover

import (
	"context"

	"github.com/sirupsen/logrus"

	"webrag/pkg/models"
	"webrag/pkg/utils"
)

// PageSource supplies fully processed page records for single URLs. The
// discoverer treats it as fallible and never retries a URL itself; a URL
// that failed may be fetched again only if another page links to it later.
type PageSource interface {
	FetchPage(ctx context.Context, pageURL string) (*models.PageRecord, error)
}

// Discoverer walks a site breadth-first over its internal links, used when
// no sitemap exists. Fetched pages are returned alongside the discovered
// URLs so the caller never fetches them a second time.
type Discoverer struct {
	source PageSource
	limit  int
	log    *logrus.Entry
}

// NewDiscoverer creates a Discoverer that stops after limit discovered URLs
func NewDiscoverer(source PageSource, limit int, log *logrus.Entry) *Discoverer {
	return &Discoverer{
		source: source,
		limit:  limit,
		log:    log,
	}
}

// Discover crawls breadth-first from startURL. The frontier is strict
// FIFO; a URL enters the queue at most once before being dequeued (checked
// against both the visited set and current queue membership at enqueue
// time). Traversal halts when the discovery limit is reached or the queue
// empties, whichever happens first. A single page failure is logged and
// skipped, never fatal. Returned URLs are in discovery order.
func (d *Discoverer) Discover(ctx context.Context, startURL string) (discovered []string, pages []models.PageRecord) {
	visited := make(map[string]struct{})
	queued := make(map[string]struct{})

	queue := []string{startURL}
	queued[startURL] = struct{}{}

	for len(queue) > 0 && len(discovered) < d.limit {
		if ctx.Err() != nil {
			d.log.Warn("Link discovery aborted by context")
			break
		}

		current := queue[0]
		queue = queue[1:]
		delete(queued, current)

		if _, seen := visited[current]; seen {
			continue
		}

		pageLog := d.log.WithField("url", current)
		pageLog.Infof("Crawling: %s", current)

		record, err := d.source.FetchPage(ctx, current)
		if err != nil {
			// Not marked visited; a later page may link here again
			pageLog.WithField("error_category", utils.CategorizeError(err)).
				Warnf("Error discovering links at %s: %v", current, err)
			continue
		}

		visited[current] = struct{}{}
		discovered = append(discovered, current)
		pages = append(pages, *record)

		for _, link := range record.InternalLinks {
			if _, seen := visited[link.Href]; seen {
				continue
			}
			if _, inQueue := queued[link.Href]; inQueue {
				continue
			}
			queue = append(queue, link.Href)
			queued[link.Href] = struct{}{}
		}
	}

	d.log.Infof("Link discovery finished: %d URLs discovered, %d pages fetched", len(discovered), len(pages))
	return discovered, pages
}
