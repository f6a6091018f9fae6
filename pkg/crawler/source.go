package crawler

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"webrag/pkg/cache"
	"webrag/pkg/fetch"
	"webrag/pkg/models"
	"webrag/pkg/process"
	"webrag/pkg/utils"
)

// PageSource supplies one fully processed page record per URL
type PageSource interface {
	FetchPage(ctx context.Context, pageURL string) (*models.PageRecord, error)
}

// CachingSource implements PageSource by composing an HTML fetcher with the
// page processor and an optional page cache, honoring the configured cache
// mode. Cache faults always degrade to a live fetch; they never fail the
// page.
type CachingSource struct {
	fetcher   fetch.HTMLFetcher
	processor *process.PageProcessor
	pageCache *cache.PageCache // may be nil when the mode neither reads nor writes
	mode      models.CacheMode
	log       *logrus.Entry
}

// NewCachingSource creates a CachingSource
func NewCachingSource(fetcher fetch.HTMLFetcher, processor *process.PageProcessor, pageCache *cache.PageCache, mode models.CacheMode, log *logrus.Entry) *CachingSource {
	return &CachingSource{
		fetcher:   fetcher,
		processor: processor,
		pageCache: pageCache,
		mode:      mode,
		log:       log,
	}
}

// FetchPage returns the record for pageURL, from cache when the mode reads
// and the entry exists, otherwise from a live fetch straight through the
// processor. A successful live fetch is stored back when the mode writes.
func (cs *CachingSource) FetchPage(ctx context.Context, pageURL string) (*models.PageRecord, error) {
	if cs.mode.Reads() && cs.pageCache != nil {
		record, found, cacheErr := cs.pageCache.Get(pageURL)
		if cacheErr != nil {
			cs.log.WithField("url", pageURL).Warnf("Cache read failed, fetching live: %v", cacheErr)
		} else if found {
			cs.log.WithField("url", pageURL).Debug("Page served from cache")
			return record, nil
		}
	}

	html, fetchErr := cs.fetcher.FetchHTML(ctx, pageURL)
	if fetchErr != nil {
		return nil, fmt.Errorf("%w: '%s': %w", utils.ErrFetchFailed, pageURL, fetchErr)
	}

	record, procErr := cs.processor.Process(pageURL, html)
	if procErr != nil {
		return nil, procErr
	}

	if cs.mode.Writes() && cs.pageCache != nil {
		if putErr := cs.pageCache.Put(record); putErr != nil {
			cs.log.WithField("url", pageURL).Warnf("Cache write failed: %v", putErr)
		}
	}
	return record, nil
}
