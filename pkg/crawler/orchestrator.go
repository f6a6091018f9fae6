package crawler

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"webrag/pkg/models"
	"webrag/pkg/utils"
)

// SitemapResolver locates a site's published sitemap. found=false is a
// normal outcome meaning no candidate location worked.
type SitemapResolver interface {
	Resolve(ctx context.Context, baseURL string) (urls []string, found bool)
}

// LinkDiscoverer walks a site's internal links when no sitemap exists,
// returning the discovered URLs plus the pages fetched along the way.
type LinkDiscoverer interface {
	Discover(ctx context.Context, startURL string) (discovered []string, pages []models.PageRecord)
}

// Extractor runs structured LLM extraction over a single fetched page
type Extractor interface {
	Extract(ctx context.Context, page *models.PageRecord) ([]models.ExtractionRecord, *models.UsageStats, error)
}

// Orchestrator runs one crawl end to end, choosing between the base,
// sitemap, generated and fallback URL sources, or the single-page LLM
// extraction branch.
type Orchestrator struct {
	source     PageSource
	scheduler  *Scheduler
	resolver   SitemapResolver
	discoverer LinkDiscoverer
	extractor  Extractor // nil when no extraction credentials are configured
	log        *logrus.Entry
}

// NewOrchestrator creates an Orchestrator. extractor may be nil; CrawlLLM
// then fails with a configuration error.
func NewOrchestrator(source PageSource, scheduler *Scheduler, resolver SitemapResolver, discoverer LinkDiscoverer, extractor Extractor, log *logrus.Entry) *Orchestrator {
	return &Orchestrator{
		source:     source,
		scheduler:  scheduler,
		resolver:   resolver,
		discoverer: discoverer,
		extractor:  extractor,
		log:        log,
	}
}

// Crawl runs a markdown-mode crawl of baseURL and assembles the normalized
// result set. With deepCrawl the sitemap is tried first; a missing sitemap
// falls back to link discovery, whose pages are reused rather than fetched
// again. Zero pages is a valid result, reported by the caller, not an
// error here.
func (o *Orchestrator) Crawl(ctx context.Context, baseURL string, deepCrawl bool) *models.CrawlResult {
	urls := []string{baseURL}
	var pages []models.PageRecord
	source := models.SourceBase

	if deepCrawl {
		sitemapURLs, found := o.resolver.Resolve(ctx, baseURL)
		// A sitemap that degenerates to just the base URL counts as absent
		if !found || (len(sitemapURLs) == 1 && sitemapURLs[0] == baseURL) {
			o.log.Info("No sitemap found, falling back to link discovery")
			discovered, discoveredPages := o.discoverer.Discover(ctx, baseURL)
			pages = discoveredPages
			if len(discovered) > 0 {
				urls = discovered
				source = models.SourceGenerated
			} else {
				urls = []string{baseURL}
				source = models.SourceFallback
			}
		} else {
			o.log.Infof("Sitemap detected with %d URLs, prioritizing structured crawl", len(sitemapURLs))
			urls = sitemapURLs
			source = models.SourceSitemap
		}
	} else {
		o.log.Info("Crawling base URL only")
	}

	// Discovery modes already fetched their pages; only base and sitemap
	// modes schedule a batch.
	if source == models.SourceBase || source == models.SourceSitemap {
		pages = o.scheduler.FetchAll(ctx, dedupeURLs(urls))
	}

	result := &models.CrawlResult{
		BaseURL:       baseURL,
		Pages:         pages,
		TotalPages:    len(pages),
		SitemapSource: source,
	}
	o.log.WithFields(logrus.Fields{
		"sitemap_source": source,
		"total_pages":    result.TotalPages,
	}).Info("Crawl finished")
	return result
}

// CrawlLLM runs the single-page LLM-extraction crawl of baseURL. Unlike
// markdown mode there is no partial result: a fetch or extraction failure
// fails the whole crawl.
func (o *Orchestrator) CrawlLLM(ctx context.Context, baseURL string) (models.CrawlOutcome, error) {
	if o.extractor == nil {
		return models.CrawlOutcome{}, fmt.Errorf("%w: no extractor configured", utils.ErrExtractionFailed)
	}

	page, fetchErr := o.source.FetchPage(ctx, baseURL)
	if fetchErr != nil {
		return models.CrawlOutcome{}, fmt.Errorf("crawl failed: %w", fetchErr)
	}

	records, usage, extractErr := o.extractor.Extract(ctx, page)
	if extractErr != nil {
		return models.CrawlOutcome{}, extractErr
	}

	o.log.WithFields(logrus.Fields{
		"extractions":  len(records),
		"total_tokens": usage.TotalTokens,
	}).Info("LLM extraction finished")
	return models.ExtractionOutcome(records, usage, page), nil
}

// dedupeURLs drops repeated URLs keeping first-occurrence order. Published
// sitemaps occasionally repeat a loc and the result set must stay unique
// by URL.
func dedupeURLs(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	deduped := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		deduped = append(deduped, u)
	}
	return deduped
}
