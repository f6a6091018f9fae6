package sitemap

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"webrag/pkg/config"
	"webrag/pkg/fetch"
	"webrag/pkg/parse"
)

// candidatePaths are the well-known sitemap locations, probed in order
var candidatePaths = []string{"/sitemap.xml", "/sitemap_index.xml", "/sitemap.txt"}

// Resolver locates a site's sitemap by probing the well-known locations
// under the crawl's base URL.
type Resolver struct {
	fetcher     *fetch.Fetcher
	rateLimiter *fetch.RateLimiter
	cfg         *config.AppConfig
	log         *logrus.Entry
}

// NewResolver creates a Resolver
func NewResolver(fetcher *fetch.Fetcher, rateLimiter *fetch.RateLimiter, cfg *config.AppConfig, log *logrus.Entry) *Resolver {
	return &Resolver{
		fetcher:     fetcher,
		rateLimiter: rateLimiter,
		cfg:         cfg,
		log:         log,
	}
}

// Resolve probes {base}/sitemap.xml, {base}/sitemap_index.xml and
// {base}/sitemap.txt in order and returns the URL list of the first
// candidate that yields one. A sitemap index is not recursed into; its
// nested sitemap locations are returned as-is. Each candidate fetch is
// bounded by the configured sitemap timeout; a candidate that fails to
// fetch or parse just means the next one is tried. found=false is a
// normal outcome, not an error; callers fall back to the base URL or to
// link discovery.
func (r *Resolver) Resolve(ctx context.Context, baseURL string) (urls []string, found bool) {
	trimmedBase := strings.TrimRight(baseURL, "/")
	for _, path := range candidatePaths {
		if ctx.Err() != nil {
			return nil, false
		}
		if urls, ok := r.tryCandidate(ctx, trimmedBase+path); ok {
			return urls, true
		}
	}
	r.log.WithField("base_url", baseURL).Debug("No sitemap found at any well-known location")
	return nil, false
}

func (r *Resolver) tryCandidate(ctx context.Context, candidate string) ([]string, bool) {
	candidateLog := r.log.WithField("sitemap_url", candidate)

	parsed, parseErr := url.Parse(candidate)
	if parseErr != nil {
		candidateLog.Debugf("Skipping unparseable sitemap candidate: %v", parseErr)
		return nil, false
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.cfg.Crawl.SitemapTimeout)
	defer cancel()

	if r.rateLimiter != nil {
		r.rateLimiter.ApplyDelay(fetchCtx, parsed.Host, r.cfg.Crawl.DelayPerHost)
		if fetchCtx.Err() != nil {
			return nil, false
		}
	}

	req, reqErr := http.NewRequestWithContext(fetchCtx, http.MethodGet, candidate, nil)
	if reqErr != nil {
		candidateLog.Debugf("Failed to build sitemap request: %v", reqErr)
		return nil, false
	}
	req.Header.Set("User-Agent", r.cfg.UserAgent)
	req.Header.Set("Accept", "application/xml,text/xml,text/plain;q=0.9,*/*;q=0.8")

	resp, fetchErr := r.fetcher.FetchWithRetry(req, fetchCtx)
	if r.rateLimiter != nil {
		r.rateLimiter.UpdateLastRequestTime(parsed.Host)
	}
	if fetchErr != nil {
		if resp != nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		candidateLog.Debugf("Sitemap candidate fetch failed: %v", fetchErr)
		return nil, false
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		candidateLog.Debugf("Failed reading sitemap body: %v", readErr)
		return nil, false
	}

	urls, ok := extractURLs(body, resp.Header.Get("Content-Type"))
	if !ok {
		candidateLog.Debug("Sitemap candidate did not parse; trying next")
		return nil, false
	}
	candidateLog.Infof("Resolved sitemap with %d URLs", len(urls))
	return urls, true
}

// extractURLs interprets a fetched sitemap body. An index marker wins over
// everything; a text content type means one URL per line; anything else
// must parse as a urlset.
func extractURLs(body []byte, contentType string) ([]string, bool) {
	if parse.IsSitemapIndex(body) {
		locs, err := parse.SitemapIndexLocs(body)
		if err != nil {
			return nil, false
		}
		return locs, true
	}
	if strings.Contains(contentType, "text/plain") || strings.Contains(contentType, "txt") {
		return parse.TextSitemapLines(body), true
	}
	locs, err := parse.URLSetLocs(body)
	if err != nil {
		return nil, false
	}
	return locs, true
}
