package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"webrag/pkg/config"
	"webrag/pkg/utils"
)

// HTMLFetcher retrieves the raw HTML of a single page
type HTMLFetcher interface {
	FetchHTML(ctx context.Context, pageURL string) (string, error)
}

// HTTPHTMLFetcher fetches pages over plain HTTP without JavaScript execution.
// It applies per-host rate limiting and, when a RobotsGate is supplied,
// robots.txt access checks before every request.
type HTTPHTMLFetcher struct {
	fetcher     *Fetcher
	rateLimiter *RateLimiter
	robots      *RobotsGate // nil disables robots.txt checking
	cfg         *config.AppConfig
	log         *logrus.Entry
}

// NewHTTPHTMLFetcher creates an HTTPHTMLFetcher
func NewHTTPHTMLFetcher(fetcher *Fetcher, rateLimiter *RateLimiter, robots *RobotsGate, cfg *config.AppConfig, log *logrus.Entry) *HTTPHTMLFetcher {
	return &HTTPHTMLFetcher{
		fetcher:     fetcher,
		rateLimiter: rateLimiter,
		robots:      robots,
		cfg:         cfg,
		log:         log,
	}
}

// FetchHTML fetches pageURL and returns the response body as a string
func (hf *HTTPHTMLFetcher) FetchHTML(ctx context.Context, pageURL string) (string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("%w: parsing %q: %v", utils.ErrRequestCreation, pageURL, err)
	}

	if hf.robots != nil && !hf.robots.Allowed(ctx, parsed) {
		hf.log.WithField("url", pageURL).Warn("Blocked by robots.txt")
		return "", fmt.Errorf("%w: %s", utils.ErrRobotsDisallowed, pageURL)
	}

	host := parsed.Hostname()
	hf.rateLimiter.ApplyDelay(ctx, host, hf.effectiveDelay(ctx, parsed))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", utils.ErrRequestCreation, err)
	}
	req.Header.Set("User-Agent", hf.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := hf.fetcher.FetchWithRetry(req, ctx)
	hf.rateLimiter.UpdateLastRequestTime(host)
	if err != nil {
		if resp != nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", utils.ErrResponseBodyRead, pageURL, err)
	}
	return string(body), nil
}

// effectiveDelay combines the configured per-host delay with any
// robots-declared crawl delay, using whichever is longer
func (hf *HTTPHTMLFetcher) effectiveDelay(ctx context.Context, parsed *url.URL) time.Duration {
	delay := hf.cfg.Crawl.DelayPerHost
	if hf.robots != nil {
		if rd := hf.robots.CrawlDelay(ctx, parsed); rd > delay {
			delay = rd
		}
	}
	return delay
}
