package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"

	"webrag/pkg/config"
)

// RobotsGate fetches, parses, and caches robots.txt rules per host and
// answers access checks for the configured user agent.
// Hosts whose robots.txt cannot be fetched at all are treated as fully allowed.
type RobotsGate struct {
	fetcher     *Fetcher
	rateLimiter *RateLimiter
	cache       map[string]*robotstxt.RobotsData // hostname -> parsed data (or nil on failure)
	cacheMu     sync.Mutex
	cfg         *config.AppConfig
	log         *logrus.Entry
}

// NewRobotsGate creates a RobotsGate
func NewRobotsGate(fetcher *Fetcher, rateLimiter *RateLimiter, cfg *config.AppConfig, log *logrus.Entry) *RobotsGate {
	return &RobotsGate{
		fetcher:     fetcher,
		rateLimiter: rateLimiter,
		cache:       make(map[string]*robotstxt.RobotsData),
		cfg:         cfg,
		log:         log,
	}
}

// Allowed reports whether the configured user agent may fetch targetURL
// Failures to obtain robots.txt default to allowed
func (rg *RobotsGate) Allowed(ctx context.Context, targetURL *url.URL) bool {
	data := rg.data(ctx, targetURL)
	if data == nil {
		return true
	}
	return data.FindGroup(rg.cfg.UserAgent).Test(targetURL.RequestURI())
}

// CrawlDelay returns the crawl delay robots.txt declares for the configured
// user agent on targetURL's host, or zero when none is declared
func (rg *RobotsGate) CrawlDelay(ctx context.Context, targetURL *url.URL) time.Duration {
	data := rg.data(ctx, targetURL)
	if data == nil {
		return 0
	}
	return data.FindGroup(rg.cfg.UserAgent).CrawlDelay
}

// data retrieves robots.txt data for the targetURL's host, using cache or fetching
// A nil return means the rules could not be obtained and the host is unrestricted
func (rg *RobotsGate) data(ctx context.Context, targetURL *url.URL) *robotstxt.RobotsData {
	host := targetURL.Hostname()

	rg.cacheMu.Lock()
	data, found := rg.cache[host]
	rg.cacheMu.Unlock()
	if found {
		return data // Cached data may be nil after an earlier failure
	}

	robotsURL := &url.URL{Scheme: targetURL.Scheme, Host: targetURL.Host, Path: "/robots.txt"}
	if robotsURL.Scheme != "http" && robotsURL.Scheme != "https" {
		robotsURL.Scheme = "https"
	}
	robotsLog := rg.log.WithFields(logrus.Fields{"host": host, "robots_url": robotsURL.String()})
	robotsLog.Info("Fetching robots.txt...") // Log only on cache miss

	data = rg.fetch(ctx, robotsURL, robotsLog)

	rg.cacheMu.Lock()
	rg.cache[host] = data
	rg.cacheMu.Unlock()
	return data
}

func (rg *RobotsGate) fetch(ctx context.Context, robotsURL *url.URL, robotsLog *logrus.Entry) *robotstxt.RobotsData {
	host := robotsURL.Hostname()
	rg.rateLimiter.ApplyDelay(ctx, host, rg.cfg.Crawl.DelayPerHost)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		robotsLog.Errorf("Error creating robots.txt request: %v", err)
		return nil
	}
	req.Header.Set("User-Agent", rg.cfg.UserAgent)

	resp, fetchErr := rg.fetcher.FetchWithRetry(req, ctx)
	rg.rateLimiter.UpdateLastRequestTime(host)

	// 4xx responses come back alongside an error; robotstxt derives the policy
	// from the status code (404 allows everything, 401/403 disallow everything)
	if resp == nil {
		robotsLog.Warnf("Fetching robots.txt failed: %v", fetchErr)
		return nil
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		robotsLog.Errorf("Error reading robots.txt body: %v", err)
		return nil
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, bodyBytes)
	if err != nil {
		robotsLog.Errorf("Error parsing robots.txt: %v", err)
		return nil
	}

	robotsLog.WithField("status_code", resp.StatusCode).Info("Fetched and parsed robots.txt")
	return data
}
