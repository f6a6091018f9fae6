package config

import (
	"fmt"
	"time"

	"webrag/pkg/models"
	"webrag/pkg/utils"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// UserAgent
	if c.UserAgent == "" {
		c.UserAgent = "webrag/1.0"
	}

	// MaxRetries
	if c.MaxRetries < 0 {
		warnings = append(warnings, "max_retries cannot be negative, setting to 0")
		c.MaxRetries = 0
	}
	if c.MaxRetries == 0 && c.InitialRetryDelay == 0 {
		c.MaxRetries = 3
	}

	// Retry delays (only if retries enabled)
	if c.MaxRetries > 0 {
		if c.InitialRetryDelay <= 0 {
			c.InitialRetryDelay = 1 * time.Second
		}
		if c.MaxRetryDelay <= 0 {
			c.MaxRetryDelay = 30 * time.Second
		}
	}

	// InitialRetryDelay > MaxRetryDelay check
	if c.InitialRetryDelay > c.MaxRetryDelay && c.MaxRetryDelay > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"initial_retry_delay (%v) > max_retry_delay (%v), using max_retry_delay for initial",
			c.InitialRetryDelay, c.MaxRetryDelay))
		c.InitialRetryDelay = c.MaxRetryDelay
	}

	warnings = append(warnings, c.validateCrawl()...)
	warnings = append(warnings, c.validateFetch()...)

	cacheWarnings, err := c.validateCache()
	warnings = append(warnings, cacheWarnings...)
	if err != nil {
		return warnings, err
	}

	warnings = append(warnings, c.validateLLM()...)
	warnings = append(warnings, c.validateEmbedding()...)

	ragWarnings, err := c.validateRAG()
	warnings = append(warnings, ragWarnings...)
	if err != nil {
		return warnings, err
	}

	c.validateHTTPClientSettings()

	return warnings, nil
}

func (c *AppConfig) validateCrawl() (warnings []string) {
	cr := &c.Crawl

	// DiscoveryLimit
	if cr.DiscoveryLimit <= 0 {
		warnings = append(warnings, "crawl.discovery_limit should be > 0, defaulting to 100")
		cr.DiscoveryLimit = 100
	}

	// MaxConcurrentFetches
	if cr.MaxConcurrentFetches <= 0 {
		warnings = append(warnings, "crawl.max_concurrent_fetches should be > 0, defaulting to 8")
		cr.MaxConcurrentFetches = 8
	}

	// SitemapTimeout
	if cr.SitemapTimeout <= 0 {
		cr.SitemapTimeout = 10 * time.Second
	}

	// DelayPerHost
	if cr.DelayPerHost < 0 {
		warnings = append(warnings, "crawl.delay_per_host cannot be negative, disabling delay")
		cr.DelayPerHost = 0
	}

	return warnings
}

func (c *AppConfig) validateFetch() (warnings []string) {
	f := &c.Fetch

	// Rendering booleans default to on; plain HTTP fetching ignores them
	defaultTrue(&f.Headless)
	defaultTrue(&f.ScanFullPage)
	defaultTrue(&f.WaitForImages)
	defaultTrue(&f.SimulateUser)
	defaultTrue(&f.OverrideNavigator)
	defaultTrue(&f.RemoveOverlays)
	defaultTrue(&f.ProcessIframes)
	defaultTrue(&f.AdjustViewport)
	defaultTrue(&f.ExcludeExternalLinks)

	// PageTimeout
	if f.PageTimeout <= 0 {
		f.PageTimeout = 60 * time.Second
	}

	// ScrollDelay
	if f.ScrollDelay < 0 {
		warnings = append(warnings, "fetch.scroll_delay cannot be negative, defaulting to 5s")
		f.ScrollDelay = 0
	}
	if f.ScrollDelay == 0 {
		f.ScrollDelay = 5 * time.Second
	}

	// SettleDelay
	if f.SettleDelay < 0 {
		warnings = append(warnings, "fetch.settle_delay cannot be negative, defaulting to 5s")
		f.SettleDelay = 0
	}
	if f.SettleDelay == 0 {
		f.SettleDelay = 5 * time.Second
	}

	// WordCountThreshold
	if f.WordCountThreshold <= 0 {
		f.WordCountThreshold = 1
	}

	return warnings
}

func (c *AppConfig) validateCache() (warnings []string, err error) {
	ca := &c.Cache

	// Mode
	if ca.Mode == "" {
		ca.Mode = models.CacheModeBypass
	}
	if !ca.Mode.IsValid() {
		return warnings, fmt.Errorf("%w: unknown cache mode %q", utils.ErrConfigValidation, ca.Mode)
	}

	// Dir
	if ca.Dir == "" && ca.Mode != models.CacheModeDisabled {
		warnings = append(warnings, "cache.dir is empty, defaulting to './webrag_cache'")
		ca.Dir = "./webrag_cache"
	}

	return warnings, nil
}

func (c *AppConfig) validateLLM() (warnings []string) {
	l := &c.LLM

	// BaseURL
	if l.BaseURL == "" {
		l.BaseURL = "https://api.groq.com/openai/v1"
	}

	// Model
	if l.Model == "" {
		l.Model = "deepseek-r1-distill-llama-70b"
	}
	if !IsKnownChatModel(l.Model) {
		warnings = append(warnings, fmt.Sprintf("llm.model %q is not a known chat model, using it anyway", l.Model))
	}

	// APIKeyEnv
	if l.APIKeyEnv == "" {
		l.APIKeyEnv = "GROQ_API_KEY"
	}

	// Sampling parameters
	if l.Temperature < 0 {
		warnings = append(warnings, "llm.temperature cannot be negative, defaulting to 0.7")
		l.Temperature = 0
	}
	if l.Temperature == 0 {
		l.Temperature = 0.7
	}
	if l.MaxTokens <= 0 {
		l.MaxTokens = 6800
	}
	if l.TopP <= 0 || l.TopP > 1 {
		l.TopP = 1
	}

	// Extraction windows
	if l.ChunkTokenThreshold <= 0 {
		l.ChunkTokenThreshold = 4096
	}
	if l.OverlapRate < 0 || l.OverlapRate >= 1 {
		warnings = append(warnings, "llm.overlap_rate must be in [0, 1), defaulting to 0.2")
		l.OverlapRate = 0
	}
	if l.OverlapRate == 0 {
		l.OverlapRate = 0.2
	}

	// RequestTimeout
	if l.RequestTimeout <= 0 {
		l.RequestTimeout = 120 * time.Second
	}

	return warnings
}

func (c *AppConfig) validateEmbedding() (warnings []string) {
	e := &c.Embedding

	// BaseURL
	if e.BaseURL == "" {
		e.BaseURL = "http://localhost:8080/v1"
	}

	// Model
	if e.Model == "" {
		e.Model = "all-MiniLM-L6-v2"
	}

	// APIKeyEnv
	if e.APIKeyEnv == "" {
		e.APIKeyEnv = "EMBEDDING_API_KEY"
	}

	return warnings
}

func (c *AppConfig) validateRAG() (warnings []string, err error) {
	r := &c.RAG

	// ChunkSize
	if r.ChunkSize <= 0 {
		r.ChunkSize = 1500
	}

	// ChunkOverlap
	if r.ChunkOverlap < 0 {
		warnings = append(warnings, "rag.chunk_overlap cannot be negative, defaulting to 300")
		r.ChunkOverlap = 0
	}
	if r.ChunkOverlap == 0 {
		r.ChunkOverlap = 300
	}
	if r.ChunkOverlap >= r.ChunkSize {
		return warnings, fmt.Errorf("%w: rag.chunk_overlap (%d) must be smaller than rag.chunk_size (%d)",
			utils.ErrConfigValidation, r.ChunkOverlap, r.ChunkSize)
	}

	// TopK
	if r.TopK <= 0 {
		r.TopK = 4
	}

	return warnings, nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 45 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 2
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}

func defaultTrue(p **bool) {
	if *p == nil {
		v := true
		*p = &v
	}
}
