package config

import (
	"os"
	"time"

	"webrag/pkg/models"
)

// CrawlConfig controls page discovery and crawl scheduling
type CrawlConfig struct {
	DiscoveryLimit       int           `yaml:"discovery_limit,omitempty"`        // Max pages collected during deep discovery
	MaxConcurrentFetches int           `yaml:"max_concurrent_fetches,omitempty"` // Concurrent page fetches per crawl
	SitemapTimeout       time.Duration `yaml:"sitemap_timeout,omitempty"`        // Per-request timeout while probing sitemap candidates
	DelayPerHost         time.Duration `yaml:"delay_per_host,omitempty"`         // Minimum spacing between requests to the same host
	RespectRobots        bool          `yaml:"respect_robots,omitempty"`
}

// FetchConfig controls how individual pages are rendered and fetched
// Boolean knobs use pointers so YAML can distinguish "unset" from "false"; Validate materializes the defaults
type FetchConfig struct {
	Browser              bool          `yaml:"browser,omitempty"` // Render pages with a headless browser instead of plain HTTP
	Headless             *bool         `yaml:"headless,omitempty"`
	PageTimeout          time.Duration `yaml:"page_timeout,omitempty"`
	ScanFullPage         *bool         `yaml:"scan_full_page,omitempty"` // Scroll to the bottom to force lazy content to load
	ScrollDelay          time.Duration `yaml:"scroll_delay,omitempty"`
	SettleDelay          time.Duration `yaml:"settle_delay,omitempty"` // Wait after load before capturing HTML
	WaitForImages        *bool         `yaml:"wait_for_images,omitempty"`
	SimulateUser         *bool         `yaml:"simulate_user,omitempty"` // Issue synthetic mouse movement before capture
	OverrideNavigator    *bool         `yaml:"override_navigator,omitempty"`
	RemoveOverlays       *bool         `yaml:"remove_overlays,omitempty"` // Strip fixed-position overlays and cookie banners
	ProcessIframes       *bool         `yaml:"process_iframes,omitempty"` // Inline same-origin iframe content into the page body
	AdjustViewport       *bool         `yaml:"adjust_viewport,omitempty"`
	ExcludeExternalLinks *bool         `yaml:"exclude_external_links,omitempty"` // Drop off-site links from the markdown rendering
	WordCountThreshold   int           `yaml:"word_count_threshold,omitempty"`   // Minimum words for a text block to survive markdown conversion
}

// CacheConfig controls the on-disk page cache
type CacheConfig struct {
	Mode models.CacheMode `yaml:"mode,omitempty"`
	Dir  string           `yaml:"dir,omitempty"`
}

// LLMConfig holds settings for the chat/extraction model endpoint
type LLMConfig struct {
	BaseURL             string        `yaml:"base_url,omitempty"`
	Model               string        `yaml:"model,omitempty"`
	APIKeyEnv           string        `yaml:"api_key_env,omitempty"` // Environment variable holding the API key
	Temperature         float64       `yaml:"temperature,omitempty"`
	MaxTokens           int           `yaml:"max_tokens,omitempty"`
	TopP                float64       `yaml:"top_p,omitempty"`
	ChunkTokenThreshold int           `yaml:"chunk_token_threshold,omitempty"` // Token window size for LLM extraction
	OverlapRate         float64       `yaml:"overlap_rate,omitempty"`          // Fraction of the window shared between consecutive extraction chunks
	RequestTimeout      time.Duration `yaml:"request_timeout,omitempty"`
}

// EmbeddingConfig holds settings for the embedding model endpoint
type EmbeddingConfig struct {
	BaseURL   string `yaml:"base_url,omitempty"`
	Model     string `yaml:"model,omitempty"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
}

// RAGConfig controls chunking and retrieval
type RAGConfig struct {
	ChunkSize    int `yaml:"chunk_size,omitempty"`    // Characters per chunk
	ChunkOverlap int `yaml:"chunk_overlap,omitempty"` // Characters shared between consecutive chunks
	TopK         int `yaml:"top_k,omitempty"`         // Documents retrieved per question
}

// AppConfig holds the global application configuration
type AppConfig struct {
	UserAgent          string           `yaml:"user_agent,omitempty"`
	Crawl              CrawlConfig      `yaml:"crawl,omitempty"`
	Fetch              FetchConfig      `yaml:"fetch,omitempty"`
	Cache              CacheConfig      `yaml:"cache,omitempty"`
	LLM                LLMConfig        `yaml:"llm,omitempty"`
	Embedding          EmbeddingConfig  `yaml:"embedding,omitempty"`
	RAG                RAGConfig        `yaml:"rag,omitempty"`
	MaxRetries         int              `yaml:"max_retries,omitempty"`
	InitialRetryDelay  time.Duration    `yaml:"initial_retry_delay,omitempty"`
	MaxRetryDelay      time.Duration    `yaml:"max_retry_delay,omitempty"`
	HTTPClientSettings HTTPClientConfig `yaml:"http_client_settings,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // Explicitly enable/disable HTTP/2 attempt (use pointer for tri-state: nil=default, true=force, false=disable)
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
}

// KnownChatModels lists the Groq-hosted chat models the tool has been run against
// Other model names are accepted with a validation warning
var KnownChatModels = []string{
	"deepseek-r1-distill-llama-70b",
	"mixtral-8x7b-32768",
	"llama3-70b-8192",
	"llama-3.3-70b-specdec",
	"llama-3.3-70b-versatile",
}

// IsKnownChatModel reports whether name appears in KnownChatModels
func IsKnownChatModel(name string) bool {
	for _, m := range KnownChatModels {
		if m == name {
			return true
		}
	}
	return false
}

// ResolveAPIKey reads the chat API key from the configured environment variable
func (c *LLMConfig) ResolveAPIKey() string {
	return os.Getenv(c.APIKeyEnv)
}

// ResolveAPIKey reads the embedding API key from the configured environment variable
// Local embedding servers typically need none; callers substitute a placeholder token when empty
func (c *EmbeddingConfig) ResolveAPIKey() string {
	return os.Getenv(c.APIKeyEnv)
}
