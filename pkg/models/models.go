package models

import "time"

// ImageRef describes one image found on a fetched page
type ImageRef struct {
	Src string `json:"src"`
	Alt string `json:"alt,omitempty"`
}

// LinkRef describes one internal link found on a fetched page
type LinkRef struct {
	Href string `json:"href"`
	Text string `json:"text,omitempty"`
}

// PageRecord is the uniform result of one successful page fetch.
// Immutable after creation; owned by the CrawlResult it belongs to.
type PageRecord struct {
	URL           string     `json:"url"`
	Content       string     `json:"content"` // Markdown-normalized page text
	HTML          string     `json:"html"`    // Raw markup as fetched/rendered
	Images        []ImageRef `json:"images,omitempty"`
	InternalLinks []LinkRef  `json:"links,omitempty"`
}

// CrawlResult is the normalized result set of one markdown-mode crawl.
// Invariant: TotalPages == len(Pages) and Pages contains no duplicate URLs.
type CrawlResult struct {
	BaseURL       string        `json:"base_url"`
	Pages         []PageRecord  `json:"pages"`
	TotalPages    int           `json:"total_pages"`
	SitemapSource SitemapSource `json:"sitemap_source"`
}

// ExtractionRecord is one tagged content block produced by LLM extraction.
// Records with Error=true are excluded from downstream aggregation.
type ExtractionRecord struct {
	Tag     string   `json:"tag"`
	Content []string `json:"content"`
	Error   bool     `json:"error,omitempty"`
}

// RequestUsage is the token usage of a single extraction request
type RequestUsage struct {
	Request          int `json:"request"` // 1-based request number
	CompletionTokens int `json:"completion"`
	PromptTokens     int `json:"prompt"`
	TotalTokens      int `json:"total"`
}

// UsageStats accumulates token usage across all extraction calls of one
// crawl session, plus the ordered per-request history
type UsageStats struct {
	CompletionTokens int            `json:"completion"`
	PromptTokens     int            `json:"prompt"`
	TotalTokens      int            `json:"total"`
	History          []RequestUsage `json:"history,omitempty"`
}

// Record adds one request's usage to the running totals and appends it to
// the history. Totals only ever grow.
func (u *UsageStats) Record(completion, prompt, total int) {
	u.CompletionTokens += completion
	u.PromptTokens += prompt
	u.TotalTokens += total
	u.History = append(u.History, RequestUsage{
		Request:          len(u.History) + 1,
		CompletionTokens: completion,
		PromptTokens:     prompt,
		TotalTokens:      total,
	})
}

// Requests returns the number of extraction requests recorded so far
func (u *UsageStats) Requests() int {
	return len(u.History)
}

// HeaderRef is one (level, title) element of a chunk's header ancestry
type HeaderRef struct {
	Level int    `json:"level"`
	Title string `json:"title"`
}

// Chunk is one bounded-size span of corpus text, the unit of retrieval.
// Never mutated after creation.
type Chunk struct {
	Text         string      `json:"text"`
	HeaderPath   []HeaderRef `json:"header_path,omitempty"`
	SourceOffset int         `json:"source_offset"` // Rune offset of Text's start in the original input
}

// PageStat is one row of the per-page crawl statistics
type PageStat struct {
	URL        string `json:"url"`
	ImageCount int    `json:"images"`
	LinkCount  int    `json:"links"`
}

// CrawlStats summarizes a finished crawl for reporting
type CrawlStats struct {
	PerPage          []PageStat    `json:"per_page,omitempty"`
	TotalPages       int           `json:"total_pages,omitempty"`
	TotalExtractions int           `json:"total_extractions,omitempty"` // LLM mode only
	TotalImages      int           `json:"total_images"`
	TotalLinks       int           `json:"total_links"`
	Duration         time.Duration `json:"duration"`
}
