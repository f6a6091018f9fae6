package models

// CrawlMode selects what a crawl produces and how far it reaches
type CrawlMode string

const (
	// ModeMarkdownBase fetches only the given page and builds a markdown corpus
	ModeMarkdownBase CrawlMode = "markdown-base"
	// ModeMarkdownDeep crawls the whole site (sitemap or link discovery)
	// and builds a markdown corpus
	ModeMarkdownDeep CrawlMode = "markdown-deep"
	// ModeLLM fetches only the given page and runs structured LLM extraction
	ModeLLM CrawlMode = "llm"
)

// String returns the string representation of the crawl mode
func (m CrawlMode) String() string {
	return string(m)
}

// IsValid checks if the crawl mode is one of the defined constants
func (m CrawlMode) IsValid() bool {
	switch m {
	case ModeMarkdownBase, ModeMarkdownDeep, ModeLLM:
		return true
	default:
		return false
	}
}

// DeepCrawl reports whether this mode walks beyond the given page
func (m CrawlMode) DeepCrawl() bool {
	return m == ModeMarkdownDeep
}
