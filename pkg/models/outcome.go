package models

// SitemapSource records how the crawl's URL list was obtained
type SitemapSource string

const (
	SourceBase      SitemapSource = "base"      // Single-URL crawl of the given page
	SourceSitemap   SitemapSource = "sitemap"   // URLs taken from a published sitemap
	SourceGenerated SitemapSource = "generated" // URLs discovered by BFS link traversal
	SourceFallback  SitemapSource = "fallback"  // Discovery found nothing; base URL only
)

// String implements fmt.Stringer for logging
func (s SitemapSource) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the source is a known value
func (s SitemapSource) IsValid() bool {
	switch s {
	case SourceBase, SourceSitemap, SourceGenerated, SourceFallback:
		return true
	}
	return false
}

// OutcomeKind discriminates the two CrawlOutcome variants
type OutcomeKind string

const (
	OutcomePages       OutcomeKind = "pages"       // Markdown-mode result: a CrawlResult
	OutcomeExtractions OutcomeKind = "extractions" // LLM-mode result: extraction records + usage
)

// String implements fmt.Stringer for logging
func (k OutcomeKind) String() string {
	if k == "" {
		return "unset"
	}
	return string(k)
}

// CrawlOutcome is the tagged result of one crawl: either a set of page
// records (markdown mode) or a set of extraction records with token usage
// (LLM mode). Exactly one variant is populated; use the constructors.
type CrawlOutcome struct {
	Kind        OutcomeKind        `json:"kind"`
	Pages       *CrawlResult       `json:"pages,omitempty"`
	Extractions []ExtractionRecord `json:"extractions,omitempty"`
	Usage       *UsageStats        `json:"usage,omitempty"`
	SourcePage  *PageRecord        `json:"source_page,omitempty"` // LLM mode: the single page the extraction ran on
}

// PageOutcome wraps a markdown-mode crawl result
func PageOutcome(res *CrawlResult) CrawlOutcome {
	return CrawlOutcome{Kind: OutcomePages, Pages: res}
}

// ExtractionOutcome wraps an LLM-mode extraction result. page is the
// fetched page the extraction ran on; its media counts feed the stats and
// its raw markup stands in for the combined HTML.
func ExtractionOutcome(records []ExtractionRecord, usage *UsageStats, page *PageRecord) CrawlOutcome {
	return CrawlOutcome{Kind: OutcomeExtractions, Extractions: records, Usage: usage, SourcePage: page}
}

// IsPages reports whether the outcome holds markdown-mode page records
func (o CrawlOutcome) IsPages() bool {
	return o.Kind == OutcomePages && o.Pages != nil
}

// IsExtractions reports whether the outcome holds LLM extraction records
func (o CrawlOutcome) IsExtractions() bool {
	return o.Kind == OutcomeExtractions
}
