package crawler

import (
	"fmt"
	"strings"
	"time"

	"webrag/pkg/models"
)

// CombineMarkdown concatenates the pages of a crawl into the single corpus
// the retrieval pipeline chunks, one `# {url}` section per page.
func CombineMarkdown(pages []models.PageRecord) string {
	var b strings.Builder
	for _, page := range pages {
		fmt.Fprintf(&b, "# %s\n\n%s\n\n", page.URL, page.Content)
	}
	return b.String()
}

// CombineHTML concatenates the raw markup of every page, each introduced by
// an `<h1>` carrying its URL
func CombineHTML(pages []models.PageRecord) string {
	var b strings.Builder
	for _, page := range pages {
		fmt.Fprintf(&b, "<h1>%s</h1>\n\n%s\n\n", page.URL, page.HTML)
	}
	return b.String()
}

// CombineExtractions builds the corpus for an LLM-mode crawl. Records
// flagged as errors are skipped; a record without a tag is titled "No Tag".
func CombineExtractions(records []models.ExtractionRecord) string {
	var b strings.Builder
	for _, record := range records {
		if record.Error {
			continue
		}
		tag := record.Tag
		if tag == "" {
			tag = "No Tag"
		}
		fmt.Fprintf(&b, "# **%s**\n%s\n\n", tag, strings.Join(record.Content, "\n"))
	}
	return b.String()
}

// BuildStats summarizes a finished crawl. Markdown mode gets a per-page
// breakdown; LLM mode counts every extraction record (errored ones
// included) and takes its media counts from the single fetched page.
func BuildStats(outcome models.CrawlOutcome, duration time.Duration) models.CrawlStats {
	stats := models.CrawlStats{Duration: duration}

	switch {
	case outcome.IsPages():
		stats.TotalPages = outcome.Pages.TotalPages
		stats.PerPage = make([]models.PageStat, 0, len(outcome.Pages.Pages))
		for _, page := range outcome.Pages.Pages {
			stats.PerPage = append(stats.PerPage, models.PageStat{
				URL:        page.URL,
				ImageCount: len(page.Images),
				LinkCount:  len(page.InternalLinks),
			})
			stats.TotalImages += len(page.Images)
			stats.TotalLinks += len(page.InternalLinks)
		}
	case outcome.IsExtractions():
		stats.TotalExtractions = len(outcome.Extractions)
		if outcome.SourcePage != nil {
			stats.TotalImages = len(outcome.SourcePage.Images)
			stats.TotalLinks = len(outcome.SourcePage.InternalLinks)
		}
	}
	return stats
}
