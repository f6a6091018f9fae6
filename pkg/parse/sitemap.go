package parse

import (
	"encoding/xml"
	"fmt"
	"strings"

	"webrag/pkg/utils"
)

// SitemapNamespace is the standard sitemap protocol namespace
const SitemapNamespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

// --- XML Structs for Sitemap Parsing ---

// XMLURL represents a <url> element in a sitemap
type XMLURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// XMLURLSet represents a <urlset> element in a sitemap
type XMLURLSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []XMLURL `xml:"url"`
}

// XMLSitemap represents a <sitemap> element in a sitemap index file
type XMLSitemap struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// XMLSitemapIndex represents a <sitemapindex> element
type XMLSitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Sitemaps []XMLSitemap `xml:"sitemap"`
}

// IsSitemapIndex reports whether the body looks like a sitemap index file.
// Matches on the element name anywhere in the content, case-insensitive,
// before committing to a full parse.
func IsSitemapIndex(body []byte) bool {
	return strings.Contains(strings.ToLower(string(body)), "sitemapindex")
}

// SitemapIndexLocs parses body as a sitemap index and returns the <loc> of
// every nested sitemap, in document order
func SitemapIndexLocs(body []byte) ([]string, error) {
	var index XMLSitemapIndex
	if err := xml.Unmarshal(body, &index); err != nil {
		return nil, fmt.Errorf("%w: sitemap index XML: %w", utils.ErrParsing, err)
	}
	locs := make([]string, 0, len(index.Sitemaps))
	for _, sm := range index.Sitemaps {
		if loc := strings.TrimSpace(sm.Loc); loc != "" {
			locs = append(locs, loc)
		}
	}
	return locs, nil
}

// URLSetLocs parses body as a urlset sitemap and returns every <loc>, in
// document order
func URLSetLocs(body []byte) ([]string, error) {
	var urlset XMLURLSet
	if err := xml.Unmarshal(body, &urlset); err != nil {
		return nil, fmt.Errorf("%w: sitemap urlset XML: %w", utils.ErrParsing, err)
	}
	locs := make([]string, 0, len(urlset.URLs))
	for _, u := range urlset.URLs {
		if loc := strings.TrimSpace(u.Loc); loc != "" {
			locs = append(locs, loc)
		}
	}
	return locs, nil
}

// TextSitemapLines splits a plain-text sitemap body into its non-blank lines
func TextSitemapLines(body []byte) []string {
	lines := strings.Split(string(body), "\n")
	urls := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			urls = append(urls, trimmed)
		}
	}
	return urls
}
