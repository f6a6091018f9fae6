package process

import (
	"fmt"
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"webrag/pkg/config"
	"webrag/pkg/models"
	"webrag/pkg/parse"
	"webrag/pkg/utils"
)

// PageProcessor turns fetched markup into a PageRecord: it collects the
// page's images and same-site links, strips markup the Markdown rendition
// should not carry, and converts what remains to Markdown.
type PageProcessor struct {
	fcfg config.FetchConfig
	log  *logrus.Entry
}

// NewPageProcessor creates a PageProcessor
func NewPageProcessor(fcfg config.FetchConfig, log *logrus.Entry) *PageProcessor {
	return &PageProcessor{
		fcfg: fcfg,
		log:  log,
	}
}

// Process builds the PageRecord for one fetched page. Images and internal
// links are collected from the full document (navigation included, so link
// discovery sees everything); cleanup only affects the Markdown copy. The
// record keeps the markup exactly as received.
func (pp *PageProcessor) Process(pageURL string, html string) (*models.PageRecord, error) {
	base, parseErr := url.Parse(pageURL)
	if parseErr != nil {
		return nil, fmt.Errorf("%w: page URL '%s': %v", utils.ErrParsing, pageURL, parseErr)
	}

	doc, docErr := goquery.NewDocumentFromReader(strings.NewReader(html))
	if docErr != nil {
		return nil, fmt.Errorf("%w: HTML for '%s': %v", utils.ErrParsing, pageURL, docErr)
	}

	pageLog := pp.log.WithField("url", pageURL)
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		pageLog = pageLog.WithField("page_title", title)
	}
	pageLog.Debug("Processing fetched markup...")

	images := collectImages(doc, base)
	links := collectInternalLinks(doc, base)

	content := doc.Find("body")
	if content.Length() == 0 {
		content = doc.Selection
	}
	// Clone so cleanup never touches the markup kept on the record
	content = content.Clone()

	cleanupHTML(content)
	if pp.fcfg.ExcludeExternalLinks != nil && *pp.fcfg.ExcludeExternalLinks {
		unwrapExternalLinks(content, base)
	}
	pruneSparseBlocks(content, pp.fcfg.WordCountThreshold)

	cleanedHTML, outerErr := goquery.OuterHtml(content)
	if outerErr != nil {
		return nil, fmt.Errorf("failed getting cleaned HTML for '%s': %w", pageURL, outerErr)
	}

	converter := md.NewConverter("", true, nil)
	markdown, convertErr := converter.ConvertString(cleanedHTML)
	if convertErr != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrMarkdownConversion, convertErr)
	}

	pageLog.Debugf("Processed page: %d images, %d internal links, %d bytes markdown", len(images), len(links), len(markdown))

	return &models.PageRecord{
		URL:           pageURL,
		Content:       markdown,
		HTML:          html,
		Images:        images,
		InternalLinks: links,
	}, nil
}

// collectImages lists the page's images in document order. Sources are
// resolved against the page URL; srcless tags and data: URIs are skipped.
func collectImages(doc *goquery.Document, base *url.URL) []models.ImageRef {
	var images []models.ImageRef
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		src = strings.TrimSpace(src)
		if src == "" || strings.HasPrefix(src, "data:") {
			return
		}
		resolved, resolveErr := base.Parse(src)
		if resolveErr != nil {
			return
		}
		alt, _ := s.Attr("alt")
		images = append(images, models.ImageRef{
			Src: resolved.String(),
			Alt: strings.TrimSpace(alt),
		})
	})
	return images
}

// collectInternalLinks lists same-site anchor targets in document order,
// normalized and deduplicated by target URL. The anchor text of the first
// occurrence wins.
func collectInternalLinks(doc *goquery.Document, base *url.URL) []models.LinkRef {
	var links []models.LinkRef
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		resolved, ok := parse.ResolveHref(base, href)
		if !ok || !parse.SameHost(base, resolved) {
			return
		}
		normalized := parse.NormalizeURL(resolved)
		if _, dup := seen[normalized]; dup {
			return
		}
		seen[normalized] = struct{}{}
		links = append(links, models.LinkRef{
			Href: normalized,
			Text: strings.TrimSpace(s.Text()),
		})
	})
	return links
}

// cleanupHTML removes markup that should not survive into the Markdown
// rendition: scripts, styles, navigation landmarks, and framework noise
// like Sphinx headerlinks (the ¶ symbols after headings).
func cleanupHTML(content *goquery.Selection) {
	content.Find("script, style, noscript").Remove()
	content.Find("nav, aside, footer").Remove()

	// Sphinx/Pallets headerlink anchors and common permalink patterns
	content.Find("a.headerlink").Remove()
	content.Find("a.edit-on-github").Remove()
	content.Find("a.permalink").Remove()
	content.Find("a[title='Permalink to this heading']").Remove()
	content.Find("a[title='Link to this heading']").Remove()

	// Remove empty anchor tags that might remain
	content.Find("a").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		href, _ := s.Attr("href")
		if text == "¶" || text == "#" || (text == "" && strings.HasPrefix(href, "#")) {
			s.Remove()
		}
	})
}

// unwrapExternalLinks replaces anchors that point off-site with their
// children, so the text survives in the Markdown without a hyperlink.
func unwrapExternalLinks(content *goquery.Selection, base *url.URL) {
	content.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		resolved, ok := parse.ResolveHref(base, href)
		if !ok {
			// Fragments, mailto: and friends are not page links
			return
		}
		if parse.SameHost(base, resolved) {
			return
		}
		s.ReplaceWithNodes(s.Contents().Nodes...)
	})
}

// pruneSparseBlocks removes text blocks with fewer words than the
// threshold. Blocks that carry images are kept regardless.
func pruneSparseBlocks(content *goquery.Selection, threshold int) {
	if threshold <= 0 {
		return
	}
	content.Find("p, li, blockquote, figcaption").Each(func(_ int, s *goquery.Selection) {
		if s.Find("img").Length() > 0 {
			return
		}
		if len(strings.Fields(s.Text())) < threshold {
			s.Remove()
		}
	})
}
