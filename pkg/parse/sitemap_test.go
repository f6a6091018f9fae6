package parse

import (
	"fmt"
	"testing"
)

const urlsetDoc = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="` + SitemapNamespace + `">
  <url><loc>https://example.com/</loc></url>
  <url><loc>https://example.com/docs</loc><lastmod>2024-01-15</lastmod></url>
  <url><loc>https://example.com/about</loc></url>
</urlset>`

const indexDoc = `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="` + SitemapNamespace + `">
  <sitemap><loc>https://example.com/sitemap-pages.xml</loc></sitemap>
  <sitemap><loc>https://example.com/sitemap-blog.xml</loc><lastmod>2024-02-01</lastmod></sitemap>
</sitemapindex>`

func TestIsSitemapIndex(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"Index", indexDoc, true},
		{"URLSet", urlsetDoc, false},
		{"UppercaseElement", `<SITEMAPINDEX></SITEMAPINDEX>`, true},
		{"Empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSitemapIndex([]byte(tt.body)); got != tt.want {
				t.Errorf("IsSitemapIndex() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestURLSetLocs_DocumentOrder(t *testing.T) {
	locs, err := URLSetLocs([]byte(urlsetDoc))
	if err != nil {
		t.Fatalf("URLSetLocs() error = %v", err)
	}
	want := []string{"https://example.com/", "https://example.com/docs", "https://example.com/about"}
	if len(locs) != len(want) {
		t.Fatalf("URLSetLocs() returned %d locs, want %d", len(locs), len(want))
	}
	for i := range want {
		if locs[i] != want[i] {
			t.Errorf("locs[%d] = %q, want %q", i, locs[i], want[i])
		}
	}
}

func TestURLSetLocs_SkipsBlankLoc(t *testing.T) {
	doc := `<urlset><url><loc>  </loc></url><url><loc>https://example.com/a</loc></url></urlset>`
	locs, err := URLSetLocs([]byte(doc))
	if err != nil {
		t.Fatalf("URLSetLocs() error = %v", err)
	}
	if len(locs) != 1 || locs[0] != "https://example.com/a" {
		t.Errorf("URLSetLocs() = %v, want single non-blank loc", locs)
	}
}

func TestURLSetLocs_MalformedXML(t *testing.T) {
	_, err := URLSetLocs([]byte(`<urlset><url><loc>unclosed`))
	if err == nil {
		t.Fatal("URLSetLocs() on malformed XML expected error, got nil")
	}
}

func TestSitemapIndexLocs(t *testing.T) {
	locs, err := SitemapIndexLocs([]byte(indexDoc))
	if err != nil {
		t.Fatalf("SitemapIndexLocs() error = %v", err)
	}
	want := []string{"https://example.com/sitemap-pages.xml", "https://example.com/sitemap-blog.xml"}
	if len(locs) != len(want) {
		t.Fatalf("SitemapIndexLocs() returned %d locs, want %d", len(locs), len(want))
	}
	for i := range want {
		if locs[i] != want[i] {
			t.Errorf("locs[%d] = %q, want %q", i, locs[i], want[i])
		}
	}
}

func TestSitemapIndexLocs_ManyEntries(t *testing.T) {
	body := `<sitemapindex>`
	for i := 0; i < 25; i++ {
		body += fmt.Sprintf("<sitemap><loc>https://example.com/sm-%d.xml</loc></sitemap>", i)
	}
	body += `</sitemapindex>`

	locs, err := SitemapIndexLocs([]byte(body))
	if err != nil {
		t.Fatalf("SitemapIndexLocs() error = %v", err)
	}
	if len(locs) != 25 {
		t.Errorf("SitemapIndexLocs() returned %d locs, want 25", len(locs))
	}
}

func TestTextSitemapLines(t *testing.T) {
	body := "https://example.com/\n\nhttps://example.com/docs\r\n   \nhttps://example.com/about\n"
	lines := TextSitemapLines([]byte(body))
	want := []string{"https://example.com/", "https://example.com/docs", "https://example.com/about"}
	if len(lines) != len(want) {
		t.Fatalf("TextSitemapLines() returned %d lines, want %d: %v", len(lines), len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("lines[%d] = %q, want %q", i, lines[i], want[i])
		}
	}
}
