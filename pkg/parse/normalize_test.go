package parse

import (
	"net/url"
	"testing"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse(%q) error = %v", raw, err)
	}
	return u
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"LowercaseSchemeHost", "HTTPS://EXAMPLE.com/Page", "https://example.com/Page"},
		{"StripDefaultHTTPPort", "http://example.com:80/docs", "http://example.com/docs"},
		{"StripDefaultHTTPSPort", "https://example.com:443/docs", "https://example.com/docs"},
		{"KeepNonDefaultPort", "https://example.com:8443/docs", "https://example.com:8443/docs"},
		{"EmptyPathBecomesRoot", "https://example.com", "https://example.com/"},
		{"TrailingSlashRemoved", "https://example.com/docs/", "https://example.com/docs"},
		{"RootSlashKept", "https://example.com/", "https://example.com/"},
		{"FragmentStripped", "https://example.com/page#section", "https://example.com/page"},
		{"QueryStripped", "https://example.com/search?q=go", "https://example.com/search"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeURL(mustParse(t, tt.input))
			if got != tt.want {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeURL_Nil(t *testing.T) {
	if got := NormalizeURL(nil); got != "" {
		t.Errorf("NormalizeURL(nil) = %q, want empty string", got)
	}
}

func TestNormalizeURL_DoesNotMutateInput(t *testing.T) {
	u := mustParse(t, "https://example.com/docs/#frag")
	_ = NormalizeURL(u)
	if u.Fragment != "frag" {
		t.Errorf("input fragment mutated: %q", u.Fragment)
	}
	if u.Path != "/docs/" {
		t.Errorf("input path mutated: %q", u.Path)
	}
}

func TestParseAndNormalize(t *testing.T) {
	norm, parsed, err := ParseAndNormalize("https://Example.COM/docs/")
	if err != nil {
		t.Fatalf("ParseAndNormalize() error = %v", err)
	}
	if norm != "https://example.com/docs" {
		t.Errorf("normalized = %q, want %q", norm, "https://example.com/docs")
	}
	if parsed.Host != "Example.COM" {
		t.Errorf("parsed.Host = %q, want original host preserved", parsed.Host)
	}
}

func TestParseAndNormalize_RejectsSchemeless(t *testing.T) {
	if _, _, err := ParseAndNormalize("example.com/docs"); err == nil {
		t.Fatal("ParseAndNormalize() on schemeless URL expected error, got nil")
	}
}

func TestResolveHref(t *testing.T) {
	base := mustParse(t, "https://example.com/docs/intro")
	tests := []struct {
		name string
		href string
		want string
	}{
		{"Absolute", "https://example.com/about", "https://example.com/about"},
		{"RootRelative", "/pricing", "https://example.com/pricing"},
		{"Relative", "setup", "https://example.com/docs/setup"},
		{"ParentRelative", "../faq", "https://example.com/faq"},
		{"ProtocolRelative", "//cdn.example.com/asset", "https://cdn.example.com/asset"},
		{"WhitespacePadded", "  /padded  ", "https://example.com/padded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveHref(base, tt.href)
			if !ok {
				t.Fatalf("ResolveHref(%q) not ok", tt.href)
			}
			if got.String() != tt.want {
				t.Errorf("ResolveHref(%q) = %q, want %q", tt.href, got.String(), tt.want)
			}
		})
	}
}

func TestResolveHref_Rejected(t *testing.T) {
	base := mustParse(t, "https://example.com/docs")
	for _, href := range []string{"", "   ", "#section", "#", "mailto:team@example.com", "javascript:void(0)", "ftp://example.com/file"} {
		if got, ok := ResolveHref(base, href); ok {
			t.Errorf("ResolveHref(%q) = %q, expected rejection", href, got)
		}
	}
}

func TestSameHost(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want bool
	}{
		{"Identical", "https://example.com/a", "https://example.com/b", true},
		{"WWWPrefix", "https://www.example.com/a", "https://example.com/b", true},
		{"CaseInsensitive", "https://Example.COM/a", "https://example.com/b", true},
		{"DifferentHost", "https://example.com/a", "https://other.com/b", false},
		{"Subdomain", "https://docs.example.com/a", "https://example.com/b", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := mustParse(t, tt.a)
			b := mustParse(t, tt.b)
			if got := SameHost(a, b); got != tt.want {
				t.Errorf("SameHost(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
