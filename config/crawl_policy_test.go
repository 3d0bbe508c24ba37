package config

import "testing"

func TestCrawlPolicyNormalize(t *testing.T) {
	cfg := CrawlPolicyConfig{
		Allow:    []string{"Example.com", "https://news.example.com/path", "  "},
		Disallow: []string{"www.Bad.com", "bad.com"},
	}

	norm := cfg.Normalize()
	if len(norm.Allow) != 2 || norm.Allow[0] != "example.com" || norm.Allow[1] != "news.example.com" {
		t.Fatalf("unexpected allow list: %#v", norm.Allow)
	}
	if len(norm.Disallow) != 1 || norm.Disallow[0] != "bad.com" {
		t.Fatalf("unexpected disallow list: %#v", norm.Disallow)
	}
}

func TestCrawlPolicyValidate(t *testing.T) {
	valid := CrawlPolicyConfig{Allow: []string{"example.com"}, Disallow: []string{"blocked.com"}}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}

	conflict := CrawlPolicyConfig{Allow: []string{"example.com"}, Disallow: []string{"www.example.com"}}
	if err := conflict.Validate(); err == nil {
		t.Fatalf("expected conflict validation error")
	}
}

func TestCrawlPolicyPermits(t *testing.T) {
	open := CrawlPolicyConfig{Disallow: []string{"paywall.com"}}.Normalize()
	cases := []struct {
		url  string
		want bool
	}{
		{"https://go.dev/doc", true},
		{"https://paywall.com/a", false},
		{"https://www.paywall.com/a", false},
		{"https://news.paywall.com:8443/a", false},
		{"https://notpaywall.com/a", true},
		{"", false},
	}
	for _, tc := range cases {
		if got := open.Permits(tc.url); got != tc.want {
			t.Fatalf("Permits(%q) = %v, want %v", tc.url, got, tc.want)
		}
	}

	allowOnly := CrawlPolicyConfig{Allow: []string{"go.dev"}}.Normalize()
	if !allowOnly.Permits("https://pkg.go.dev/x") {
		t.Fatalf("expected subdomain of allowed host to pass")
	}
	if allowOnly.Permits("https://example.com") {
		t.Fatalf("expected host outside allow list to be refused")
	}
}
