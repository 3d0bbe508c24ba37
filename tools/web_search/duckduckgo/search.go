package duckduckgo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mohammad-safakhou/researcher/tools/web_search/models"
	"golang.org/x/net/html"
)

const (
	DefaultEndpoint  = "https://lite.duckduckgo.com/lite/"
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	maxBackoff       = 30 * time.Second
)

// rateLimit is shared by every Search value in the process.
var rateLimit struct {
	mu   sync.Mutex
	last time.Time
}

// Search scrapes the DuckDuckGo lite HTML page. It needs no credentials.
type Search struct {
	Client    *http.Client
	Endpoint  string
	UserAgent string
	// Interval is the minimum spacing between two queries; zero means one second.
	Interval time.Duration
}

func (s Search) Search(ctx context.Context, q string, k int) ([]models.Result, error) {
	if strings.TrimSpace(q) == "" {
		return nil, errors.New("duckduckgo: query is empty")
	}
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	body, err := s.fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	results := ParseResults(body)
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Answer joins the snippets of the top hits into a short text answer.
func (s Search) Answer(ctx context.Context, q string) (string, error) {
	results, err := s.Search(ctx, q, 5)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(results))
	for _, r := range results {
		if r.Snippet != "" {
			parts = append(parts, r.Snippet)
		}
	}
	return strings.Join(parts, "\n"), nil
}

func (s Search) wait(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Second
	}
	rateLimit.mu.Lock()
	if wait := time.Until(rateLimit.last.Add(interval)); wait > 0 {
		rateLimit.mu.Unlock()
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
		rateLimit.mu.Lock()
	}
	rateLimit.last = time.Now()
	rateLimit.mu.Unlock()
	return nil
}

func (s Search) fetch(ctx context.Context, q string) (string, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	ua := s.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	form := url.Values{}
	form.Set("q", q)

	var resp *http.Response
	delay := time.Second
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return "", err
		}
		req.Header.Set("User-Agent", ua)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err = client.Do(req)
		if err != nil {
			return "", fmt.Errorf("duckduckgo: %w", err)
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			break
		}
		resp.Body.Close()

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		if delay < maxBackoff {
			delay *= 2
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("duckduckgo: http %d", resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("duckduckgo: read body: %w", err)
	}
	return string(b), nil
}

// ParseResults extracts result links and their snippets from the lite page.
// A link takes the snippet cell of the rows that follow its own, up to the
// next result link. Sponsored entries point at DuckDuckGo's own redirector
// and are dropped.
func ParseResults(page string) []models.Result {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil
	}
	var out []models.Result
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" && hasClass(n, "result-link") {
			link := resolveLink(strings.TrimSpace(attr(n, "href")))
			title := collapse(textOf(n))
			if link != "" && title != "" && !strings.Contains(link, "duckduckgo.com/y.js") {
				out = append(out, models.Result{Title: title, URL: link, Snippet: snippetAfter(n)})
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}

// snippetAfter looks for td.result-snippet in the rows after the row of link.
func snippetAfter(link *html.Node) string {
	row := link.Parent
	for row != nil && !(row.Type == html.ElementNode && row.Data == "tr") {
		row = row.Parent
	}
	if row == nil {
		return ""
	}
	for next := row.NextSibling; next != nil; next = next.NextSibling {
		if next.Type != html.ElementNode || next.Data != "tr" {
			continue
		}
		if find(next, func(n *html.Node) bool { return n.Data == "a" && hasClass(n, "result-link") }) != nil {
			return ""
		}
		if td := find(next, func(n *html.Node) bool { return n.Data == "td" && hasClass(n, "result-snippet") }); td != nil {
			return collapse(textOf(td))
		}
	}
	return ""
}

func find(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if f := find(c, match); f != nil {
			return f
		}
	}
	return nil
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// textOf concatenates the text nodes under n; entities are already decoded.
func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// resolveLink unwraps //duckduckgo.com/l/?uddg=<target> redirect links.
func resolveLink(raw string) string {
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if strings.HasSuffix(u.Host, "duckduckgo.com") && u.Path == "/l/" {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
	}
	return raw
}
