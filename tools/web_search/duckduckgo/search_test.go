package duckduckgo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const litePage = `<table>
<tr><td><a rel="nofollow" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2Fdoc%2F&amp;rut=x" class='result-link'>Go &amp; Docs</a></td></tr>
<tr><td class='result-snippet'>The <b>Go</b> programming
 language documentation.</td></tr>
<tr><td><a rel="nofollow" href="https://duckduckgo.com/y.js?ad_provider=x" class='result-link'>Sponsored</a></td></tr>
<tr><td class='result-snippet'>ad</td></tr>
<tr><td><a rel="nofollow" href="https://pkg.go.dev/" class='result-link'>Go Packages</a></td></tr>
<tr><td class='result-snippet'>Discover packages.</td></tr>
</table>`

func TestParseResults(t *testing.T) {
	got := ParseResults(litePage)
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %+v", got)
	}
	if got[0].URL != "https://go.dev/doc/" || got[0].Title != "Go & Docs" {
		t.Fatalf("unexpected first result %+v", got[0])
	}
	if got[0].Snippet != "The Go programming language documentation." {
		t.Fatalf("unexpected snippet %q", got[0].Snippet)
	}
	if got[1].URL != "https://pkg.go.dev/" {
		t.Fatalf("unexpected second result %+v", got[1])
	}
}

func TestParseResultsPairsEachLinkWithItsOwnSnippet(t *testing.T) {
	page := `<html><body><table>
<tr><td>1.&nbsp;</td><td><a rel="nofollow" href="https://a.example/" class='result-link'><b>Go</b> tour</a></td></tr>
<tr><td>&nbsp;</td><td class='result-snippet'>snippet A</td></tr>
<tr><td>&nbsp;</td><td><span class='link-text'>a.example</span></td></tr>
<tr><td>2.&nbsp;</td><td><a rel="nofollow" href="https://c.example/" class='result-link'>No snippet</a></td></tr>
<tr><td>3.&nbsp;</td><td><a rel="nofollow" href="https://b.example/" class="result-link extra">Second</a></td></tr>
<tr><td>&nbsp;</td><td class='result-snippet'>snippet B</td></tr>
</table></body></html>`

	got := ParseResults(page)
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %+v", got)
	}
	want := []struct{ title, url, snippet string }{
		{"Go tour", "https://a.example/", "snippet A"},
		{"No snippet", "https://c.example/", ""},
		{"Second", "https://b.example/", "snippet B"},
	}
	for i, w := range want {
		if got[i].Title != w.title || got[i].URL != w.url || got[i].Snippet != w.snippet {
			t.Fatalf("result %d = %+v, want %+v", i, got[i], w)
		}
	}
}

func TestSearchPostsQueryAndRetries429(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.FormValue("q") != "golang" {
			t.Errorf("unexpected request %s q=%q", r.Method, r.FormValue("q"))
		}
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(litePage))
	}))
	defer srv.Close()

	s := Search{Client: srv.Client(), Endpoint: srv.URL, Interval: time.Millisecond}
	got, err := s.Search(context.Background(), "golang", 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 1 result after one retry, got %d results %d calls", len(got), calls)
	}
}

func TestAnswerJoinsSnippets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(litePage))
	}))
	defer srv.Close()

	s := Search{Client: srv.Client(), Endpoint: srv.URL, Interval: time.Millisecond}
	got, err := s.Answer(context.Background(), "golang")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if got != "The Go programming language documentation.\nDiscover packages." {
		t.Fatalf("unexpected answer %q", got)
	}
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	if _, err := (Search{}).Search(context.Background(), "  ", 5); err == nil {
		t.Fatalf("expected error for empty query")
	}
}
