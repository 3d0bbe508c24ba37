package web_search_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mohammad-safakhou/researcher/tools/web_search"
	"github.com/mohammad-safakhou/researcher/tools/web_search/brave"
	"github.com/mohammad-safakhou/researcher/tools/web_search/google"
	"github.com/mohammad-safakhou/researcher/tools/web_search/serper"
)

func testClient() *web_search.JSONClient {
	return web_search.NewJSONClient(&http.Client{Timeout: 2 * time.Second}, 2, time.Millisecond)
}

func TestGoogleSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("key") != "k" || q.Get("cx") != "cx" || q.Get("q") != "go" || q.Get("num") != "10" {
			t.Errorf("unexpected query %v", q)
		}
		_, _ = w.Write([]byte(`{"items":[{"title":"Go","link":"https://go.dev","snippet":"lang"}]}`))
	}))
	defer srv.Close()

	s := google.Search{ApiKey: "k", CSEID: "cx", Endpoint: srv.URL, Client: testClient()}
	got, err := s.Search(context.Background(), "go", 50)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].URL != "https://go.dev" || got[0].Snippet != "lang" {
		t.Fatalf("unexpected results %+v", got)
	}
}

func TestGoogleSearchMissingCredentials(t *testing.T) {
	_, err := google.Search{ApiKey: "k"}.Search(context.Background(), "go", 10)
	if !errors.Is(err, web_search.ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
}

func TestBraveSearchRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Subscription-Token") != "bk" {
			t.Errorf("missing subscription token")
		}
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"web":{"results":[{"title":"<b>A</b>","url":"https://a.example","description":"x &amp; y"},{"title":"B","url":"https://b.example"}]}}`))
	}))
	defer srv.Close()

	got, err := brave.Search{ApiKey: "bk", Endpoint: srv.URL, Client: testClient()}.Search(context.Background(), "q", 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].Title != "A" || got[0].Snippet != "x & y" {
		t.Fatalf("unexpected results %+v", got)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected one retry, got %d calls", calls)
	}
}

func TestSerperSearchDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad key", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := serper.Search{ApiKey: "sk", Endpoint: srv.URL, Client: testClient()}.Search(context.Background(), "q", 5)
	var se *web_search.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusForbidden {
		t.Fatalf("expected 403 StatusError, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("4xx must not be retried, got %d calls", calls)
	}
}

func TestSerperSearchPostsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("X-API-KEY") != "sk" {
			t.Errorf("unexpected request %s", r.Method)
		}
		_, _ = w.Write([]byte(`{"organic":[{"title":"T","link":"https://t.example","snippet":"s"}]}`))
	}))
	defer srv.Close()

	got, err := serper.Search{ApiKey: "sk", Endpoint: srv.URL, Client: testClient()}.Search(context.Background(), "q", 5)
	if err != nil || len(got) != 1 || got[0].URL != "https://t.example" {
		t.Fatalf("unexpected %+v, %v", got, err)
	}
}
