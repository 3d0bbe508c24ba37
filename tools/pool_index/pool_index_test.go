package pool_index

import (
	"strings"
	"testing"
)

func TestMakeChunksOverlap(t *testing.T) {
	text := strings.Repeat("a", 2500)
	chunks := makeChunks(text, 1000, 200)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 1000 || len(chunks[2]) != 900 {
		t.Fatalf("unexpected chunk sizes %d %d", len(chunks[0]), len(chunks[2]))
	}
	if got := makeChunks("short", 1000, 200); len(got) != 1 || got[0] != "short" {
		t.Fatalf("unexpected short chunking %v", got)
	}
}

func TestIndexSearch(t *testing.T) {
	idx, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer idx.Close()

	if _, err := idx.Add("https://go.dev/sched", "Scheduler", "The Go scheduler uses work stealing between processors."); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := idx.Add("https://go.dev/gc", "GC", "The garbage collector is concurrent and uses a tricolor mark and sweep."); err != nil {
		t.Fatalf("Add: %v", err)
	}
	long := strings.Repeat("filler words about nothing ", 60) + "stealing appears again here"
	n, err := idx.Add("https://example.com/long", "Long", long)
	if err != nil || n < 2 {
		t.Fatalf("expected a multi-chunk page, got %d chunks, %v", n, err)
	}

	hits, err := idx.Search("stealing", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 pages, got %+v", hits)
	}
	for _, h := range hits {
		if h.URL == "https://go.dev/gc" {
			t.Fatalf("unrelated page matched: %+v", h)
		}
		if len(h.Fragments) == 0 || !strings.Contains(h.Fragments[0], "stealing") {
			t.Fatalf("expected highlighted fragment, got %+v", h)
		}
		if strings.Contains(h.Fragments[0], "<mark>") {
			t.Fatalf("markup leaked into fragment %q", h.Fragments[0])
		}
	}
}

func TestIndexReplacesPage(t *testing.T) {
	idx, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer idx.Close()

	_, _ = idx.Add("https://a.example", "A", "channels and select")
	_, _ = idx.Add("https://a.example", "A", "mutexes only")
	if idx.Len() != 1 {
		t.Fatalf("expected one page, got %d", idx.Len())
	}
	hits, err := idx.Search("channels", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("stale content still indexed: %+v", hits)
	}
	if _, err := idx.Search(" ", 5); err == nil {
		t.Fatalf("expected error for empty query")
	}
}
