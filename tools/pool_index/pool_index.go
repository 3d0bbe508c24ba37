// Package pool_index keeps a full-text index over the pages the agent visited.
package pool_index

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve"
	"github.com/mohammad-safakhou/researcher/internal/helpers"
)

const (
	chunkSize    = 1000
	chunkOverlap = 200
)

// chunk is the indexed document; bleve maps fields by their json names.
type chunk struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Hit is one matching page with its best highlighted fragments.
type Hit struct {
	URL       string   `json:"url"`
	Title     string   `json:"title,omitempty"`
	Score     float64  `json:"score"`
	Fragments []string `json:"fragments,omitempty"`
}

type Index struct {
	mu     sync.Mutex
	bleve  bleve.Index
	chunks map[string][]string // url -> chunk ids
}

func New() (*Index, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &Index{bleve: idx, chunks: make(map[string][]string)}, nil
}

// Add indexes text under url, replacing anything indexed for url before.
// It returns the number of chunks written.
func (i *Index) Add(url, title, text string) (int, error) {
	text = strings.TrimSpace(text)
	if url == "" || text == "" {
		return 0, nil
	}
	i.mu.Lock()
	defer i.mu.Unlock()

	for _, id := range i.chunks[url] {
		if err := i.bleve.Delete(id); err != nil {
			return 0, fmt.Errorf("delete chunk %s: %w", id, err)
		}
	}
	delete(i.chunks, url)

	prefix := sha1Hex(url)
	parts := makeChunks(text, chunkSize, chunkOverlap)
	ids := make([]string, 0, len(parts))
	for n, part := range parts {
		id := fmt.Sprintf("%s#%03d", prefix, n)
		if err := i.bleve.Index(id, chunk{URL: url, Title: title, Text: part}); err != nil {
			return len(ids), fmt.Errorf("index chunk: %w", err)
		}
		ids = append(ids, id)
	}
	i.chunks[url] = ids
	return len(ids), nil
}

// Search runs a query-string query and returns at most limit pages,
// each page represented by its best scoring chunk.
func (i *Index) Search(q string, limit int) ([]Hit, error) {
	if strings.TrimSpace(q) == "" {
		return nil, errors.New("empty query")
	}
	if limit <= 0 {
		limit = 5
	}
	req := bleve.NewSearchRequestOptions(bleve.NewQueryStringQuery(q), limit*3, 0, false)
	req.Fields = []string{"url", "title"}
	req.Highlight = bleve.NewHighlightWithStyle("html")
	req.Highlight.AddField("text")

	res, err := i.bleve.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	seen := make(map[string]struct{})
	var out []Hit
	for _, h := range res.Hits {
		url, _ := h.Fields["url"].(string)
		if url == "" {
			continue
		}
		if _, dup := seen[url]; dup {
			continue
		}
		seen[url] = struct{}{}
		title, _ := h.Fields["title"].(string)
		hit := Hit{URL: url, Title: title, Score: h.Score}
		for _, frag := range h.Fragments["text"] {
			if f := helpers.PlainText(frag); f != "" {
				hit.Fragments = append(hit.Fragments, f)
			}
		}
		out = append(out, hit)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// Len reports how many pages are indexed.
func (i *Index) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.chunks)
}

func (i *Index) Close() error {
	return i.bleve.Close()
}

func sha1Hex(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:])
}

// makeChunks splits text into windows of about approx runes overlapping by overlap.
func makeChunks(text string, approx, overlap int) []string {
	runes := []rune(text)
	if len(runes) <= approx {
		return []string{text}
	}
	var chunks []string
	for start := 0; start < len(runes); {
		end := start + approx
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
		start = end - overlap
	}
	return chunks
}
