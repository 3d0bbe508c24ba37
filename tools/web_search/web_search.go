package web_search

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mohammad-safakhou/researcher/tools/web_search/models"
)

// WebSearcher returns up to limit organic results for query.
type WebSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.Result, error)
}

type Provider string

const (
	DuckDuckGoProvider Provider = "duckduckgo"
	GoogleProvider     Provider = "google"
	SerperProvider     Provider = "serper"
	BraveProvider      Provider = "brave"
)

var (
	ErrUnsupportedProvider = errors.New("unsupported provider")
	// ErrMissingCredentials is returned by keyed backends called without keys.
	ErrMissingCredentials = errors.New("search credentials not configured")
)

// DefaultClient is the JSON client shared by the keyed backends.
func DefaultClient(timeout time.Duration) *JSONClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return NewJSONClient(&http.Client{Timeout: timeout}, 2, 300*time.Millisecond)
}
