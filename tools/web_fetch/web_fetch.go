package web_fetch

import (
	"context"
	"errors"
	"time"

	"github.com/mohammad-safakhou/researcher/tools/web_fetch/chromedp"
	webhttp "github.com/mohammad-safakhou/researcher/tools/web_fetch/http"
	"github.com/mohammad-safakhou/researcher/tools/web_fetch/models"
)

const (
	DefaultTimeout   = 30 * time.Second
	MaxCharsDefault  = 20000
	DefaultUserAgent = "researcher/1.0 (+https://github.com/mohammad-safakhou/researcher)"
)

// WebFetcher turns a URL into readable page text.
type WebFetcher interface {
	Exec(ctx context.Context, url string) (models.Result, error)
}

type FetcherType string

const (
	ChromedpFetcherType FetcherType = "chromedp"
	HTTPFetcherType     FetcherType = "http"
)

var ErrUnsupportedFetcher = errors.New("unsupported fetcher type")

func NewWebFetcher(fetcherType FetcherType, timeout time.Duration, maxChars int, userAgent string) (WebFetcher, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxChars <= 0 {
		maxChars = MaxCharsDefault
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	switch fetcherType {
	case ChromedpFetcherType:
		return &chromedp.Fetch{Timeout: timeout, MaxChars: maxChars, UserAgent: userAgent}, nil
	case HTTPFetcherType, "":
		return &webhttp.Fetch{Timeout: timeout, MaxChars: maxChars, UserAgent: userAgent}, nil
	default:
		return nil, ErrUnsupportedFetcher
	}
}
