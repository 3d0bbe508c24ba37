package brave

import (
	"context"
	"fmt"
	"net/url"

	"github.com/mohammad-safakhou/researcher/internal/helpers"
	"github.com/mohammad-safakhou/researcher/tools/web_search"
	"github.com/mohammad-safakhou/researcher/tools/web_search/models"
)

const defaultEndpoint = "https://api.search.brave.com/res/v1/web/search"

type Search struct {
	ApiKey   string
	Endpoint string
	Client   *web_search.JSONClient
}

func (s Search) Search(ctx context.Context, q string, k int) ([]models.Result, error) {
	if s.ApiKey == "" {
		return nil, fmt.Errorf("brave: %w", web_search.ErrMissingCredentials)
	}
	// https://api.search.brave.com/app/documentation/web-search; count caps at 20
	count := k
	if count <= 0 || count > 20 {
		count = 20
	}
	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	u := fmt.Sprintf("%s?q=%s&count=%d", endpoint, url.QueryEscape(q), count)
	var raw struct {
		Web struct {
			Results []struct {
				Title   string `json:"title"`
				URL     string `json:"url"`
				Snippet string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	client := s.Client
	if client == nil {
		client = web_search.DefaultClient(0)
	}
	if err := client.DoJSON(ctx, "GET", u, map[string]string{"X-Subscription-Token": s.ApiKey}, nil, &raw); err != nil {
		return nil, fmt.Errorf("brave: %w", err)
	}
	var out []models.Result
	for _, r := range raw.Web.Results {
		if k > 0 && len(out) >= k {
			break
		}
		out = append(out, models.Result{Title: helpers.PlainText(r.Title), URL: r.URL, Snippet: helpers.PlainText(r.Snippet)})
	}
	return out, nil
}
