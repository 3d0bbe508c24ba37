package serper

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/researcher/tools/web_search"
	"github.com/mohammad-safakhou/researcher/tools/web_search/models"
)

const defaultEndpoint = "https://google.serper.dev/search"

type Search struct {
	ApiKey   string
	Endpoint string
	Client   *web_search.JSONClient
}

func (s Search) Search(ctx context.Context, q string, k int) ([]models.Result, error) {
	if s.ApiKey == "" {
		return nil, fmt.Errorf("serper: %w", web_search.ErrMissingCredentials)
	}
	// https://serper.dev/ docs
	payload := map[string]any{"q": q}
	if k > 0 {
		payload["num"] = k
	}
	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	var raw struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}
	client := s.Client
	if client == nil {
		client = web_search.DefaultClient(0)
	}
	if err := client.DoJSON(ctx, "POST", endpoint, map[string]string{"X-API-KEY": s.ApiKey}, payload, &raw); err != nil {
		return nil, fmt.Errorf("serper: %w", err)
	}
	var out []models.Result
	for _, it := range raw.Organic {
		if k > 0 && len(out) >= k {
			break
		}
		out = append(out, models.Result{Title: it.Title, URL: it.Link, Snippet: it.Snippet})
	}
	return out, nil
}
