package google

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/mohammad-safakhou/researcher/tools/web_search"
	"github.com/mohammad-safakhou/researcher/tools/web_search/models"
)

const defaultEndpoint = "https://www.googleapis.com/customsearch/v1"

// Search queries the Custom Search JSON API, which returns at most 10 items per call.
type Search struct {
	ApiKey   string
	CSEID    string
	Endpoint string
	Client   *web_search.JSONClient
}

func (s Search) Search(ctx context.Context, q string, k int) ([]models.Result, error) {
	if s.ApiKey == "" || s.CSEID == "" {
		return nil, fmt.Errorf("google: %w (GOOGLE_API_KEY and GOOGLE_CSE_ID)", web_search.ErrMissingCredentials)
	}
	num := k
	if num <= 0 || num > 10 {
		num = 10
	}
	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	params := url.Values{}
	params.Set("key", s.ApiKey)
	params.Set("cx", s.CSEID)
	params.Set("q", q)
	params.Set("num", strconv.Itoa(num))

	var raw struct {
		Items []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"items"`
	}
	client := s.Client
	if client == nil {
		client = web_search.DefaultClient(0)
	}
	if err := client.DoJSON(ctx, "GET", endpoint+"?"+params.Encode(), nil, nil, &raw); err != nil {
		return nil, fmt.Errorf("google: %w", err)
	}
	out := make([]models.Result, 0, len(raw.Items))
	for _, it := range raw.Items {
		out = append(out, models.Result{Title: it.Title, URL: it.Link, Snippet: it.Snippet})
	}
	return out, nil
}
