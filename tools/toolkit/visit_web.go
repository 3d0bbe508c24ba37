package toolkit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/researcher/config"
	"github.com/mohammad-safakhou/researcher/internal/agent/core"
	"github.com/mohammad-safakhou/researcher/internal/helpers"
	"github.com/mohammad-safakhou/researcher/tools/pool_index"
	"github.com/mohammad-safakhou/researcher/tools/web_fetch"
	"go.uber.org/zap"
)

// FetchErrorMarker is the result VisitWeb returns for a page it could not read.
const FetchErrorMarker = "Error: Could not extract data from website."

var errCrawlDenied = errors.New("blocked by crawl policy")

// VisitWeb fetches a pool URL and attaches its text to the resource.
// Failures never escape Run: they become FetchErrorMarker and the resource is
// still marked visited so the planner stops proposing it.
type VisitWeb struct {
	fetcher  web_fetch.WebFetcher
	pool     *core.ResourcePool
	index    *pool_index.Index
	policy   config.CrawlPolicyConfig
	maxChars int
	logger   *zap.Logger
}

func NewVisitWeb(fetcher web_fetch.WebFetcher, pool *core.ResourcePool, index *pool_index.Index, policy config.CrawlPolicyConfig, maxChars int, logger *zap.Logger) *VisitWeb {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxChars <= 0 {
		maxChars = web_fetch.MaxCharsDefault
	}
	return &VisitWeb{fetcher: fetcher, pool: pool, index: index, policy: policy, maxChars: maxChars, logger: logger}
}

func (t *VisitWeb) Name() string { return "VisitWeb" }

func (t *VisitWeb) Description() string {
	return "Useful for when you need to visit a website in the RESOURCE POOL and extract information from it."
}

func (t *VisitWeb) ArgsSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{"type": "string", "description": "A url in RESOURCE POOL."},
		},
		"required": []string{"url"},
	}
}

func (t *VisitWeb) Run(ctx context.Context, raw json.RawMessage) (core.ToolOutput, error) {
	var args urlArgs
	if err := bindArgs(raw, "url", &args); err != nil {
		t.logger.Warn("VisitWeb: bad arguments", zap.Error(err))
		return core.ToolOutput{Result: FetchErrorMarker}, nil
	}
	url := strings.TrimSpace(args.URL)

	text, title, err := t.fetch(ctx, url)
	if err != nil {
		t.logger.Warn("VisitWeb: could not extract page", zap.String("url", url), zap.Error(err))
		t.pool.Visit(url, FetchErrorMarker)
		return core.ToolOutput{Result: FetchErrorMarker}, nil
	}
	t.pool.Visit(url, text)
	if t.index != nil {
		if _, err := t.index.Add(core.NormalizeURL(url), title, text); err != nil {
			t.logger.Warn("VisitWeb: index page", zap.String("url", url), zap.Error(err))
		}
	}
	return core.ToolOutput{Result: text, Citation: url}, nil
}

func (t *VisitWeb) fetch(ctx context.Context, url string) (text, title string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetcher panic: %v", r)
		}
	}()
	if url == "" {
		return "", "", errors.New("empty url")
	}
	if !t.policy.Permits(url) {
		return "", "", errCrawlDenied
	}
	res, err := t.fetcher.Exec(ctx, url)
	if err != nil {
		return "", "", err
	}
	text = helpers.Truncate(strings.TrimSpace(res.Text), t.maxChars)
	if text == "" {
		return "", "", errors.New("empty page")
	}
	return text, res.Title, nil
}
