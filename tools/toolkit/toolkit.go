// Package toolkit assembles the research tools from configuration.
package toolkit

import (
	"fmt"
	"net/http"
	"time"

	"github.com/mohammad-safakhou/researcher/config"
	"github.com/mohammad-safakhou/researcher/internal/agent/core"
	"github.com/mohammad-safakhou/researcher/tools/pool_index"
	"github.com/mohammad-safakhou/researcher/tools/web_fetch"
	"github.com/mohammad-safakhou/researcher/tools/web_search"
	"github.com/mohammad-safakhou/researcher/tools/web_search/brave"
	"github.com/mohammad-safakhou/researcher/tools/web_search/duckduckgo"
	"github.com/mohammad-safakhou/researcher/tools/web_search/google"
	"github.com/mohammad-safakhou/researcher/tools/web_search/serper"
	"go.uber.org/zap"
)

// Toolkit owns the tools of one run and the page index they share.
type Toolkit struct {
	tools []core.Tool
	index *pool_index.Index
}

// New builds the tool set over pool. Google is always registered and fails
// at call time without credentials; Brave and Serper only when keyed.
func New(cfg config.ToolsConfig, pool *core.ResourcePool, logger *zap.Logger) (*Toolkit, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fetcher, err := web_fetch.NewWebFetcher(web_fetch.FetcherType(cfg.Fetcher), cfg.FetchTimeout, cfg.PageCharLimit, cfg.UserAgent)
	if err != nil {
		return nil, fmt.Errorf("fetcher %q: %w", cfg.Fetcher, err)
	}
	index, err := pool_index.New()
	if err != nil {
		return nil, fmt.Errorf("pool index: %w", err)
	}

	ddg := newDuckDuckGo(cfg)
	tools := []core.Tool{
		NewAnswerTool("DuckDuckGoSearchAnswer", "DuckDuckGo", ddg),
		NewLinkTool("DuckDuckGoSearchLinks", "DuckDuckGo", 20, ddg, pool),
		NewLinkTool("GoogleSearchLinks", "Google", 10, NewWebSearcher(web_search.GoogleProvider, cfg), pool),
	}
	if cfg.Brave.APIKey != "" {
		tools = append(tools, NewLinkTool("BraveSearchLinks", "Brave", 20, NewWebSearcher(web_search.BraveProvider, cfg), pool))
	}
	if cfg.Serper.APIKey != "" {
		tools = append(tools, NewLinkTool("SerperSearchLinks", "Serper", 10, NewWebSearcher(web_search.SerperProvider, cfg), pool))
	}
	tools = append(tools,
		NewVisitWeb(fetcher, pool, index, cfg.CrawlPolicy, cfg.PageCharLimit, logger.Named("visit_web")),
		NewSearchResourcePool(index),
	)
	return &Toolkit{tools: tools, index: index}, nil
}

// NewWebSearcher returns the backend for provider, or nil for an unknown one.
func NewWebSearcher(provider web_search.Provider, cfg config.ToolsConfig) web_search.WebSearcher {
	client := web_search.DefaultClient(cfg.FetchTimeout)
	switch provider {
	case web_search.DuckDuckGoProvider:
		return newDuckDuckGo(cfg)
	case web_search.GoogleProvider:
		return google.Search{ApiKey: cfg.Google.APIKey, CSEID: cfg.Google.CSEID, Endpoint: cfg.Google.Endpoint, Client: client}
	case web_search.BraveProvider:
		return brave.Search{ApiKey: cfg.Brave.APIKey, Endpoint: cfg.Brave.Endpoint, Client: client}
	case web_search.SerperProvider:
		return serper.Search{ApiKey: cfg.Serper.APIKey, Endpoint: cfg.Serper.Endpoint, Client: client}
	default:
		return nil
	}
}

func newDuckDuckGo(cfg config.ToolsConfig) *duckduckgo.Search {
	return &duckduckgo.Search{
		Client:    &http.Client{Timeout: 15 * time.Second},
		Endpoint:  cfg.DuckDuckGo.Endpoint,
		UserAgent: cfg.UserAgent,
		Interval:  cfg.DuckDuckGo.Interval,
	}
}

func (t *Toolkit) Tools() []core.Tool {
	out := make([]core.Tool, len(t.tools))
	copy(out, t.tools)
	return out
}

// Index is the full-text index over visited pages.
func (t *Toolkit) Index() *pool_index.Index { return t.index }

func (t *Toolkit) Close() error {
	return t.index.Close()
}
