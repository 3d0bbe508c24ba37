package toolkit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mohammad-safakhou/researcher/internal/agent/core"
	"github.com/mohammad-safakhou/researcher/tools/web_search"
)

// LinkTool runs a web search and adds every hit to the resource pool so
// later iterations can plan visits to them.
type LinkTool struct {
	name         string
	label        string
	defaultLimit int
	searcher     web_search.WebSearcher
	pool         *core.ResourcePool
}

func NewLinkTool(name, label string, defaultLimit int, searcher web_search.WebSearcher, pool *core.ResourcePool) *LinkTool {
	return &LinkTool{name: name, label: label, defaultLimit: defaultLimit, searcher: searcher, pool: pool}
}

func (t *LinkTool) Name() string { return t.name }

func (t *LinkTool) Description() string {
	return fmt.Sprintf("Useful for when you need more links to website that points to information about a TOPIC over the internet using %s.", t.label)
}

func (t *LinkTool) ArgsSchema() map[string]any {
	return querySchema("any topic you want find relevant links.", t.defaultLimit)
}

func (t *LinkTool) Run(ctx context.Context, raw json.RawMessage) (core.ToolOutput, error) {
	var args queryArgs
	if err := args.bind(raw, t.defaultLimit); err != nil {
		return core.ToolOutput{}, err
	}
	results, err := t.searcher.Search(ctx, args.Query, args.Limit)
	if err != nil {
		return core.ToolOutput{}, err
	}
	for _, r := range results {
		t.pool.Add(r.URL, r.Title, "")
	}
	return core.ToolOutput{
		Citation: fmt.Sprintf("%s Search Links: %s", t.label, args.Query),
		Result:   indentJSON(results),
	}, nil
}

// Answerer produces a short text answer for a question.
type Answerer interface {
	Answer(ctx context.Context, query string) (string, error)
}

// AnswerTool asks the search engine for a direct answer; the pool is left alone.
type AnswerTool struct {
	name     string
	label    string
	answerer Answerer
}

func NewAnswerTool(name, label string, answerer Answerer) *AnswerTool {
	return &AnswerTool{name: name, label: label, answerer: answerer}
}

func (t *AnswerTool) Name() string { return t.name }

func (t *AnswerTool) Description() string {
	return fmt.Sprintf("Useful for when you need an answer to a QUESTION on current event over the internet using %s.", t.label)
}

func (t *AnswerTool) ArgsSchema() map[string]any {
	return querySchema("A well formed question.", 0)
}

func (t *AnswerTool) Run(ctx context.Context, raw json.RawMessage) (core.ToolOutput, error) {
	var args queryArgs
	if err := args.bind(raw, 0); err != nil {
		return core.ToolOutput{}, err
	}
	answer, err := t.answerer.Answer(ctx, args.Query)
	if err != nil {
		return core.ToolOutput{}, err
	}
	return core.ToolOutput{
		Citation: fmt.Sprintf("%s Search Answer: %s", t.label, args.Query),
		Result:   answer,
	}, nil
}
