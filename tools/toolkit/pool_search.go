package toolkit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mohammad-safakhou/researcher/internal/agent/core"
	"github.com/mohammad-safakhou/researcher/tools/pool_index"
)

const poolSearchDefaultLimit = 5

// SearchResourcePool queries the text of pages visited so far.
type SearchResourcePool struct {
	index *pool_index.Index
}

func NewSearchResourcePool(index *pool_index.Index) *SearchResourcePool {
	return &SearchResourcePool{index: index}
}

func (t *SearchResourcePool) Name() string { return "SearchResourcePool" }

func (t *SearchResourcePool) Description() string {
	return "Useful for when you need to find which already visited websites in the RESOURCE POOL mention a TOPIC, with matching excerpts."
}

func (t *SearchResourcePool) ArgsSchema() map[string]any {
	return querySchema("keywords to look for in visited pages.", poolSearchDefaultLimit)
}

func (t *SearchResourcePool) Run(_ context.Context, raw json.RawMessage) (core.ToolOutput, error) {
	var args queryArgs
	if err := args.bind(raw, poolSearchDefaultLimit); err != nil {
		return core.ToolOutput{}, err
	}
	hits, err := t.index.Search(args.Query, args.Limit)
	if err != nil {
		return core.ToolOutput{}, err
	}
	out := core.ToolOutput{Citation: fmt.Sprintf("Resource Pool Search: %s", args.Query)}
	if len(hits) == 0 {
		out.Result = "No visited page matches the query."
		return out, nil
	}
	out.Result = indentJSON(hits)
	return out, nil
}
