package toolkit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// bindArgs decodes raw into out. Plans sometimes pass a bare JSON string
// instead of an object; it is bound to the tool's primary field.
func bindArgs(raw json.RawMessage, primary string, out any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return fmt.Errorf("missing %s argument", primary)
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("decode args: %w", err)
		}
		wrapped, err := json.Marshal(map[string]string{primary: s})
		if err != nil {
			return err
		}
		raw = wrapped
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode args: %w", err)
	}
	return nil
}

type queryArgs struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (a *queryArgs) bind(raw json.RawMessage, defaultLimit int) error {
	if err := bindArgs(raw, "query", a); err != nil {
		return err
	}
	a.Query = strings.TrimSpace(a.Query)
	if a.Query == "" {
		return fmt.Errorf("query is empty")
	}
	if a.Limit <= 0 {
		a.Limit = defaultLimit
	}
	return nil
}

type urlArgs struct {
	URL string `json:"url"`
}

func querySchema(queryDesc string, defaultLimit int) map[string]any {
	props := map[string]any{
		"query": map[string]any{"type": "string", "description": queryDesc},
	}
	if defaultLimit > 0 {
		props["limit"] = map[string]any{
			"type":        "integer",
			"description": "amount of results you want",
			"default":     defaultLimit,
			"minimum":     1,
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   []string{"query"},
	}
}

func indentJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
