package capability

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mohammad-safakhou/researcher/internal/agent/core"
)

type fakeTool struct {
	name   string
	schema map[string]any
}

func (f fakeTool) Name() string               { return f.name }
func (f fakeTool) Description() string        { return f.name + " tool" }
func (f fakeTool) ArgsSchema() map[string]any { return f.schema }
func (f fakeTool) Run(context.Context, json.RawMessage) (core.ToolOutput, error) {
	return core.ToolOutput{}, nil
}

func queryTool(name string) fakeTool {
	return fakeTool{name: name, schema: map[string]any{
		"type":       "object",
		"properties": map[string]any{"query": map[string]any{"type": "string"}, "limit": map[string]any{"type": "integer", "minimum": 1}},
		"required":   []string{"query"},
	}}
}

func TestNewRegistryRejectsDuplicatesAndBadSchemas(t *testing.T) {
	if _, err := NewRegistry([]core.Tool{queryTool("A"), queryTool("A")}); err == nil {
		t.Fatalf("expected duplicate name error")
	}
	bad := fakeTool{name: "B", schema: map[string]any{"type": 12}}
	if _, err := NewRegistry([]core.Tool{bad}); err == nil {
		t.Fatalf("expected schema compile error")
	}
}

func TestLookupAndOrder(t *testing.T) {
	reg, err := NewRegistry([]core.Tool{queryTool("Zeta"), queryTool("Alpha")})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if tools := reg.Tools(); tools[0].Name() != "Zeta" {
		t.Fatalf("Tools must keep registration order, got %s first", tools[0].Name())
	}
	if cards := reg.Cards(); cards[0].Name != "Alpha" || cards[0].Checksum == "" {
		t.Fatalf("unexpected cards %+v", cards)
	}
	if _, err := reg.Lookup("Missing"); !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("expected ErrToolNotFound, got %v", err)
	}
}

func TestChecksumChangesWithSchema(t *testing.T) {
	a, _ := CardFor(queryTool("A"))
	b, _ := CardFor(fakeTool{name: "A", schema: map[string]any{"type": "object"}})
	again, _ := CardFor(queryTool("A"))
	if a.Checksum == b.Checksum || a.Checksum != again.Checksum {
		t.Fatalf("checksum not content addressed: %s %s %s", a.Checksum, b.Checksum, again.Checksum)
	}
}

func TestValidateArgs(t *testing.T) {
	reg, err := NewRegistry([]core.Tool{queryTool("Search")})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	cases := map[string]bool{
		`{"query":"go"}`:           true,
		`"go"`:                     true,
		`{"limit":3}`:              false,
		`{"query":"go","limit":0}`: false,
		`not json`:                 false,
	}
	for args, ok := range cases {
		err := reg.ValidateArgs("Search", json.RawMessage(args))
		if (err == nil) != ok {
			t.Fatalf("ValidateArgs(%s) = %v, want ok=%v", args, err, ok)
		}
	}
	if err := reg.ValidateArgs("Nope", json.RawMessage(`{}`)); !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("expected ErrToolNotFound, got %v", err)
	}
}
