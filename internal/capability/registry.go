// Package capability catalogs the research tools of a run.
package capability

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/mohammad-safakhou/researcher/internal/agent/core"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// ToolCard is the published description of one tool.
type ToolCard struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	ArgsSchema  map[string]any `json:"args_schema"`
	Checksum    string         `json:"checksum"`
}

// ErrToolNotFound is returned by Lookup for names outside the catalog.
var ErrToolNotFound = core.ErrToolNotFound

// Registry holds the tools of a run keyed by name, with compiled argument
// schemas. It is the ToolSet research tasks are dispatched through.
type Registry struct {
	order   []string
	tools   map[string]core.Tool
	cards   map[string]ToolCard
	schemas map[string]*jsonschema.Schema
}

var _ core.ToolSet = (*Registry)(nil)

// NewRegistry builds cards for tools and compiles their argument schemas.
// Duplicate names are rejected.
func NewRegistry(tools []core.Tool) (*Registry, error) {
	reg := &Registry{
		tools:   make(map[string]core.Tool, len(tools)),
		cards:   make(map[string]ToolCard, len(tools)),
		schemas: make(map[string]*jsonschema.Schema, len(tools)),
	}
	for _, t := range tools {
		name := t.Name()
		if name == "" {
			return nil, errors.New("tool with empty name")
		}
		if _, dup := reg.tools[name]; dup {
			return nil, fmt.Errorf("duplicate tool %q", name)
		}
		card, err := CardFor(t)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", name, err)
		}
		schema, err := compileSchema(name, card.ArgsSchema)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", name, err)
		}
		reg.order = append(reg.order, name)
		reg.tools[name] = t
		reg.cards[name] = card
		reg.schemas[name] = schema
	}
	return reg, nil
}

// CardFor describes t and stamps the card checksum.
func CardFor(t core.Tool) (ToolCard, error) {
	card := ToolCard{Name: t.Name(), Description: t.Description(), ArgsSchema: t.ArgsSchema()}
	sum, err := ComputeChecksum(card)
	if err != nil {
		return ToolCard{}, err
	}
	card.Checksum = sum
	return card, nil
}

// ComputeChecksum returns a deterministic hash of the card payload (excluding the checksum field).
func ComputeChecksum(tc ToolCard) (string, error) {
	payload := map[string]any{
		"name":        tc.Name,
		"description": tc.Description,
		"args_schema": tc.ArgsSchema,
	}
	normalized, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(normalized)
	return hex.EncodeToString(sum[:]), nil
}

func compileSchema(name string, schema map[string]any) (*jsonschema.Schema, error) {
	if schema == nil {
		schema = map[string]any{"type": "object"}
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("encode args schema: %w", err)
	}
	url := name + ".args.json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile args schema: %w", err)
	}
	return compiled, nil
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []core.Tool {
	out := make([]core.Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Cards returns every card sorted by name.
func (r *Registry) Cards() []ToolCard {
	out := make([]ToolCard, 0, len(r.cards))
	for _, c := range r.cards {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup resolves a tool by exact name.
func (r *Registry) Lookup(name string) (core.Tool, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return t, nil
}

// ValidateArgs checks args against the tool's schema. A bare JSON string is
// accepted as-is since tools bind it to their primary argument.
func (r *Registry) ValidateArgs(name string, args json.RawMessage) error {
	if _, err := r.Lookup(name); err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(args, &doc); err != nil {
		return fmt.Errorf("decode args: %w", err)
	}
	if _, ok := doc.(string); ok {
		return nil
	}
	if err := r.schemas[name].Validate(doc); err != nil {
		return fmt.Errorf("invalid args: %w", err)
	}
	return nil
}
