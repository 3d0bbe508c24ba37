package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML accepts either a bare topic string or a {topic, expertise} mapping.
func (o *Objective) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		o.Topic = strings.TrimSpace(node.Value)
		o.Expertise = 0
		return nil
	}
	type plain Objective
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*o = Objective(p)
	o.Topic = strings.TrimSpace(o.Topic)
	return nil
}

// LoadObjectivesFile reads a YAML list of objectives, either as a top-level
// sequence or under an "objectives" key.
func LoadObjectivesFile(path string) ([]Objective, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read objectives file: %w", err)
	}
	return ParseObjectives(data)
}

// ParseObjectives decodes the objectives file format.
func ParseObjectives(data []byte) ([]Objective, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse objectives: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, nil
	}
	doc := root.Content[0]
	var out []Objective
	switch doc.Kind {
	case yaml.SequenceNode:
		if err := doc.Decode(&out); err != nil {
			return nil, fmt.Errorf("parse objectives: %w", err)
		}
	case yaml.MappingNode:
		var wrapped struct {
			Objectives []Objective `yaml:"objectives"`
		}
		if err := doc.Decode(&wrapped); err != nil {
			return nil, fmt.Errorf("parse objectives: %w", err)
		}
		out = wrapped.Objectives
	default:
		return nil, fmt.Errorf("parse objectives: expected a list or an objectives key")
	}
	for i, o := range out {
		if o.Topic == "" {
			return nil, fmt.Errorf("objective %d has no topic", i+1)
		}
		if o.Expertise < 0 || o.Expertise > 1 {
			return nil, fmt.Errorf("objective %q: expertise %v outside [0, 1]", o.Topic, o.Expertise)
		}
	}
	return out, nil
}

// ObjectivesFromTopics builds zero-expertise objectives from flag values.
func ObjectivesFromTopics(topics []string) []Objective {
	var out []Objective
	for _, t := range topics {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, Objective{Topic: t})
		}
	}
	return out
}
