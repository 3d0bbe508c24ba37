package core

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// DefaultMaxGeneratedObjectives caps the secondary objectives kept per iteration.
const DefaultMaxGeneratedObjectives = 5

// Evaluator is the Evaluate stage.
type Evaluator struct {
	llm          Completer
	bus          *Bus
	role         string
	maxGenerated int
	logger       *zap.Logger
}

// NewEvaluator builds an Evaluate stage.
func NewEvaluator(llm Completer, bus *Bus, role string, maxGenerated int, logger *zap.Logger) *Evaluator {
	if maxGenerated <= 0 {
		maxGenerated = DefaultMaxGeneratedObjectives
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{llm: llm, bus: bus, role: role, maxGenerated: maxGenerated, logger: logger.Named("evaluator")}
}

type evaluateResponse struct {
	UpdatedFindings struct {
		GeneratedObjectives    []Objective `json:"generated_objectives"`
		IntermediateObjectives []Objective `json:"intermediate_objectives"`
		Remark                 string      `json:"remark"`
	} `json:"updated_findings"`
	UpdatedObjectives []Objective `json:"updated_objectives"`
}

// Evaluate scores the primary objectives against the new narrative and
// derives the findings for the next iteration. The primary topic set is
// always preserved: the model only supplies new expertise values.
func (e *Evaluator) Evaluate(ctx context.Context, objectives []Objective, findings Findings, narrative Narrative) (EvaluateOutputs, error) {
	response, err := e.llm.Complete(ctx, evaluateMessages(e.role, objectives, findings, narrative, e.maxGenerated))
	if err != nil {
		return EvaluateOutputs{}, fmt.Errorf("completion: %w", err)
	}
	var raw evaluateResponse
	if err := decodeResponse(response, evaluateSchema, &raw); err != nil {
		return EvaluateOutputs{}, err
	}

	generated := raw.UpdatedFindings.GeneratedObjectives
	if generated == nil {
		generated = raw.UpdatedFindings.IntermediateObjectives
	}
	if len(generated) > e.maxGenerated {
		generated = generated[:e.maxGenerated]
	}
	clamped := make([]Objective, 0, len(generated))
	for _, o := range generated {
		if strings.TrimSpace(o.Topic) == "" {
			continue
		}
		clamped = append(clamped, Objective{Topic: o.Topic, Expertise: clampExpertise(o.Expertise)})
	}

	updated, unknown := reconcileObjectives(objectives, raw.UpdatedObjectives)
	if len(unknown) > 0 {
		e.logger.Warn("evaluation returned topics outside the primary set", zap.Strings("topics", unknown))
		e.bus.Log(ctx, fmt.Sprintf("Ignoring %d unknown objective(s) from evaluation: %s", len(unknown), strings.Join(unknown, "; ")))
	}

	return EvaluateOutputs{
		Objectives: updated,
		Findings: Findings{
			Narrative:           narrative.Markdown,
			Remark:              raw.UpdatedFindings.Remark,
			GeneratedObjectives: clamped,
		},
	}, nil
}

// reconcileObjectives keeps primary's topics and order, taking expertise from
// the matching entry in returned. Unmatched primaries keep their old value;
// returned topics with no primary counterpart are reported back.
func reconcileObjectives(primary, returned []Objective) ([]Objective, []string) {
	exact := make(map[string]float64, len(returned))
	loose := make(map[string]float64, len(returned))
	for _, o := range returned {
		exact[o.Topic] = o.Expertise
		loose[foldTopic(o.Topic)] = o.Expertise
	}
	known := make(map[string]struct{}, len(primary))
	out := make([]Objective, len(primary))
	for i, p := range primary {
		known[foldTopic(p.Topic)] = struct{}{}
		exp := p.Expertise
		if v, ok := exact[p.Topic]; ok {
			exp = v
		} else if v, ok := loose[foldTopic(p.Topic)]; ok {
			exp = v
		}
		out[i] = Objective{Topic: p.Topic, Expertise: clampExpertise(exp)}
	}
	var unknown []string
	for _, o := range returned {
		if _, ok := known[foldTopic(o.Topic)]; !ok {
			unknown = append(unknown, o.Topic)
		}
	}
	return out, unknown
}

func foldTopic(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func clampExpertise(v float64) float64 {
	switch {
	case v != v:
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
