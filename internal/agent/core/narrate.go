package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// DefaultChunkThreshold is the size budget of one narrate chunk.
const DefaultChunkThreshold = 20000

// ResultSize is the chunking size of a result: the length of its indented JSON.
func ResultSize(r ResearchResult) int {
	return len(IndentedJSON(r))
}

// ChunkResults packs results smallest-first into chunks whose total size stays
// within threshold. A chunk is closed only when it is non-empty and the next
// result would overflow it, so an oversized result lands alone in its own chunk.
func ChunkResults(results []ResearchResult, threshold int) [][]ResearchResult {
	type sized struct {
		r    ResearchResult
		size int
	}
	items := make([]sized, len(results))
	for i, r := range results {
		items[i] = sized{r: r, size: ResultSize(r)}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].size < items[j].size })

	var chunks [][]ResearchResult
	var current []ResearchResult
	total := 0
	for _, it := range items {
		if len(current) > 0 && total+it.size > threshold {
			chunks = append(chunks, current)
			current, total = nil, 0
		}
		current = append(current, it.r)
		total += it.size
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}

// Narrator is the Narrate stage.
type Narrator struct {
	llm       Completer
	bus       *Bus
	role      string
	threshold int
	logger    *zap.Logger
}

// NewNarrator builds a Narrate stage with the given chunk threshold.
func NewNarrator(llm Completer, bus *Bus, role string, threshold int, logger *zap.Logger) *Narrator {
	if threshold <= 0 {
		threshold = DefaultChunkThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Narrator{llm: llm, bus: bus, role: role, threshold: threshold, logger: logger.Named("narrator")}
}

// Narrate folds results into the running narrative one chunk at a time; each
// chunk's completion sees the narrative produced by the chunk before it.
func (n *Narrator) Narrate(ctx context.Context, objectives []Objective, findings Findings, results []ResearchResult) (Narrative, error) {
	chunks := ChunkResults(results, n.threshold)
	n.bus.Log(ctx, fmt.Sprintf("Applying %d results splitting into %d chunks", len(results), len(chunks)))

	current := findings.Narrative
	for i, chunk := range chunks {
		n.bus.Log(ctx, fmt.Sprintf("  Narrating chunk %d/%d", i+1, len(chunks)))
		step := Findings{
			Narrative:           current,
			Remark:              findings.Remark,
			GeneratedObjectives: findings.GeneratedObjectives,
		}
		out, err := n.llm.Complete(ctx, narrateMessages(n.role, objectives, step, chunk))
		if err != nil {
			return Narrative{}, fmt.Errorf("narrate chunk %d/%d: %w", i+1, len(chunks), err)
		}
		current = strings.TrimSpace(out)
		n.logger.Debug("chunk narrated", zap.Int("chunk", i+1), zap.Int("results", len(chunk)), zap.Int("narrative_len", len(current)))
	}
	return Narrative{Markdown: current}, nil
}
