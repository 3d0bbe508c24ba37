package session

import (
	"context"
	"strings"

	"github.com/mohammad-safakhou/researcher/internal/agent/core"
)

// RecordingCompleter copies every successful exchange into a State.
type RecordingCompleter struct {
	next  core.Completer
	state *State
}

func NewRecordingCompleter(next core.Completer, state *State) *RecordingCompleter {
	return &RecordingCompleter{next: next, state: state}
}

func (r *RecordingCompleter) Complete(ctx context.Context, messages []core.Message) (string, error) {
	resp, err := r.next.Complete(ctx, messages)
	if err != nil {
		return "", err
	}
	r.state.RecordLLM(FormatPrompt(messages), resp)
	return resp, nil
}

// FormatPrompt renders messages as "System: ...", "Human: ..." blocks.
func FormatPrompt(messages []core.Message) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		label := "Human"
		if m.Role == core.RoleSystem {
			label = "System"
		}
		parts = append(parts, label+": "+m.Content)
	}
	return strings.Join(parts, "\n\n")
}
