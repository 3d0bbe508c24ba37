package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FormatObjectives renders objectives as a numbered list with their expertise.
func FormatObjectives(objectives []Objective) string {
	lines := make([]string, len(objectives))
	for i, o := range objectives {
		lines[i] = fmt.Sprintf("%d. %s (expertise: %s)", i+1, o.Topic, strconv.FormatFloat(o.Expertise, 'f', -1, 64))
	}
	return strings.Join(lines, "\n")
}

// FormatResources renders resources as a markdown link list.
func FormatResources(resources []Resource) string {
	lines := make([]string, len(resources))
	for i, r := range resources {
		lines[i] = fmt.Sprintf("- [%s](%s) (visited: %t)", r.Description, r.URL, r.Visited)
	}
	return strings.Join(lines, "\n")
}

// FormatTools renders the tool catalog shown to the planner.
func FormatTools(tools []Tool) string {
	var b strings.Builder
	for _, t := range tools {
		fmt.Fprintf(&b, "- %s: %s\n  args: %s\n", t.Name(), t.Description(), compactJSON(t.ArgsSchema()))
	}
	return strings.TrimRight(b.String(), "\n")
}

// IndentedJSON is the two-space indented JSON form of v without HTML escaping.
// Its length is the size unit used for narrative chunking.
func IndentedJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Sprintf("%v", v)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func compactJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

var planResponseFormat = []any{
	map[string]string{"tool": "ToolName", "args": "tool arguments", "reasoning": "why this tool helps"},
	"... more tasks",
}

var evaluateResponseFormat = map[string]any{
	"updated_findings": map[string]any{
		"generated_objectives": []any{
			map[string]string{"topic": "secondary objective that helps the key objectives", "expertise": "float in [0, 1]"},
		},
		"remark": "a note that helps the next iteration improve",
	},
	"updated_objectives": []any{
		map[string]string{"topic": "exactly one of the key objectives", "expertise": "new float in [0, 1]"},
		"... every key objective",
	},
}

func contextHeader(role string, objectives []Objective, findings Findings) string {
	return fmt.Sprintf("You are %s. You are becoming an expert in the topics under KEY OBJECTIVES; "+
		"each carries a weight between 0 and 1 giving your current expertise.\n\n"+
		"## KEY OBJECTIVES:\n%s\n\n"+
		"## GENERATED OBJECTIVES:\n%s\n\n"+
		"## REMARK:\n%s",
		role, FormatObjectives(objectives), FormatObjectives(findings.GeneratedObjectives), findings.Remark)
}

func planMessages(role string, objectives []Objective, findings Findings, unvisited []Resource, tools []Tool, maxTasks int) []Message {
	system := contextHeader(role, objectives, findings) + "\n\n" +
		"Plan how to use the available tools to close the gaps in your expertise. " +
		"Mind each tool's limitations.\n\n" +
		"Respond ONLY with JSON in this format:\n## RESPONSE FORMAT:\n" + IndentedJSON(planResponseFormat)
	user := "## PREVIOUS FINDINGS:\n```\n" + findings.Narrative + "\n```\n\n" +
		"## RESOURCE POOL:\n" + FormatResources(unvisited) + "\n\n" +
		"## AVAILABLE TOOLS:\n" + FormatTools(tools) + "\n\n" +
		fmt.Sprintf("# YOUR TASK:\nUsing PREVIOUS FINDINGS, plan up to %d tool calls. ", maxTasks) +
		"Use only the tools and links listed above and never visit a link that is not in the RESOURCE POOL. " +
		"Prefer visiting RESOURCE POOL links over new searches unless they cannot answer the open questions.\n" +
		"Respond using ONLY the response format:"
	return []Message{{Role: RoleSystem, Content: system}, {Role: RoleUser, Content: user}}
}

func narrateMessages(role string, objectives []Objective, findings Findings, chunk []ResearchResult) []Message {
	system := contextHeader(role, objectives, findings) + "\n\n" +
		"## PREVIOUS FINDINGS:\n```\n" + findings.Narrative + "\n```\n\n" +
		"## RESPONSE FORMAT:\n- A markdown document with at most 10 sections of at most 500 words each."
	user := "A research iteration just finished. Raw results:\n\n" +
		"## RESEARCH RESULTS:\n" + IndentedJSON(chunk) + "\n\n" +
		"Revise PREVIOUS FINDINGS with the new information from RESEARCH RESULTS.\n" +
		"- The narrative must work toward fulfilling every KEY OBJECTIVE.\n" +
		"- Use GENERATED OBJECTIVES and REMARK to decide what to expand.\n" +
		"- Cite sources as markdown footnotes using the result citations and links.\n" +
		"- Do not mention the tools that were used.\n" +
		"- Do not include a PREVIOUS FINDINGS heading; return the complete revised narrative only."
	return []Message{{Role: RoleSystem, Content: system}, {Role: RoleUser, Content: user}}
}

func evaluateMessages(role string, objectives []Objective, findings Findings, narrative Narrative, maxGenerated int) []Message {
	system := contextHeader(role, objectives, findings) + "\n\n" +
		"Respond ONLY with JSON in this format:\n## RESPONSE FORMAT:\n" + IndentedJSON(evaluateResponseFormat)
	user := "You finished a research iteration and wrote this narrative:\n\n" +
		"## YOUR FINDINGS:\n```\n" + narrative.Markdown + "\n```\n\n" +
		"Evaluate it critically and provide:\n" +
		fmt.Sprintf("- Up to %d generated_objectives that would help the next iteration cover the KEY OBJECTIVES; carry over unfinished ones.\n", maxGenerated) +
		"- A concise remark with actionable feedback for the next iteration.\n" +
		"- A new expertise weight for every KEY OBJECTIVE, keeping the exact same topics. Weights rise as topics become well covered.\n\n" +
		"Respond using ONLY the response format:"
	return []Message{{Role: RoleSystem, Content: system}, {Role: RoleUser, Content: user}}
}
