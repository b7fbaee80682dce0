// Package timeline implements the Timeline Manager (spec §4.8): the
// per-session append-only message stream, its auto-checkpoint policies,
// and restore/fork/diff against the Snapshot Store.
package timeline

import "encoding/json"

// DefaultDestructiveTools is the configurable set of tool names the
// "smart" auto-checkpoint policy treats as destructive (spec §4.8,
// Open Question decision: a policy variable rather than a hardcoded
// constant, so deployments can extend it).
var DefaultDestructiveTools = map[string]struct{}{
	"write": {}, "edit": {}, "patch": {}, "bash": {}, "shell": {}, "delete": {},
}

// lineShape is the minimal JSON schema matcher used to classify an
// appended line without committing to the AI tool's full message schema.
type lineShape struct {
	Role     string `json:"role"`
	Type     string `json:"type"`
	Tool     string `json:"tool"`
	ToolName string `json:"tool_name"`
}

// classification is what append_message needs to decide whether to
// auto-checkpoint and which paths, if any, to re-touch.
type classification struct {
	IsUserPrompt  bool
	IsToolUse     bool
	ToolName      string
	IsDestructive bool
	ModifiedPaths []string
}

// classify parses a line as the minimal shape above; lines that aren't
// JSON or carry none of the recognized fields classify as plain content.
func classify(line []byte, destructiveTools map[string]struct{}) classification {
	var shape struct {
		lineShape
		ModifiedPaths []string `json:"modified_paths"`
	}
	if err := json.Unmarshal(line, &shape); err != nil {
		return classification{}
	}

	tool := shape.Tool
	if tool == "" {
		tool = shape.ToolName
	}

	c := classification{
		IsUserPrompt:  shape.Role == "user",
		IsToolUse:     tool != "" || shape.Type == "tool_use",
		ToolName:      tool,
		ModifiedPaths: shape.ModifiedPaths,
	}
	if tool != "" {
		_, c.IsDestructive = destructiveTools[tool]
	}
	return c
}
