// Package types holds the domain model shared across sentinel's
// components: agents, runs, sandbox rules, checkpoints and timelines.
package types

import "time"

// RunStatus is the lifecycle state of a Run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// Agent is a named template that fixes prompts, model, and permission
// toggles for future runs.
type Agent struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Icon           string    `json:"icon"`
	SystemPrompt   string    `json:"system_prompt"`
	DefaultTask    string    `json:"default_task,omitempty"`
	Model          string    `json:"model"`
	SandboxEnabled bool      `json:"sandbox_enabled"`
	FileRead       bool      `json:"file_read"`
	FileWrite      bool      `json:"file_write"`
	Network        bool      `json:"network"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Permissions is the four-tuple of effective permission toggles used by
// the Sandbox Profile Builder.
type Permissions struct {
	SandboxEnabled bool `json:"sandbox_enabled"`
	FileRead       bool `json:"file_read"`
	FileWrite      bool `json:"file_write"`
	Network        bool `json:"network"`
}

// Run is a single execution of either an Agent or a direct session.
type Run struct {
	ID           string     `json:"id"`
	AgentID      string     `json:"agent_id,omitempty"`
	DisplayName  string     `json:"display_name"`
	Icon         string     `json:"icon"`
	Task         string     `json:"task"`
	Model        string     `json:"model"`
	ProjectPath  string     `json:"project_path"`
	SessionToken string     `json:"session_token,omitempty"`
	Status       RunStatus  `json:"status"`
	PID          int        `json:"pid,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// OperationKind is a sandbox rule's operation category.
type OperationKind string

const (
	OpFileReadAll      OperationKind = "file_read_all"
	OpFileReadMetadata OperationKind = "file_read_metadata"
	OpNetworkOutbound  OperationKind = "network_outbound"
	OpSystemInfoRead   OperationKind = "system_info_read"
)

// PatternKind is how a SandboxRule's pattern value should be matched.
type PatternKind string

const (
	PatternLiteral PatternKind = "literal"
	PatternSubpath PatternKind = "subpath"
	PatternPrefix  PatternKind = "prefix"
	PatternPort    PatternKind = "port"
	PatternHost    PatternKind = "host"
)

// SandboxProfile is a named rule bundle.
type SandboxProfile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
}

// SandboxRule belongs to a profile.
type SandboxRule struct {
	ID           string        `json:"id"`
	ProfileID    string        `json:"profile_id"`
	Operation    OperationKind `json:"operation"`
	PatternKind  PatternKind   `json:"pattern_kind"`
	PatternValue string        `json:"pattern_value"`
	Enabled      bool          `json:"enabled"`
	PlatformTags []string      `json:"platform_tags"` // subset of {"linux","darwin","windows"}; empty = all
}

// AppliesToPlatform reports whether the rule's platform filter admits goos.
func (r SandboxRule) AppliesToPlatform(goos string) bool {
	if len(r.PlatformTags) == 0 {
		return true
	}
	for _, tag := range r.PlatformTags {
		if tag == goos {
			return true
		}
	}
	return false
}

// Violation is an append-only record of a denied sandboxed attempt.
type Violation struct {
	ID           string        `json:"id"`
	ProfileID    string        `json:"profile_id"`
	RunID        string        `json:"run_id"`
	Operation    OperationKind `json:"operation"`
	PatternValue string        `json:"pattern_value"`
	ProcessName  string        `json:"process_name"`
	PID          int           `json:"pid"`
	CreatedAt    time.Time     `json:"created_at"`
}

// CheckpointMetadata carries the derived summary fields of a Checkpoint.
type CheckpointMetadata struct {
	TotalTokens        int  `json:"total_tokens"`
	FileChangeCount    int  `json:"file_change_count"`
	IsUserPrompt       bool `json:"is_user_prompt"`
	IsAssistantPrompt  bool `json:"is_assistant_prompt"`
	DestructiveToolUse bool `json:"destructive_tool_use"`
}

// Checkpoint is an immutable timeline node.
type Checkpoint struct {
	ID           string             `json:"id"`
	SessionID    string             `json:"session_id"`
	ProjectID    string             `json:"project_id"`
	ParentID     string             `json:"parent_id,omitempty"`
	MessageIndex int                `json:"message_index"`
	Timestamp    time.Time          `json:"timestamp"`
	Description  string             `json:"description,omitempty"`
	Metadata     CheckpointMetadata `json:"metadata"`
}

// FileSnapshot is a per-checkpoint record for one tracked path.
type FileSnapshot struct {
	Path      string `json:"path"`
	Hash      string `json:"hash"`
	IsDeleted bool   `json:"is_deleted"`
	Mode      uint32 `json:"mode,omitempty"`
	Size      int64  `json:"size"`
}

// AutoCheckpointStrategy selects when the Timeline Manager auto-creates
// checkpoints.
type AutoCheckpointStrategy string

const (
	StrategyManual    AutoCheckpointStrategy = "manual"
	StrategyPerPrompt AutoCheckpointStrategy = "per_prompt"
	StrategyPerTool   AutoCheckpointStrategy = "per_tool_use"
	StrategySmart     AutoCheckpointStrategy = "smart"
)

// TimelineNode is one checkpoint's position in the branching tree (spec
// §4.6: "node = checkpoint id + parent id + children ids + metadata
// mirror").
type TimelineNode struct {
	ID       string             `json:"id"`
	ParentID string             `json:"parent_id,omitempty"`
	Children []string           `json:"children,omitempty"`
	Metadata CheckpointMetadata `json:"metadata"`
}

// SessionTimeline is the per-session timeline settings, summary, and
// full branching tree.
type SessionTimeline struct {
	SessionID   string                  `json:"session_id"`
	RootID      string                  `json:"root_id"`
	CurrentID   string                  `json:"current_id"`
	AutoEnabled bool                    `json:"auto_enabled"`
	Strategy    AutoCheckpointStrategy  `json:"strategy"`
	TotalCount  int                     `json:"total_count"`
	Nodes       map[string]TimelineNode `json:"nodes"`
}

// RestoreReport is the outcome of a restore operation; partial file
// failures surface as warnings rather than an error (spec §7).
type RestoreReport struct {
	CheckpointID string   `json:"checkpoint_id"`
	FilesWritten int      `json:"files_written"`
	FilesDeleted int      `json:"files_deleted"`
	Warnings     []string `json:"warnings,omitempty"`
}

// FileDiffEntry describes one file's change between two checkpoints.
type FileDiffEntry struct {
	Path    string `json:"path"`
	OldSize int64  `json:"old_size,omitempty"`
	NewSize int64  `json:"new_size,omitempty"`
}

// CheckpointDiff is the result of comparing two checkpoints.
type CheckpointDiff struct {
	Added      []FileDiffEntry `json:"added"`
	Removed    []FileDiffEntry `json:"removed"`
	Modified   []FileDiffEntry `json:"modified"`
	TokenDelta int             `json:"token_delta"`
}

// ProcessInfo is the Live Registry's public snapshot of a running run.
type ProcessInfo struct {
	RunID       string    `json:"run_id"`
	AgentID     string    `json:"agent_id,omitempty"`
	PID         int       `json:"pid"`
	ProjectPath string    `json:"project_path"`
	StartedAt   time.Time `json:"started_at"`
}

// PlatformCapabilities reports which sandbox operation kinds the running
// OS can enforce.
type PlatformCapabilities struct {
	OS                  string          `json:"os"`
	SandboxingSupported bool            `json:"sandboxing_supported"`
	PerOperationSupport map[string]bool `json:"per_op_support"`
}
