// Package sandbox translates stored SandboxRule rows and a run's
// effective permission toggles into an OS-enforceable Profile plus a
// serializable mirror (spec §4.2). It never executes anything itself —
// the actual enforcement primitives are consumed from golang.org/x/sys,
// the stand-in for the OS sandboxing library per spec §1's "Non-goals".
package sandbox

import (
	"fmt"
	"log"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/harborctl/sentinel/internal/apperr"
	"github.com/harborctl/sentinel/internal/types"
)

// Operation is one normalized, OS-enforceable rule after permission
// gating, platform filtering, and placeholder expansion.
type Operation struct {
	Kind      types.OperationKind `json:"kind"`
	Value     string              `json:"value"` // path or host:port
	IsSubpath bool                `json:"is_subpath"`
}

// Profile is the in-memory object handed to the Process Supervisor at
// spawn time. An empty, disabled profile installs no restrictions (spec
// §4.2 step 1).
type Profile struct {
	Enabled    bool        `json:"enabled"`
	Operations []Operation `json:"operations"`
}

// Input bundles everything the Builder needs.
type Input struct {
	Rules       []*types.SandboxRule
	Permissions types.Permissions
	ProjectPath string
	HomeDir     string
}

// Builder implements the spec §4.2 algorithm.
type Builder struct {
	// GOOS is overridable in tests; defaults to runtime.GOOS.
	GOOS string
}

// NewBuilder returns a Builder bound to the running OS.
func NewBuilder() *Builder {
	return &Builder{GOOS: runtime.GOOS}
}

// childSideActivation gates a second enforcement path where the spawned
// process re-reads its own sandbox env vars and self-restricts. Left
// false: parent-side Apply at spawn is the only enforcement mechanism.
const childSideActivation = false

// Build runs the six-step algorithm of spec §4.2 and returns both the
// in-memory profile and its serialized mirror.
func (b *Builder) Build(in Input) (*Profile, error) {
	goos := b.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}

	// Step 1: sandbox disabled → empty profile, still built (not skipped)
	// so logging always has a serialized mirror to show.
	if !in.Permissions.SandboxEnabled {
		return &Profile{Enabled: false}, nil
	}

	projectPath, err := filepath.Abs(in.ProjectPath)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "resolve project path", err)
	}
	homeDir := in.HomeDir

	var ops []Operation
	sawProjectRead := false

	for _, rule := range in.Rules {
		// Step 2: enabled + platform filter.
		if !rule.Enabled || !rule.AppliesToPlatform(goos) {
			continue
		}
		// Step 3: permission gating.
		switch rule.Operation {
		case types.OpFileReadAll, types.OpFileReadMetadata:
			if !in.Permissions.FileRead {
				continue
			}
		case types.OpNetworkOutbound:
			if !in.Permissions.Network {
				continue
			}
		case types.OpSystemInfoRead:
			// Always kept when the sandbox is on.
		default:
			// Unknown operation kinds are skipped with a warning (step 6).
			log.Printf("[SANDBOX] rule %s: skipping unknown operation kind %q", rule.ID, rule.Operation)
			continue
		}

		op, err := expandRule(rule, projectPath, homeDir)
		if err != nil {
			return nil, err
		}

		ops = append(ops, op)
		if rule.Operation == types.OpFileReadAll && op.IsSubpath && withinRoot(op.Value, projectPath) {
			sawProjectRead = true
		}
	}

	// Step 5: guarantee clause — synthesize project-subtree read access if
	// file_read is on and nothing already granted it.
	if in.Permissions.FileRead && !sawProjectRead {
		ops = append(ops, Operation{Kind: types.OpFileReadAll, Value: projectPath, IsSubpath: true})
	}

	return &Profile{Enabled: true, Operations: ops}, nil
}

// expandRule performs placeholder expansion and canonicalization (step
// 4). A pattern that canonicalizes outside its declared root is rejected
// rather than silently falling through.
func expandRule(rule *types.SandboxRule, projectPath, homeDir string) (Operation, error) {
	value := rule.PatternValue
	value = strings.ReplaceAll(value, "{{PROJECT_PATH}}", projectPath)
	value = strings.ReplaceAll(value, "{{HOME}}", homeDir)

	switch rule.PatternKind {
	case types.PatternPort, types.PatternHost:
		// Not filesystem paths; no canonicalization needed.
		return Operation{Kind: rule.Operation, Value: value, IsSubpath: false}, nil
	}

	var root string
	switch {
	case strings.Contains(rule.PatternValue, "{{PROJECT_PATH}}"):
		root = projectPath
	case strings.Contains(rule.PatternValue, "{{HOME}}"):
		root = homeDir
	default:
		root = ""
	}

	clean, err := filepath.Abs(value)
	if err != nil {
		return Operation{}, apperr.Wrap(apperr.KindValidation, fmt.Sprintf("canonicalize pattern %q", rule.PatternValue), err)
	}
	if root != "" && !withinRoot(clean, root) {
		return Operation{}, apperr.New(apperr.KindValidation,
			fmt.Sprintf("rule %s pattern %q expands outside its declared root %q", rule.ID, rule.PatternValue, root))
	}

	isSubpath := rule.PatternKind == types.PatternSubpath || rule.PatternKind == types.PatternPrefix
	return Operation{Kind: rule.Operation, Value: clean, IsSubpath: isSubpath}, nil
}

func withinRoot(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}
