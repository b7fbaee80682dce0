package timeline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/harborctl/sentinel/internal/apperr"
	"github.com/harborctl/sentinel/internal/filetracker"
	"github.com/harborctl/sentinel/internal/snapshot"
	"github.com/harborctl/sentinel/internal/types"
)

// Manager is the per-session Timeline Manager of spec §4.8: a File
// Tracker, an in-memory message stream, and an in-memory mirror of the
// SessionTimeline tree. All mutating operations are serialized; diff and
// GetTimeline may run concurrently via the reader side of the lock.
type Manager struct {
	SessionID   string
	ProjectID   string
	ProjectPath string

	store            *snapshot.Store
	tracker          *filetracker.Tracker
	destructiveTools map[string]struct{}

	mu                 sync.RWMutex
	timeline           types.SessionTimeline
	messages           [][]byte
	pendingDestructive bool
}

// New constructs a Manager with a fresh root checkpoint, used when no
// timeline.json exists yet for this session (spec §4.9's get_or_create).
func New(store *snapshot.Store, sessionID, projectID, projectPath string, strategy types.AutoCheckpointStrategy) (*Manager, error) {
	tracker := filetracker.New(projectPath, store.StateDir)
	if err := tracker.Discover(); err != nil {
		return nil, fmt.Errorf("timeline: initial discover: %w", err)
	}

	rootID := checkpointID("", time.Now(), 0)
	m := &Manager{
		SessionID:        sessionID,
		ProjectID:        projectID,
		ProjectPath:      projectPath,
		store:            store,
		tracker:          tracker,
		destructiveTools: DefaultDestructiveTools,
		timeline: types.SessionTimeline{
			SessionID:   sessionID,
			RootID:      rootID,
			CurrentID:   rootID,
			AutoEnabled: strategy != types.StrategyManual,
			Strategy:    strategy,
			TotalCount:  1,
			Nodes: map[string]types.TimelineNode{
				rootID: {ID: rootID},
			},
		},
	}

	root := &types.Checkpoint{ID: rootID, SessionID: sessionID, ProjectID: projectID, MessageIndex: 0, Timestamp: time.Now(), Description: "root"}
	if err := store.Save(projectID, sessionID, &m.timeline, root, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("timeline: save root checkpoint: %w", err)
	}
	return m, nil
}

// Load reconstructs a Manager from an on-disk timeline.json, used when
// resuming a session the Manager Directory has not yet cached.
func Load(store *snapshot.Store, sessionID, projectID, projectPath string) (*Manager, error) {
	layout := snapshot.NewLayout(store.StateDir, projectID, sessionID)
	data, err := os.ReadFile(layout.TimelineFile())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.New(apperr.KindNotFound, "no timeline for session "+sessionID)
		}
		return nil, fmt.Errorf("timeline: read timeline.json: %w", err)
	}

	var tl types.SessionTimeline
	if err := json.Unmarshal(data, &tl); err != nil {
		return nil, apperr.Wrap(apperr.KindCorruption, "unmarshal timeline.json", err)
	}

	tracker := filetracker.New(projectPath, store.StateDir)
	if err := tracker.Discover(); err != nil {
		return nil, fmt.Errorf("timeline: discover on load: %w", err)
	}

	return &Manager{
		SessionID: sessionID, ProjectID: projectID, ProjectPath: projectPath,
		store: store, tracker: tracker, destructiveTools: DefaultDestructiveTools,
		timeline: tl,
	}, nil
}

// GetTimeline returns a copy of the current in-memory timeline summary
// (a reader operation, per spec §4.8's concurrency model).
func (m *Manager) GetTimeline() types.SessionTimeline {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.timeline
}

// UpdateSettings changes the session's auto-checkpoint enablement and
// strategy (spec §6 update_checkpoint_settings).
func (m *Manager) UpdateSettings(auto bool, strategy types.AutoCheckpointStrategy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeline.AutoEnabled = auto
	m.timeline.Strategy = strategy
	return m.store.SaveTimelineOnly(m.ProjectID, m.SessionID, &m.timeline)
}

// AppendMessage appends line to the in-memory stream, touches any paths
// it names as modified, and evaluates the auto-checkpoint policy,
// returning the new checkpoint if one was created.
func (m *Manager) AppendMessage(line []byte) (*types.Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.messages = append(m.messages, append([]byte(nil), line...))
	c := classify(line, m.destructiveTools)

	for _, p := range c.ModifiedPaths {
		if _, err := m.tracker.Touch(p); err != nil {
			return nil, fmt.Errorf("timeline: touch %s: %w", p, err)
		}
	}

	if !m.shouldAutoCheckpoint(c) {
		return nil, nil
	}
	m.pendingDestructive = c.IsDestructive
	return m.createCheckpointLocked("")
}

func (m *Manager) shouldAutoCheckpoint(c classification) bool {
	if !m.timeline.AutoEnabled {
		return false
	}
	switch m.timeline.Strategy {
	case types.StrategyManual:
		return false
	case types.StrategyPerPrompt:
		return c.IsUserPrompt
	case types.StrategyPerTool:
		return c.IsToolUse
	case types.StrategySmart:
		return c.IsDestructive
	default:
		return false
	}
}

// CreateCheckpoint discovers and touches every tracked file, collects
// snapshots for changed/deleted paths, saves via the Snapshot Store, and
// advances the tree's current pointer.
func (m *Manager) CreateCheckpoint(description string) (*types.Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCheckpointLocked(description)
}

func (m *Manager) createCheckpointLocked(description string) (*types.Checkpoint, error) {
	if err := m.tracker.Discover(); err != nil {
		return nil, fmt.Errorf("timeline: discover: %w", err)
	}
	for _, f := range m.tracker.All() {
		if _, err := m.tracker.Touch(f.Path); err != nil {
			return nil, fmt.Errorf("timeline: touch %s: %w", f.Path, err)
		}
	}

	changed := m.tracker.Modified()
	var fileSnapshots []types.FileSnapshot
	contents := make(map[string][]byte)
	for _, f := range changed {
		fileSnapshots = append(fileSnapshots, types.FileSnapshot{
			Path: f.Path, Hash: f.Hash, IsDeleted: !f.Exists, Mode: f.Mode, Size: f.Size,
		})
		if f.Exists {
			raw, err := os.ReadFile(filepath.Join(m.ProjectPath, f.Path))
			if err != nil {
				return nil, fmt.Errorf("timeline: read %s for checkpoint: %w", f.Path, err)
			}
			contents[f.Path] = raw
		}
	}

	parentID := m.timeline.CurrentID
	id := checkpointID(parentID, time.Now(), len(m.messages))
	cp := &types.Checkpoint{
		ID: id, SessionID: m.SessionID, ProjectID: m.ProjectID, ParentID: parentID,
		MessageIndex: len(m.messages), Timestamp: time.Now(), Description: description,
		Metadata: types.CheckpointMetadata{FileChangeCount: len(fileSnapshots), DestructiveToolUse: m.pendingDestructive},
	}
	m.pendingDestructive = false

	if err := m.store.Save(m.ProjectID, m.SessionID, &m.timeline, cp, fileSnapshots, contents, m.messages); err != nil {
		return nil, err
	}

	m.applyNewCheckpoint(cp, parentID)
	m.tracker.ResetModified()
	return cp, nil
}

func (m *Manager) applyNewCheckpoint(cp *types.Checkpoint, parentID string) {
	if m.timeline.Nodes == nil {
		m.timeline.Nodes = map[string]types.TimelineNode{}
	}
	m.timeline.Nodes[cp.ID] = types.TimelineNode{ID: cp.ID, ParentID: parentID, Metadata: cp.Metadata}
	if parent, ok := m.timeline.Nodes[parentID]; ok {
		parent.Children = append(parent.Children, cp.ID)
		m.timeline.Nodes[parentID] = parent
	}
	m.timeline.CurrentID = cp.ID
	m.timeline.TotalCount++
}

// checkpointID hashes parent id + timestamp + messages length into a
// stable, content-derived identifier (spec §4.8).
func checkpointID(parentID string, ts time.Time, messageCount int) string {
	h := sha256.New()
	h.Write([]byte(parentID))
	h.Write([]byte(ts.Format(time.RFC3339Nano)))
	fmt.Fprintf(h, "%d", messageCount)
	return hex.EncodeToString(h.Sum(nil))[:16]
}
