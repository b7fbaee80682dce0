package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/harborctl/sentinel/internal/apperr"
	"github.com/harborctl/sentinel/internal/types"
)

// Store implements the on-disk checkpoint layout of spec §4.6.
type Store struct {
	StateDir string
}

// fileRef mirrors FileSnapshot but points at the content pool instead of
// carrying raw bytes, matching the on-disk refs/<path>.json shape.
type fileRef struct {
	Path      string `json:"path"`
	Hash      string `json:"hash,omitempty"`
	IsDeleted bool   `json:"is_deleted"`
	Mode      uint32 `json:"mode,omitempty"`
	Size      int64  `json:"size"`
}

// Save writes compressed messages, each snapshot's blob (skipping
// already-present hashes) and ref, then atomically updates timeline.json
// (spec §4.6 save).
func (s *Store) Save(projectID, sessionID string, timeline *types.SessionTimeline, checkpoint *types.Checkpoint, snapshots []types.FileSnapshot, fileContents map[string][]byte, messages [][]byte) error {
	layout := NewLayout(s.StateDir, projectID, sessionID)

	metaJSON, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("snapshot: marshal checkpoint metadata: %w", err)
	}
	if err := atomicWrite(layout.MetadataFile(checkpoint.ID), metaJSON); err != nil {
		return err
	}

	if err := s.writeMessages(layout, checkpoint.ID, messages); err != nil {
		return err
	}

	for _, snap := range snapshots {
		ref := fileRef{Path: snap.Path, IsDeleted: snap.IsDeleted, Mode: snap.Mode, Size: snap.Size}
		if !snap.IsDeleted {
			raw, ok := fileContents[snap.Path]
			if !ok {
				return apperr.New(apperr.KindValidation, "snapshot: missing content for tracked path "+snap.Path)
			}
			hash, err := s.writeBlob(layout, raw)
			if err != nil {
				return err
			}
			ref.Hash = hash
		}
		refJSON, err := json.Marshal(ref)
		if err != nil {
			return fmt.Errorf("snapshot: marshal ref for %s: %w", snap.Path, err)
		}
		if err := atomicWrite(layout.RefFile(checkpoint.ID, snap.Path), refJSON); err != nil {
			return err
		}
	}

	return s.SaveTimelineOnly(projectID, sessionID, timeline)
}

// SaveTimelineOnly atomically rewrites timeline.json without touching
// any checkpoint data, used when only session-level settings (the
// auto-checkpoint flag and strategy) change (spec §6
// update_checkpoint_settings).
func (s *Store) SaveTimelineOnly(projectID, sessionID string, timeline *types.SessionTimeline) error {
	layout := NewLayout(s.StateDir, projectID, sessionID)
	timelineJSON, err := json.Marshal(timeline)
	if err != nil {
		return fmt.Errorf("snapshot: marshal timeline: %w", err)
	}
	return atomicWrite(layout.TimelineFile(), timelineJSON)
}

func (s *Store) writeMessages(layout Layout, checkpointID string, messages [][]byte) error {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("snapshot: create zstd encoder: %w", err)
	}
	for _, m := range messages {
		if _, err := enc.Write(m); err != nil {
			enc.Close()
			return fmt.Errorf("snapshot: compress message log: %w", err)
		}
		if _, err := enc.Write([]byte("\n")); err != nil {
			enc.Close()
			return fmt.Errorf("snapshot: compress message log: %w", err)
		}
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("snapshot: finalize message log: %w", err)
	}
	return atomicWrite(layout.MessagesFile(checkpointID), buf.Bytes())
}

// LoadResult is the decoded form of one checkpoint (spec §4.6 load).
type LoadResult struct {
	Checkpoint *types.Checkpoint
	Snapshots  []types.FileSnapshot
	Contents   map[string][]byte
	Messages   [][]byte
}

// Load reads refs, resolves the content pool, and decompresses messages
// for checkpointID.
func (s *Store) Load(projectID, sessionID, checkpointID string) (*LoadResult, error) {
	layout := NewLayout(s.StateDir, projectID, sessionID)

	metaBytes, err := os.ReadFile(layout.MetadataFile(checkpointID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.New(apperr.KindNotFound, "checkpoint not found: "+checkpointID)
		}
		return nil, fmt.Errorf("snapshot: read checkpoint metadata: %w", err)
	}
	var checkpoint types.Checkpoint
	if err := json.Unmarshal(metaBytes, &checkpoint); err != nil {
		return nil, apperr.Wrap(apperr.KindCorruption, "unmarshal checkpoint metadata", err)
	}

	refsDir := filepath.Join(layout.Root, "files", "refs", checkpointID)
	entries, err := os.ReadDir(refsDir)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("snapshot: list refs: %w", err)
	}

	var snapshots []types.FileSnapshot
	contents := make(map[string][]byte)
	for _, entry := range entries {
		refBytes, err := os.ReadFile(filepath.Join(refsDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("snapshot: read ref %s: %w", entry.Name(), err)
		}
		var ref fileRef
		if err := json.Unmarshal(refBytes, &ref); err != nil {
			return nil, apperr.Wrap(apperr.KindCorruption, "unmarshal ref "+entry.Name(), err)
		}
		snapshots = append(snapshots, types.FileSnapshot{
			Path: ref.Path, Hash: ref.Hash, IsDeleted: ref.IsDeleted, Mode: ref.Mode, Size: ref.Size,
		})
		if !ref.IsDeleted {
			raw, err := s.readBlob(layout, ref.Hash)
			if err != nil {
				return nil, err
			}
			contents[ref.Path] = raw
		}
	}

	messages, err := s.readMessages(layout, checkpointID)
	if err != nil {
		return nil, err
	}

	return &LoadResult{Checkpoint: &checkpoint, Snapshots: snapshots, Contents: contents, Messages: messages}, nil
}

func (s *Store) readMessages(layout Layout, checkpointID string) ([][]byte, error) {
	f, err := os.Open(layout.MessagesFile(checkpointID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("snapshot: open message log: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("snapshot: create zstd decoder: %w", err)
	}
	defer dec.Close()

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("snapshot: decompress message log: %w", err)
	}
	var out [][]byte
	for _, line := range bytes.Split(bytes.TrimRight(raw, "\n"), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		out = append(out, cp)
	}
	return out, nil
}
