package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/harborctl/sentinel/internal/apperr"
	"github.com/harborctl/sentinel/internal/types"
)

func TestHashContentIsStableSHA256(t *testing.T) {
	h1 := HashContent([]byte("hello world"))
	h2 := HashContent([]byte("hello world"))
	if h1 != h2 {
		t.Fatalf("HashContent() not stable: %q vs %q", h1, h2)
	}
	if len(h1) != 64 {
		t.Fatalf("HashContent() length = %d, want 64 hex chars (256 bits)", len(h1))
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	store := &Store{StateDir: t.TempDir()}
	checkpoint := &types.Checkpoint{ID: "cp-1", SessionID: "sess-1", ProjectID: "proj-1"}
	timeline := &types.SessionTimeline{SessionID: "sess-1", RootID: "cp-1", CurrentID: "cp-1"}
	snapshots := []types.FileSnapshot{
		{Path: "main.go", Size: 13},
		{Path: "deleted.go", IsDeleted: true},
	}
	contents := map[string][]byte{"main.go": []byte("package main\n")}
	messages := [][]byte{[]byte(`{"role":"user"}`), []byte(`{"role":"assistant"}`)}

	if err := store.Save("proj-1", "sess-1", timeline, checkpoint, snapshots, contents, messages); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := store.Load("proj-1", "sess-1", "cp-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Checkpoint.ID != "cp-1" {
		t.Fatalf("loaded checkpoint id = %q, want cp-1", loaded.Checkpoint.ID)
	}
	if string(loaded.Contents["main.go"]) != "package main\n" {
		t.Fatalf("loaded content = %q, want %q", loaded.Contents["main.go"], "package main\n")
	}
	if len(loaded.Messages) != 2 || string(loaded.Messages[0]) != `{"role":"user"}` {
		t.Fatalf("loaded messages = %v, want 2 decoded lines", loaded.Messages)
	}

	var foundDeleted bool
	for _, s := range loaded.Snapshots {
		if s.Path == "deleted.go" && s.IsDeleted {
			foundDeleted = true
		}
	}
	if !foundDeleted {
		t.Fatalf("loaded snapshots = %v, want deleted.go marked deleted", loaded.Snapshots)
	}
}

func TestLoadMissingCheckpointIsNotFound(t *testing.T) {
	store := &Store{StateDir: t.TempDir()}
	_, err := store.Load("proj-1", "sess-1", "ghost")
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("Load() error = %v, want KindNotFound", err)
	}
}

func TestSaveSkipsWritingAnExistingBlob(t *testing.T) {
	store := &Store{StateDir: t.TempDir()}
	layout := NewLayout(store.StateDir, "proj-1", "sess-1")
	raw := []byte("shared content")
	hash := HashContent(raw)

	hash1, err := store.writeBlob(layout, raw)
	if err != nil {
		t.Fatalf("writeBlob() error = %v", err)
	}
	info1, err := os.Stat(layout.ContentPoolFile(hash1))
	if err != nil {
		t.Fatalf("stat blob: %v", err)
	}

	hash2, err := store.writeBlob(layout, raw)
	if err != nil {
		t.Fatalf("writeBlob() second call error = %v", err)
	}
	if hash2 != hash {
		t.Fatalf("writeBlob() hash mismatch: %q vs %q", hash2, hash)
	}
	info2, _ := os.Stat(layout.ContentPoolFile(hash2))
	if !info1.ModTime().Equal(info2.ModTime()) {
		t.Fatalf("writeBlob() rewrote an already-present blob; dedup should skip the write")
	}
}

func TestGCDeletesUnreferencedBlobs(t *testing.T) {
	store := &Store{StateDir: t.TempDir()}
	layout := NewLayout(store.StateDir, "proj-1", "sess-1")

	keepHash, err := store.writeBlob(layout, []byte("keep me"))
	if err != nil {
		t.Fatalf("writeBlob() error = %v", err)
	}
	dropHash, err := store.writeBlob(layout, []byte("drop me"))
	if err != nil {
		t.Fatalf("writeBlob() error = %v", err)
	}

	deleted, err := store.GC("proj-1", "sess-1", map[string]struct{}{keepHash: {}})
	if err != nil {
		t.Fatalf("GC() error = %v", err)
	}
	if deleted != 1 {
		t.Fatalf("GC() deleted = %d, want 1", deleted)
	}
	if _, err := os.Stat(layout.ContentPoolFile(keepHash)); err != nil {
		t.Fatalf("GC() removed a live blob: %v", err)
	}
	if _, err := os.Stat(layout.ContentPoolFile(dropHash)); !os.IsNotExist(err) {
		t.Fatalf("GC() did not remove the unreferenced blob")
	}
}

func TestAtomicWriteLeavesNoTempFilesBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "file.json")
	if err := atomicWrite(path, []byte(`{"a":1}`)); err != nil {
		t.Fatalf("atomicWrite() error = %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(dir, "sub"))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "file.json" {
		t.Fatalf("dir contents = %v, want only file.json (no leftover temp files)", entries)
	}
}
