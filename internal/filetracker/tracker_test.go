package filetracker

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDiscoverFindsFilesAndIgnoresVendorDirs(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "main.go"), "package main\n")
	mustWrite(t, filepath.Join(dir, "node_modules", "pkg", "index.js"), "console.log(1)\n")
	mustWrite(t, filepath.Join(dir, ".git", "HEAD"), "ref: refs/heads/main\n")

	tr := New(dir, "")
	if err := tr.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	all := tr.All()
	paths := make(map[string]bool)
	for _, f := range all {
		paths[f.Path] = true
	}
	if !paths["main.go"] {
		t.Fatalf("All() = %v, want main.go tracked", all)
	}
	for p := range paths {
		if strings.HasPrefix(p, "node_modules") || strings.HasPrefix(p, ".git") {
			t.Fatalf("All() tracked an ignored path: %q", p)
		}
	}
}

func TestDiscoverMarksNewFilesModified(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "main.go"), "package main\n")

	tr := New(dir, "")
	if err := tr.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	for _, f := range tr.All() {
		if f.Path == "main.go" && !f.Modified {
			t.Fatalf("newly discovered file main.go should start modified=true")
		}
	}
}

func TestTouchDetectsContentChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")
	mustWrite(t, path, "package main\n")

	tr := New(dir, "")
	if err := tr.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	tr.ResetModified()

	if _, err := tr.Touch("main.go"); err != nil {
		t.Fatalf("Touch() error = %v", err)
	}
	for _, f := range tr.Modified() {
		if f.Path == "main.go" {
			t.Fatal("Touch() with no content change marked the file modified")
		}
	}

	mustWrite(t, path, "package main\n\nfunc main() {}\n")
	state, err := tr.Touch("main.go")
	if err != nil {
		t.Fatalf("Touch() error = %v", err)
	}
	if !state.Modified {
		t.Fatal("Touch() after content change should report modified=true")
	}
}

func TestTouchDetectsDeletion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.go")
	mustWrite(t, path, "package main\n")

	tr := New(dir, "")
	if err := tr.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	tr.ResetModified()

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove fixture: %v", err)
	}
	state, err := tr.Touch("gone.go")
	if err != nil {
		t.Fatalf("Touch() error = %v", err)
	}
	if state.Exists || !state.Modified {
		t.Fatalf("Touch() after deletion = %+v, want exists=false modified=true", state)
	}
}

func TestResetModifiedClearsFlags(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "a.go"), "package a\n")

	tr := New(dir, "")
	if err := tr.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(tr.Modified()) == 0 {
		t.Fatal("expected newly discovered files to be modified before reset")
	}
	tr.ResetModified()
	if len(tr.Modified()) != 0 {
		t.Fatalf("Modified() after ResetModified() = %v, want empty", tr.Modified())
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}
