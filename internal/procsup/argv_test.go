package procsup

import (
	"os"
	"testing"
)

func TestBuildArgvOrderMatchesSpec(t *testing.T) {
	got := BuildArgv(Spec{Task: "fix the bug", SystemPrompt: "be terse", Model: "sonnet"})
	want := []string{
		"-p", "fix the bug",
		"--append-system-prompt", "be terse",
		"--model", "sonnet",
		"--output-format", "stream-json",
		"--verbose",
		"--dangerously-skip-permissions",
	}
	if len(got) != len(want) {
		t.Fatalf("BuildArgv() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("BuildArgv()[%d] = %q, want %q (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestBuildArgvOmitsAbsentOptionals(t *testing.T) {
	got := BuildArgv(Spec{Task: "just the task"})
	for _, flag := range []string{"--append-system-prompt", "--model"} {
		for _, g := range got {
			if g == flag {
				t.Fatalf("BuildArgv() included %q with no value set: %v", flag, got)
			}
		}
	}
}

func TestBuildEnvAllowListOnlyIncludesConfiguredKeys(t *testing.T) {
	t.Setenv("PATH", "/usr/bin")
	t.Setenv("HOME", "/home/tester")
	t.Setenv("SENTINEL_TEST_SECRET", "should-not-leak")

	env := BuildEnv(Spec{})
	for _, kv := range env {
		if len(kv) >= len("SENTINEL_TEST_SECRET") && kv[:len("SENTINEL_TEST_SECRET")] == "SENTINEL_TEST_SECRET" {
			t.Fatalf("BuildEnv() leaked an unlisted variable: %v", env)
		}
	}

	found := false
	for _, kv := range env {
		if kv == "HOME=/home/tester" {
			found = true
		}
	}
	if !found {
		t.Fatalf("BuildEnv() = %v, want HOME included from the default allow-list", env)
	}
}

func TestBuildEnvIncludesExtraAllowListKeys(t *testing.T) {
	t.Setenv("SENTINEL_CUSTOM_KEY", "value")
	env := BuildEnv(Spec{ExtraEnvAllowList: []string{"SENTINEL_CUSTOM_KEY"}})
	found := false
	for _, kv := range env {
		if kv == "SENTINEL_CUSTOM_KEY=value" {
			found = true
		}
	}
	if !found {
		t.Fatalf("BuildEnv() = %v, want the configured extra key included", env)
	}
}

func TestResolveBinaryMissingConfiguredPathIsBinaryNotFound(t *testing.T) {
	_, err := ResolveBinary("/no/such/path/claude")
	if err == nil {
		t.Fatal("ResolveBinary() error = nil, want binary_not_found")
	}
}

func TestResolveBinaryFindsConfiguredPath(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/fake-claude"
	if err := os.WriteFile(path, []byte("#!/bin/sh\necho hi\n"), 0o755); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	got, err := ResolveBinary(path)
	if err != nil {
		t.Fatalf("ResolveBinary() error = %v", err)
	}
	if got != path {
		t.Fatalf("ResolveBinary() = %q, want %q", got, path)
	}
}
