package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/n1ntencube/CubicLauncher/install"
)

func TestPlainSinkSkipsRepeats(t *testing.T) {
	var buf bytes.Buffer
	sink := plainSink(&buf)

	sink(install.Progress{Stage: install.StageClient, Status: "downloading-client", Percent: 12.1})
	sink(install.Progress{Stage: install.StageClient, Status: "downloading-client", Percent: 12.7})
	sink(install.Progress{Stage: install.StageClient, Status: "downloading-client", Percent: 13.0})
	sink(install.Progress{Stage: install.StageMods, Status: "downloading-mod", Percent: 61, ModName: "a.jar"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), buf.String())
	}

	if !strings.Contains(lines[2], "(a.jar)") {
		t.Fatalf("mod name missing: %q", lines[2])
	}
}

func TestProgressModelView(t *testing.T) {
	var m progressModel
	next, _ := m.Update(progressMsg(install.Progress{Stage: install.StageMods, Status: "downloading-mod", Percent: 50, ModName: "b.jar"}))

	view := next.View()
	if !strings.Contains(view, "50%") || !strings.Contains(view, "b.jar") {
		t.Fatalf("unexpected view: %q", view)
	}

	next, cmd := next.Update(finishedMsg{err: errors.New("boom")})
	if cmd == nil {
		t.Fatalf("expected quit command after finish")
	}

	if !strings.Contains(next.View(), "failed") {
		t.Fatalf("expected failure marker in view")
	}
}

func TestConfigCommandPrintsYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("game:\n  version: 1.7.10\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	root, _ := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"--config", path, "config"})

	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if !strings.Contains(out.String(), "version: 1.7.10") {
		t.Fatalf("config output missing override: %s", out.String())
	}
}

func TestMissingExplicitConfig(t *testing.T) {
	root, _ := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "config"})

	if err := root.Execute(); err == nil {
		t.Fatalf("expected error for missing explicit config file")
	}
}
