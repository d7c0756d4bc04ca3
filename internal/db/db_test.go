package db

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenCreatesWorkspaceAndEnforcesForeignKeys(t *testing.T) {
	workspace := t.TempDir()
	conn, err := Open(Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()

	if _, err := os.Stat(filepath.Join(workspace, workspaceDir)); err != nil {
		t.Fatalf("workspace dir not created: %v", err)
	}

	var fk int
	if err := conn.QueryRow(`PRAGMA foreign_keys`).Scan(&fk); err != nil {
		t.Fatalf("read foreign_keys pragma: %v", err)
	}
	if fk != 1 {
		t.Fatalf("foreign_keys = %d, want 1", fk)
	}

	var mode string
	if err := conn.QueryRow(`PRAGMA journal_mode`).Scan(&mode); err != nil {
		t.Fatalf("read journal_mode pragma: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("journal_mode = %q, want wal", mode)
	}
}

func TestPathLayout(t *testing.T) {
	got := Path("/work/space")
	want := filepath.Join("/work/space", workspaceDir, dbFileName)
	if got != want {
		t.Fatalf("Path = %q, want %q", got, want)
	}
	if Path("") != filepath.Join(".", workspaceDir, dbFileName) {
		t.Fatalf("empty workspace should default to current directory")
	}
}
