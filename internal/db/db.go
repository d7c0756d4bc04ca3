package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const (
	workspaceDir       = ".cutroom"
	dbFileName         = "cutroom.db"
	defaultBusyTimeout = 5 * time.Second
)

// Config controls how the workspace database is opened.
type Config struct {
	Workspace string
	// BusyTimeout bounds how long a writer waits on a locked database
	// before SQLITE_BUSY. Zero means the default of 5s.
	BusyTimeout time.Duration
}

func (c Config) workspace() string {
	if c.Workspace == "" {
		return "."
	}
	return c.Workspace
}

// EnsureWorkspace creates the workspace data directory if missing and
// returns its path.
func EnsureWorkspace(workspace string) (string, error) {
	if workspace == "" {
		workspace = "."
	}
	dir := filepath.Join(workspace, workspaceDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create workspace dir: %w", err)
	}
	return dir, nil
}

// Open opens (creating on first use) the workspace SQLite database. WAL mode
// plus a busy timeout keep concurrent request handlers from tripping over
// each other's writes, and foreign keys are enforced.
func Open(cfg Config) (*sql.DB, error) {
	if _, err := EnsureWorkspace(cfg.workspace()); err != nil {
		return nil, err
	}
	timeout := cfg.BusyTimeout
	if timeout <= 0 {
		timeout = defaultBusyTimeout
	}
	dsn := fmt.Sprintf(
		"file:%s?cache=shared&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)",
		Path(cfg.workspace()), timeout.Milliseconds(),
	)
	return sql.Open("sqlite", dsn)
}

// Path returns the database file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, workspaceDir, dbFileName)
}
