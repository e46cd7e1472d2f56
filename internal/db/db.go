package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const (
	stateDir      = ".spyagency"
	defaultDBName = "sandbox.db"
)

type Config struct {
	Workspace string
}

func stateDirPath(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, stateDir)
}

// EnsureWorkspace creates the sandbox state directory if missing.
func EnsureWorkspace(workspace string) (string, error) {
	path := stateDirPath(workspace)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// Open opens the sandbox SQLite database with foreign keys on. Writes are
// serialized on a single connection.
func Open(cfg Config) (*sql.DB, error) {
	if _, err := EnsureWorkspace(cfg.Workspace); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", Path(cfg.Workspace))
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1)
	return conn, nil
}

// Path returns the database path for the workspace.
func Path(workspace string) string {
	return filepath.Join(stateDirPath(workspace), defaultDBName)
}

// LogPath returns the console log file path for the workspace.
func LogPath(workspace string) string {
	return filepath.Join(stateDirPath(workspace), "agencyctl.log")
}
