// Package status records per-tool fetch history between runs in a JSON
// sidecar file next to the version document.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// StatusPersistence stores the status map of all tools
//
//nolint:revive // status.StatusPersistence reads fine at call sites
type StatusPersistence interface {
	// Save replaces the stored status map
	Save(ctx context.Context, statuses map[string]*ToolStatus) error

	// Load returns the stored status map, or an empty map on first run
	Load(ctx context.Context) (map[string]*ToolStatus, error)
}

// fileStatusPersistence implements StatusPersistence on the local filesystem
type fileStatusPersistence struct {
	path string
}

// NewFileStatusPersistence creates a status store backed by the file at path
func NewFileStatusPersistence(path string) StatusPersistence {
	return &fileStatusPersistence{path: path}
}

// Save writes the map through a temporary file and renames it into place
func (f *fileStatusPersistence) Save(_ context.Context, statuses map[string]*ToolStatus) error {
	if statuses == nil {
		statuses = map[string]*ToolStatus{}
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0750); err != nil {
		return fmt.Errorf("failed to create status directory: %w", err)
	}

	data, err := json.MarshalIndent(statuses, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status data: %w", err)
	}
	data = append(data, '\n')

	tempPath := f.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary status file: %w", err)
	}

	if err := os.Rename(tempPath, f.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename status file: %w", err)
	}

	return nil
}

// Load reads the map back. A missing file is a first run, not an error.
func (f *fileStatusPersistence) Load(_ context.Context) (map[string]*ToolStatus, error) {
	// #nosec G304 -- path comes from operator configuration
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]*ToolStatus{}, nil
		}
		return nil, fmt.Errorf("failed to read status file: %w", err)
	}

	statuses := map[string]*ToolStatus{}
	if err := json.Unmarshal(data, &statuses); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status data: %w", err)
	}

	return statuses, nil
}
