package abtest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ReadSnapshotFromFile reads a Snapshot from a file path. Files ending in
// .yaml or .yml are decoded as YAML, anything else as JSON.
func ReadSnapshotFromFile(name string) (*Snapshot, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		var s Snapshot
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("decode snapshot %s: %w", name, err)
		}
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", name, err)
		}
		return &s, nil
	default:
		s, err := ParseSnapshot(data)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", name, err)
		}
		return s, nil
	}
}

// FileSnapshotSource serves the snapshot stored at Path. The file is re-read
// on every fetch, so edits are picked up by a polling client.
type FileSnapshotSource struct {
	Path string
}

func (f FileSnapshotSource) FetchSnapshot(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ReadSnapshotFromFile(f.Path)
}

func (f FileSnapshotSource) String() string {
	return "file:" + f.Path
}
