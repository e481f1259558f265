// Package clusterfs stands in for the cluster's distributed filesystem,
// reached via exists/listStatus/getFileSystem semantics. FileSystem is the
// boundary interface; the one concrete implementation shipped here resolves
// against local disk.
package clusterfs

import (
	"fmt"
	"os"
	"path/filepath"
)

// Status describes one entry returned by ListStatus.
type Status struct {
	Path  string
	IsDir bool
	Size  int64
}

// FileSystem is the cluster filesystem boundary the launch-context builder
// stages files against.
type FileSystem interface {
	// Exists reports whether path is present.
	Exists(path string) (bool, error)
	// ListStatus lists the entries under path.
	ListStatus(path string) ([]Status, error)
	// Resolve turns a (possibly relative) path into an absolute URI-like
	// string usable as a local-resource reference in a launch context.
	Resolve(path string) (string, error)
}

// LocalFileSystem implements FileSystem rooted at a configured directory on
// local disk, standing in for the cluster filesystem in single-node or
// test deployments.
type LocalFileSystem struct {
	root string
}

// NewLocalFileSystem creates a LocalFileSystem rooted at root.
func NewLocalFileSystem(root string) *LocalFileSystem {
	return &LocalFileSystem{root: root}
}

func (l *LocalFileSystem) abs(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(l.root, path)
}

// Exists reports whether path is present under the root.
func (l *LocalFileSystem) Exists(path string) (bool, error) {
	_, err := os.Stat(l.abs(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("clusterfs: stat %s: %w", path, err)
}

// ListStatus lists the entries directly under path.
func (l *LocalFileSystem) ListStatus(path string) ([]Status, error) {
	entries, err := os.ReadDir(l.abs(path))
	if err != nil {
		return nil, fmt.Errorf("clusterfs: list %s: %w", path, err)
	}

	statuses := make([]Status, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("clusterfs: stat entry %s: %w", e.Name(), err)
		}
		statuses = append(statuses, Status{
			Path:  filepath.Join(path, e.Name()),
			IsDir: e.IsDir(),
			Size:  info.Size(),
		})
	}
	return statuses, nil
}

// Resolve returns the absolute on-disk path for path.
func (l *LocalFileSystem) Resolve(path string) (string, error) {
	return l.abs(path), nil
}
