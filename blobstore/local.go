package blobstore

import (
	"context"
	"os"
	"path/filepath"
)

// Local implements Store on the local filesystem, rooted at a directory.
//
// Put follows the temp-file + fsync + rename sequence so a crash mid-write
// never leaves a half-written state file behind.
type Local struct {
	root string
}

// NewLocal creates a Local store rooted at the given directory.
// The directory is created on first write if it does not exist.
func NewLocal(root string) *Local {
	return &Local{root: root}
}

// Get returns the blob contents, or ErrNotFound.
func (s *Local) Get(_ context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.root, name))
	if err != nil {
		// os.ReadFile already satisfies errors.Is(err, ErrNotFound)
		// for missing files via os.ErrNotExist.
		return nil, err
	}
	return data, nil
}

// Put atomically replaces the blob.
func (s *Local) Put(_ context.Context, name string, data []byte) error {
	if err := os.MkdirAll(s.root, 0755); err != nil {
		return err
	}

	path := filepath.Join(s.root, name)
	tmpPath := path + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}

	return s.syncDir()
}

// Ensure creates the blob empty if absent.
func (s *Local) Ensure(_ context.Context, name string) error {
	if err := os.MkdirAll(s.root, 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(s.root, name), os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	return f.Close()
}

func (s *Local) syncDir() error {
	d, err := os.Open(s.root)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
