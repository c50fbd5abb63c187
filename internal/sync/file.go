package sync

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// FileDestination replaces a local file with each export. The file is
// written next to its final path and renamed into place, so readers never
// see a partial export.
type FileDestination struct {
	path string
}

// NewFileDestination returns a destination writing to path.
func NewFileDestination(path string) *FileDestination {
	return &FileDestination{path: path}
}

func (d *FileDestination) String() string { return d.path }

// Write replaces the file with data.
func (d *FileDestination) Write(ctx context.Context, data []byte) error {
	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(d.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), d.path); err != nil {
		return fmt.Errorf("rename file: %w", err)
	}
	return nil
}

// WriterDestination appends each export to an io.Writer, such as stdout.
type WriterDestination struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterDestination returns a destination writing to w.
func NewWriterDestination(w io.Writer) *WriterDestination {
	return &WriterDestination{w: w}
}

func (d *WriterDestination) Write(ctx context.Context, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.w.Write(data); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}
