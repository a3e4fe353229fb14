// Package samplestore persists encoded samples and keeps a catalog of what
// each conversion run produced.
package samplestore

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/banshee-data/lidar-samples/internal/fsutil"
	"github.com/banshee-data/lidar-samples/internal/lidar"
)

// FileExtension is the extension of raw sample files.
const FileExtension = ".bin"

// SampleFileName returns the file name used for sample index.
func SampleFileName(index int) string {
	return fmt.Sprintf("sample_%d%s", index, FileExtension)
}

// FileWriter stores each sample as <dir>/sample_<index>.bin using an
// atomic write-then-rename, so an interrupted run never leaves a short
// sample behind.
type FileWriter struct {
	fs  fsutil.FileSystem
	dir string

	mu      sync.Mutex
	created bool
	written int
}

// NewFileWriter returns a writer rooted at dir. A nil fs uses the OS
// filesystem. The directory is created on the first write.
func NewFileWriter(fs fsutil.FileSystem, dir string) *FileWriter {
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	return &FileWriter{fs: fs, dir: dir}
}

// Path returns the file path of sample index.
func (w *FileWriter) Path(index int) string {
	return filepath.Join(w.dir, SampleFileName(index))
}

// Dir returns the output directory.
func (w *FileWriter) Dir() string { return w.dir }

// WriteSample atomically writes payload as sample index.
func (w *FileWriter) WriteSample(ctx context.Context, index int, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.created {
		if err := w.fs.MkdirAll(w.dir, 0755); err != nil {
			return fmt.Errorf("failed to create sample directory: %w", err)
		}
		w.created = true
	}

	path := w.Path(index)
	if err := fsutil.WriteFileAtomic(w.fs, path, payload, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	w.written++
	lidar.Diagf("wrote %s (%d bytes)", path, len(payload))
	return nil
}

// Written returns the number of samples written so far.
func (w *FileWriter) Written() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}
