package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FS is the read-side filesystem surface used by the resolvers. Paths are
// absolute host paths, unlike io/fs.FS.
type FS interface {
	ReadFile(name string) ([]byte, error)
	Stat(name string) (fs.FileInfo, error)
	ReadDir(name string) ([]fs.DirEntry, error)
}

// OS reads straight from the host filesystem.
type OS struct{}

func (OS) ReadFile(name string) ([]byte, error) { return os.ReadFile(name) }

func (OS) Stat(name string) (fs.FileInfo, error) { return os.Stat(name) }

func (OS) ReadDir(name string) ([]fs.DirEntry, error) { return os.ReadDir(name) }

// Default returns fsys, or OS when fsys is nil.
func Default(fsys FS) FS {
	if fsys == nil {
		return OS{}
	}
	return fsys
}

// IsFile reports whether name exists and is not a directory.
func IsFile(fsys FS, name string) bool {
	info, err := Default(fsys).Stat(name)
	return err == nil && !info.IsDir()
}

// IsDir reports whether name exists and is a directory.
func IsDir(fsys FS, name string) bool {
	info, err := Default(fsys).Stat(name)
	return err == nil && info.IsDir()
}

// CountingFS wraps another FS and counts reads per path.
type CountingFS struct {
	Base FS

	mu    sync.Mutex
	reads map[string]int
}

// NewCountingFS wraps base (OS when nil).
func NewCountingFS(base FS) *CountingFS {
	return &CountingFS{Base: Default(base), reads: make(map[string]int)}
}

func (c *CountingFS) ReadFile(name string) ([]byte, error) {
	c.mu.Lock()
	c.reads[name]++
	c.mu.Unlock()
	return c.Base.ReadFile(name)
}

func (c *CountingFS) Stat(name string) (fs.FileInfo, error) {
	return c.Base.Stat(name)
}

func (c *CountingFS) ReadDir(name string) ([]fs.DirEntry, error) {
	return c.Base.ReadDir(name)
}

// Reads returns how often name was read.
func (c *CountingFS) Reads(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads[name]
}

// TotalReads returns the number of ReadFile calls across all paths.
func (c *CountingFS) TotalReads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, n := range c.reads {
		total += n
	}
	return total
}

// Reset zeroes all counters.
func (c *CountingFS) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads = make(map[string]int)
}

// WriteFileAtomic writes data next to path and renames it into place so
// readers never observe a partially written file.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath) // cleanup on failure
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// RemoveIfExists deletes path, treating a missing file as success.
func RemoveIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
