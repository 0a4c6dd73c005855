// Package locator maps logical configuration file names onto concrete paths
// across the override stack and the base installation.
package locator

import (
	"path/filepath"

	"confstack/internal/dirstack"
	"confstack/internal/fileutil"
)

// Locator resolves file names against a fixed base directory and stack.
// It holds no mutable state and is safe for concurrent use.
type Locator struct {
	baseDir string
	stack   dirstack.Stack
	fsys    fileutil.FS
}

// Option configures a Locator.
type Option func(*Locator)

// WithFS sets the filesystem used for existence checks.
func WithFS(fsys fileutil.FS) Option {
	return func(l *Locator) { l.fsys = fileutil.Default(fsys) }
}

// New returns a Locator for baseDir and stack.
func New(baseDir string, stack dirstack.Stack, opts ...Option) *Locator {
	l := &Locator{
		baseDir: baseDir,
		stack:   append(dirstack.Stack(nil), stack...),
		fsys:    fileutil.OS{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Locator) BaseDir() string { return l.baseDir }

// Stack returns a copy of the override stack.
func (l *Locator) Stack() dirstack.Stack { return append(dirstack.Stack(nil), l.stack...) }

// LocalPath returns the most specific existing override of filename. With
// force set and no existing file, it returns the path the most specific
// directory would use. ok is false when there is no result.
func (l *Locator) LocalPath(filename, subdir string, force bool) (string, bool) {
	candidates := l.localCandidates(filename, subdir)
	for _, candidate := range candidates {
		if fileutil.IsFile(l.fsys, candidate) {
			return candidate, true
		}
	}
	if force && len(candidates) > 0 {
		return candidates[0], true
	}
	return "", false
}

// BasePath joins the base directory, subdir, and filename without I/O.
func (l *Locator) BasePath(filename, subdir string) string {
	return filepath.Join(l.baseDir, subdir, filename)
}

// Resolve returns the local override when one exists, else the base path.
func (l *Locator) Resolve(filename, subdir string) string {
	if path, ok := l.LocalPath(filename, subdir, false); ok {
		return path
	}
	return l.BasePath(filename, subdir)
}

// Candidates lists every location searched for filename, most specific
// first, ending with the base path.
func (l *Locator) Candidates(filename, subdir string) []string {
	return append(l.localCandidates(filename, subdir), l.BasePath(filename, subdir))
}

// Directories lists every configuration directory for subdir: the base
// directory first, then the stack from root ancestor to most specific.
func (l *Locator) Directories(subdir string) []string {
	dirs := make([]string, 0, len(l.stack)+1)
	dirs = append(dirs, filepath.Join(l.baseDir, subdir))
	for _, d := range l.stack {
		dirs = append(dirs, filepath.Join(d.Path, effectiveSubdir(d, subdir)))
	}
	return dirs
}

func (l *Locator) localCandidates(filename, subdir string) []string {
	out := make([]string, 0, len(l.stack))
	for i := len(l.stack) - 1; i >= 0; i-- {
		d := l.stack[i]
		out = append(out, filepath.Join(d.Path, effectiveSubdir(d, subdir), filename))
	}
	return out
}

func effectiveSubdir(d dirstack.Directory, subdir string) string {
	if d.ConfigSubdir != "" {
		return d.ConfigSubdir
	}
	return subdir
}
