package dirstack

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"confstack/internal/diag"
	"confstack/internal/fileutil"
	"confstack/internal/logging"
)

// DefaultDescriptorName is the self-describing file read from each directory.
const DefaultDescriptorName = "DirLocations.ini"

// Directory is one entry in the override stack.
type Directory struct {
	// Path is absolute with symlinks resolved.
	Path string `json:"path"`
	// ConfigSubdir overrides the caller's subdir for this directory when set.
	ConfigSubdir string     `json:"config_subdir,omitempty"`
	Descriptor   Descriptor `json:"descriptor"`
}

// Stack is ordered root ancestor first, most specific directory last.
type Stack []Directory

// Paths returns the canonical directory paths in stack order.
func (s Stack) Paths() []string {
	out := make([]string, 0, len(s))
	for _, d := range s {
		out = append(out, d.Path)
	}
	return out
}

// MostSpecific returns the last directory, the one resolution started from.
func (s Stack) MostSpecific() (Directory, bool) {
	if len(s) == 0 {
		return Directory{}, false
	}
	return s[len(s)-1], true
}

// Resolver builds override stacks.
type Resolver struct {
	fsys           fileutil.FS
	descriptorName string
	sink           diag.Sink
	logger         *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithFS sets the filesystem used for descriptor reads.
func WithFS(fsys fileutil.FS) Option {
	return func(r *Resolver) { r.fsys = fileutil.Default(fsys) }
}

// WithDescriptorName overrides DefaultDescriptorName.
func WithDescriptorName(name string) Option {
	return func(r *Resolver) {
		if name = strings.TrimSpace(name); name != "" {
			r.descriptorName = name
		}
	}
}

// WithSink sets the diagnostics sink.
func WithSink(sink diag.Sink) Option {
	return func(r *Resolver) { r.sink = diag.OrDiscard(sink) }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) { r.logger = logging.NewComponentLogger(logger, "dirstack") }
}

// NewResolver constructs a Resolver reading from the host filesystem by default.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		fsys:           fileutil.OS{},
		descriptorName: DefaultDescriptorName,
		sink:           diag.Discard(),
		logger:         logging.NewComponentLogger(nil, "dirstack"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve walks Parent_Dir declarations from startDir. Missing directories,
// cycles, and malformed descriptors truncate the stack and are reported to
// the sink; Resolve itself never fails.
func (r *Resolver) Resolve(ctx context.Context, startDir string) Stack {
	startDir = strings.TrimSpace(startDir)
	if startDir == "" {
		return Stack{}
	}
	ctx = diag.Begin(ctx)

	var stack Stack
	seen := make(map[string]struct{})
	current := startDir
	for {
		canonical, err := r.canonicalize(current)
		if err != nil {
			diag.Warn(ctx, r.sink, diag.KindDirectoryMissing, current,
				"override directory missing; stack truncated", err)
			break
		}
		if _, dup := seen[canonical]; dup {
			diag.Warn(ctx, r.sink, diag.KindCycleDetected, canonical,
				"cycle detected in override directory chain", nil)
			break
		}
		seen[canonical] = struct{}{}

		descriptor, err := LoadDescriptor(r.fsys, canonical, r.descriptorName)
		if err != nil {
			diag.Warn(ctx, r.sink, diag.KindDescriptorInvalid, filepath.Join(canonical, r.descriptorName),
				"directory descriptor unreadable; treated as empty", err)
			descriptor = Descriptor{}
		}

		stack = append(Stack{{
			Path:         canonical,
			ConfigSubdir: descriptor.LocalConfigSubdir,
			Descriptor:   descriptor,
		}}, stack...)

		if !descriptor.HasParent() {
			break
		}
		if descriptor.ParentIsRelative {
			current = filepath.Join(canonical, descriptor.ParentPath)
		} else {
			current = descriptor.ParentPath
		}
	}

	logging.WithContext(ctx, r.logger).Debug("override stack resolved",
		logging.String("start_dir", startDir),
		logging.Int("depth", len(stack)))
	return stack
}

func (r *Resolver) canonicalize(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("resolve symlinks: %w", err)
	}
	if !fileutil.IsDir(r.fsys, resolved) {
		return "", fmt.Errorf("%s is not a directory", resolved)
	}
	return resolved, nil
}
