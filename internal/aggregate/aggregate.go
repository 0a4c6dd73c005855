// Package aggregate builds the whole-application configuration tree by
// loading every configuration file found in the base and override
// directories through the inheritance loader.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"confstack/internal/dirstack"
	"confstack/internal/fileutil"
	"confstack/internal/inherit"
	"confstack/internal/locator"
	"confstack/internal/logging"
	"confstack/internal/tree"
)

// DefaultExtensions is the extension preference order used when two files
// share a stem.
var DefaultExtensions = []string{"ini", "yaml", "yml", "toml"}

// Files aggregates configuration files by stem: "config.ini" becomes the
// "config" branch of the result.
type Files struct {
	loader         *inherit.Loader
	loc            *locator.Locator
	fsys           fileutil.FS
	subdir         string
	extensions     []string
	descriptorName string
	logger         *slog.Logger
	runs           atomic.Int64
}

// Option configures Files.
type Option func(*Files)

// WithSubdir sets the config subdirectory searched in each root.
func WithSubdir(subdir string) Option {
	return func(f *Files) { f.subdir = subdir }
}

// WithExtensions sets the recognised extensions in preference order.
func WithExtensions(exts []string) Option {
	return func(f *Files) {
		normalized := make([]string, 0, len(exts))
		for _, ext := range exts {
			if ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), ".")); ext != "" {
				normalized = append(normalized, ext)
			}
		}
		if len(normalized) > 0 {
			f.extensions = normalized
		}
	}
}

// WithDescriptorName sets the directory descriptor file name to skip.
func WithDescriptorName(name string) Option {
	return func(f *Files) { f.descriptorName = name }
}

// WithFS sets the filesystem used for directory listings.
func WithFS(fsys fileutil.FS) Option {
	return func(f *Files) { f.fsys = fileutil.Default(fsys) }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Files) { f.logger = logging.NewComponentLogger(logger, "aggregate") }
}

// NewFiles returns an aggregator over loc's directories.
func NewFiles(loader *inherit.Loader, loc *locator.Locator, opts ...Option) *Files {
	f := &Files{
		loader:         loader,
		loc:            loc,
		fsys:           fileutil.OS{},
		subdir:         "config",
		extensions:     append([]string(nil), DefaultExtensions...),
		descriptorName: dirstack.DefaultDescriptorName,
		logger:         logging.NewComponentLogger(nil, "aggregate"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Runs reports how many times Aggregate has been called.
func (f *Files) Runs() int64 { return f.runs.Load() }

// Aggregate loads every known configuration file and returns a branch
// keyed by file stem, in lexical stem order.
func (f *Files) Aggregate(ctx context.Context) (*tree.Node, error) {
	f.runs.Add(1)
	start := time.Now()

	names, err := f.Names()
	if err != nil {
		return nil, err
	}

	root := tree.NewBranch()
	stems := make([]string, 0, len(names))
	for stem := range names {
		stems = append(stems, stem)
	}
	sort.Strings(stems)

	for _, stem := range stems {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := f.loader.Load(ctx, names[stem], f.subdir)
		if err != nil {
			return nil, fmt.Errorf("aggregate %s: %w", names[stem], err)
		}
		root.Set(stem, tree.FromDocument(doc))
	}

	logging.WithContext(ctx, f.logger).Info("configuration aggregated",
		logging.Int("files", len(stems)),
		logging.Duration("elapsed", time.Since(start)))
	return root, nil
}

// Names maps each stem to the file name chosen for it across all
// configuration directories.
func (f *Files) Names() (map[string]string, error) {
	chosen := make(map[string]string)
	rank := make(map[string]int)
	for _, dir := range f.loc.Directories(f.subdir) {
		entries, err := f.fsys.ReadDir(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("list %s: %w", dir, err)
		}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || name == f.descriptorName || strings.HasPrefix(name, ".") {
				continue
			}
			ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
			pref := slices.Index(f.extensions, ext)
			if pref < 0 {
				continue
			}
			stem := strings.TrimSuffix(name, filepath.Ext(name))
			if current, seen := rank[stem]; seen && current <= pref {
				continue
			}
			chosen[stem] = name
			rank[stem] = pref
		}
	}
	return chosen, nil
}
