package inherit

import (
	"context"
	"log/slog"
	"path/filepath"

	"confstack/internal/diag"
	"confstack/internal/document"
	"confstack/internal/fileutil"
	"confstack/internal/locator"
	"confstack/internal/logging"
)

// Link is one file in an inheritance chain.
type Link struct {
	Path     string             `json:"path"`
	Document *document.Document `json:"document"`
}

// Loader resolves logical file names into merged documents.
type Loader struct {
	loc    *locator.Locator
	fsys   fileutil.FS
	sink   diag.Sink
	logger *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithFS sets the filesystem used for reads.
func WithFS(fsys fileutil.FS) Option {
	return func(l *Loader) { l.fsys = fileutil.Default(fsys) }
}

// WithSink sets the diagnostics sink.
func WithSink(sink diag.Sink) Option {
	return func(l *Loader) { l.sink = diag.OrDiscard(sink) }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) { l.logger = logging.NewComponentLogger(logger, "inherit") }
}

// NewLoader returns a Loader resolving names through loc.
func NewLoader(loc *locator.Locator, opts ...Option) *Loader {
	l := &Loader{
		loc:    loc,
		fsys:   fileutil.OS{},
		sink:   diag.Discard(),
		logger: logging.NewComponentLogger(nil, "inherit"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Locator returns the path resolver used by Load.
func (l *Loader) Locator() *locator.Locator { return l.loc }

// Load resolves filename in subdir and returns its merged document. A name
// with no file anywhere yields an empty read-only document.
func (l *Loader) Load(ctx context.Context, filename, subdir string) (*document.Document, error) {
	return l.LoadPath(ctx, l.loc.Resolve(filename, subdir))
}

// LoadPath merges the inheritance chain starting at path.
func (l *Loader) LoadPath(ctx context.Context, path string) (*document.Document, error) {
	chain, err := l.Chain(ctx, path)
	if err != nil {
		return nil, err
	}
	docs := make([]*document.Document, 0, len(chain))
	for _, link := range chain {
		docs = append(docs, link.Document)
	}
	return Merge(docs), nil
}

// Chain parses path and every ancestor named through Parent_Config, the
// requested file first. A missing start file yields an empty chain. A
// missing or repeated parent ends the chain with a diagnostic. Parse
// failures are returned.
func (l *Loader) Chain(ctx context.Context, path string) ([]Link, error) {
	if !fileutil.IsFile(l.fsys, path) {
		return nil, nil
	}
	ctx = diag.Begin(ctx)

	doc, err := document.ParseFile(l.fsys, path)
	if err != nil {
		return nil, err
	}
	chain := []Link{{Path: path, Document: doc.Freeze()}}
	seen := map[string]struct{}{chainKey(path): {}}

	current := path
	for {
		parent := doc.Parent()
		if !parent.HasTarget() {
			break
		}
		next := parent.Path
		if next == "" {
			next = filepath.Join(filepath.Dir(current), parent.RelativePath)
		}
		if !fileutil.IsFile(l.fsys, next) {
			diag.Warn(ctx, l.sink, diag.KindParentMissing, next,
				"parent configuration missing; inheritance stops at "+current, nil)
			break
		}
		key := chainKey(next)
		if _, dup := seen[key]; dup {
			diag.Warn(ctx, l.sink, diag.KindParentCycle, next,
				"circular parent configuration; inheritance stops at "+current, nil)
			break
		}
		seen[key] = struct{}{}

		if doc, err = document.ParseFile(l.fsys, next); err != nil {
			return nil, err
		}
		chain = append(chain, Link{Path: next, Document: doc.Freeze()})
		current = next
	}

	logging.WithContext(ctx, l.logger).Debug("inheritance chain built",
		logging.String(logging.FieldPath, path),
		logging.Int("depth", len(chain)))
	return chain, nil
}

// Merge folds chain, ordered requested file first, onto its last element.
// Children override parents. A section listed in the child's
// OverrideFullSections, or missing from the running result, is replaced
// wholesale; otherwise keys merge one by one and sequences concatenate
// when the child enables MergeArraySettings. The result is read-only and
// carries no parent directive.
func Merge(chain []*document.Document) *document.Document {
	if len(chain) == 0 {
		return document.Empty()
	}
	result := chain[len(chain)-1].Clone()
	result.SetParent(nil)

	for i := len(chain) - 2; i >= 0; i-- {
		child := chain[i]
		directive := child.Parent()
		mergeArrays := directive != nil && directive.MergeArraySettings
		for _, section := range child.Sections() {
			existing, ok := result.Section(section.Name())
			if !ok || directive.OverridesSection(section.Name()) {
				result.PutSection(section.Clone())
				continue
			}
			for _, key := range section.Keys() {
				childValue := section.Get(key)
				parentValue := existing.Get(key)
				if mergeArrays && childValue.IsSequence() && parentValue.IsSequence() {
					existing.Set(key, parentValue.Concat(childValue))
					continue
				}
				existing.Set(key, childValue)
			}
		}
	}
	return result.Freeze()
}

func chainKey(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}
