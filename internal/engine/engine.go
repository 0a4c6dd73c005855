package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"confstack/internal/aggregate"
	"confstack/internal/cache"
	"confstack/internal/config"
	"confstack/internal/diag"
	"confstack/internal/dirstack"
	"confstack/internal/document"
	"confstack/internal/fileutil"
	"confstack/internal/inherit"
	"confstack/internal/locator"
	"confstack/internal/logging"
	"confstack/internal/snapshot"
	"confstack/internal/tree"
)

// Engine owns one resolved override stack and the caches built on it.
// Construct it once at startup and pass the handle around.
type Engine struct {
	cfg    *config.Config
	logger *slog.Logger
	sink   diag.Sink

	stack  dirstack.Stack
	loc    *locator.Locator
	loader *inherit.Loader
	files  *aggregate.Files
	store  snapshot.Store
	cache  *cache.Manager

	degraded bool
}

// Status describes the engine for status endpoints and the CLI.
type Status struct {
	BaseDir   string          `json:"base_dir"`
	LocalDir  string          `json:"local_dir,omitempty"`
	Stack     []string        `json:"stack"`
	Backend   string          `json:"backend,omitempty"`
	CacheDir  string          `json:"cache_dir"`
	Degraded  bool            `json:"degraded"`
	Cache     cache.Stats     `json:"cache"`
	Snapshots []snapshot.Info `json:"snapshots,omitempty"`
}

type options struct {
	fsys fileutil.FS
	sink diag.Sink
}

// Option configures New.
type Option func(*options)

// WithFS routes every configuration read through fsys.
func WithFS(fsys fileutil.FS) Option {
	return func(o *options) { o.fsys = fsys }
}

// WithSink adds a diagnostics sink next to the log sink.
func WithSink(sink diag.Sink) Option {
	return func(o *options) { o.sink = sink }
}

// New resolves the override stack and wires the locator, loader,
// aggregator, snapshot store and cache manager. An unusable cache
// directory disables persistence instead of failing.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("engine requires config")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	sink := diag.NewLogSink(logger)
	if o.sink != nil {
		sink = diag.Multi(sink, o.sink)
	}
	ctx = diag.Begin(ctx)

	e := &Engine{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "engine"),
		sink:   sink,
	}

	if cfg.OverridesEnabled() {
		resolver := dirstack.NewResolver(
			dirstack.WithFS(o.fsys),
			dirstack.WithDescriptorName(cfg.Files.DescriptorName),
			dirstack.WithSink(sink),
			dirstack.WithLogger(logger),
		)
		e.stack = resolver.Resolve(ctx, cfg.Paths.LocalDir)
	}

	e.loc = locator.New(cfg.Paths.BaseDir, e.stack, locator.WithFS(o.fsys))
	e.loader = inherit.NewLoader(e.loc,
		inherit.WithFS(o.fsys),
		inherit.WithSink(sink),
		inherit.WithLogger(logger),
	)
	e.files = aggregate.NewFiles(e.loader, e.loc,
		aggregate.WithSubdir(cfg.Files.ConfigSubdir),
		aggregate.WithExtensions(cfg.Files.Extensions),
		aggregate.WithDescriptorName(cfg.Files.DescriptorName),
		aggregate.WithFS(o.fsys),
		aggregate.WithLogger(logger),
	)

	cacheOpts := []cache.Option{
		cache.WithSnapshotNames(cfg.Cache.EntireName, cfg.Cache.SparseName),
		cache.WithSparsePersistence(cfg.Cache.PersistSparse),
		cache.WithSink(sink),
		cache.WithLogger(logger),
	}
	if cfg.Cache.Enabled {
		store, err := e.openStore(ctx)
		if err != nil {
			e.degraded = true
			diag.Warn(ctx, sink, diag.KindCacheDegraded, cfg.Paths.CacheDir,
				"snapshot persistence disabled", err)
		} else {
			e.store = store
			cacheOpts = append(cacheOpts, cache.WithStore(store))
		}
	}
	if e.store == nil {
		cacheOpts = append(cacheOpts,
			cache.WithSnapshotRemover(snapshot.NewPurger(cfg.Cache, cfg.Paths.CacheDir)))
	}

	manager, err := cache.NewManager(e.files, cacheOpts...)
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	e.cache = manager

	logging.WithContext(ctx, e.logger).Info("configuration engine ready",
		logging.String("base_dir", cfg.Paths.BaseDir),
		logging.Int("stack_depth", len(e.stack)),
		logging.Bool("persistent", e.store != nil))
	return e, nil
}

func (e *Engine) openStore(ctx context.Context) (snapshot.Store, error) {
	dir := e.cfg.Paths.CacheDir
	if err := snapshot.CheckWritable(dir); err != nil {
		return nil, err
	}
	store, err := snapshot.Open(e.cfg.Cache, dir)
	if err != nil {
		return nil, err
	}
	logging.WithContext(ctx, e.logger).Debug("snapshot store opened",
		logging.String("backend", e.cfg.Cache.Backend),
		logging.String(logging.FieldPath, dir))
	return store, nil
}

// Get returns the aggregated value at path, or nil when absent.
func (e *Engine) Get(ctx context.Context, path string) (*tree.Node, error) {
	return e.cache.Get(ctx, path)
}

// Reset clears both caches and their snapshots.
func (e *Engine) Reset(ctx context.Context) error {
	return e.cache.Reset(ctx)
}

// Load returns the merged document for filename without touching the
// caches.
func (e *Engine) Load(ctx context.Context, filename, subdir string) (*document.Document, error) {
	if subdir == "" {
		subdir = e.cfg.Files.ConfigSubdir
	}
	return e.loader.Load(ctx, filename, subdir)
}

// Stack returns the override directory stack, root ancestor first.
func (e *Engine) Stack() dirstack.Stack { return append(dirstack.Stack(nil), e.stack...) }

func (e *Engine) Locator() *locator.Locator { return e.loc }

func (e *Engine) Loader() *inherit.Loader { return e.loader }

func (e *Engine) Files() *aggregate.Files { return e.files }

func (e *Engine) Cache() *cache.Manager { return e.cache }

func (e *Engine) Config() *config.Config { return e.cfg }

// Degraded reports whether snapshot persistence was disabled at startup.
func (e *Engine) Degraded() bool { return e.degraded }

// Status gathers stack, cache and snapshot details.
func (e *Engine) Status(ctx context.Context) Status {
	status := Status{
		BaseDir:  e.cfg.Paths.BaseDir,
		LocalDir: e.cfg.Paths.LocalDir,
		Stack:    e.stack.Paths(),
		CacheDir: e.cfg.Paths.CacheDir,
		Degraded: e.degraded,
		Cache:    e.cache.Stats(),
	}
	if status.Stack == nil {
		status.Stack = []string{}
	}
	if e.store == nil {
		return status
	}
	status.Backend = e.cfg.Cache.Backend
	entire, sparse := e.cache.SnapshotNames()
	for _, name := range []string{entire, sparse} {
		info, found, err := e.store.Stat(ctx, name)
		if err != nil {
			logging.WithContext(ctx, e.logger).Debug("snapshot stat failed",
				logging.String("snapshot", name), logging.Error(err))
			continue
		}
		if found {
			status.Snapshots = append(status.Snapshots, info)
		}
	}
	return status
}

// Close releases the snapshot store.
func (e *Engine) Close() error {
	if e == nil || e.store == nil {
		return nil
	}
	if err := e.store.Close(); err != nil {
		return fmt.Errorf("close snapshot store: %w", err)
	}
	e.store = nil
	return nil
}
