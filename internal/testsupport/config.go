package testsupport

import (
	"path/filepath"
	"testing"

	"confstack/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	root string
	cfg  *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The base directory is <tmp>/base and snapshots go to <tmp>/cache; overrides
// stay disabled until WithLocalDir is applied.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("resolve temp dir: %v", err)
	}
	cfgVal := config.Default()
	cfgVal.Paths.BaseDir = filepath.Join(root, "base")
	cfgVal.Paths.CacheDir = filepath.Join(root, "cache")
	cfgVal.Logging.Level = "error"
	cfgVal.API.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		root: root,
		cfg:  &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithBaseDir points the config at an existing base directory.
func WithBaseDir(path string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.BaseDir = path
	}
}

// WithLocalDir enables overrides rooted at path. A relative path is taken
// from the config's temp root.
func WithLocalDir(path string) ConfigOption {
	return func(b *configBuilder) {
		if path != "" && !filepath.IsAbs(path) {
			path = filepath.Join(b.root, path)
		}
		b.cfg.Paths.LocalDir = path
	}
}

// WithCacheBackend selects the snapshot backend ("file" or "sqlite").
func WithCacheBackend(backend string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Cache.Backend = backend
	}
}

// WithoutCache disables snapshot persistence.
func WithoutCache() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Cache.Enabled = false
	}
}
