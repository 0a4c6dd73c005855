package engine_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confstack/internal/config"
	"confstack/internal/diag"
	"confstack/internal/engine"
	"confstack/internal/testsupport"
)

// layout builds base <- shared <- site, where site names shared as its
// parent directory and shared's config.ini inherits from the base file.
func layout(t *testing.T) (base, shared, site string) {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	l := testsupport.WriteLayout(t, root)
	return l.Base, l.Shared, l.Site
}

func newConfig(t *testing.T, base, local string) *config.Config {
	t.Helper()
	return testsupport.NewConfig(t, testsupport.WithBaseDir(base), testsupport.WithLocalDir(local))
}

func newEngine(t *testing.T, cfg *config.Config, opts ...engine.Option) *engine.Engine {
	t.Helper()
	e, err := engine.New(context.Background(), cfg, nil, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestEngineResolvesAcrossStack(t *testing.T) {
	base, shared, site := layout(t)
	e := newEngine(t, newConfig(t, base, site))
	ctx := context.Background()

	assert.Equal(t, []string{shared, site}, e.Stack().Paths())

	title, err := e.Get(ctx, "config/Site/title")
	require.NoError(t, err)
	assert.Equal(t, "Shared", title.String())

	url, err := e.Get(ctx, "config/Site/url")
	require.NoError(t, err)
	assert.Equal(t, "http://base", url.String())

	limit, err := e.Get(ctx, "searches/General/limit")
	require.NoError(t, err)
	assert.Equal(t, "20", limit.String())

	missing, err := e.Get(ctx, "facets")
	require.NoError(t, err)
	assert.Nil(t, missing)

	doc, err := e.Load(ctx, "config.ini", "")
	require.NoError(t, err)
	assert.Equal(t, "solr", doc.Get("Index", "engine").String())

	assert.EqualValues(t, 1, e.Files().Runs())
}

func TestEngineWithoutOverrides(t *testing.T) {
	base, _, _ := layout(t)
	e := newEngine(t, newConfig(t, base, ""))

	assert.Empty(t, e.Stack())
	title, err := e.Get(context.Background(), "config/Site/title")
	require.NoError(t, err)
	assert.Equal(t, "Base", title.String())
}

func TestEngineMissingLocalDirIsReported(t *testing.T) {
	base, _, _ := layout(t)
	rec := &diag.Recorder{}
	e := newEngine(t, newConfig(t, base, filepath.Join(base, "nope")), engine.WithSink(rec))

	assert.Empty(t, e.Stack())
	assert.Equal(t, []string{diag.KindDirectoryMissing}, rec.Kinds())
	title, err := e.Get(context.Background(), "config/Site/title")
	require.NoError(t, err)
	assert.Equal(t, "Base", title.String())
}

func TestEngineDegradesWhenCacheDirUnusable(t *testing.T) {
	base, _, site := layout(t)
	cfg := newConfig(t, base, site)
	blocker := filepath.Join(t.TempDir(), "file")
	testsupport.WriteFile(t, blocker, "")
	cfg.Paths.CacheDir = blocker

	rec := &diag.Recorder{}
	e := newEngine(t, cfg, engine.WithSink(rec))
	assert.True(t, e.Degraded())
	assert.Equal(t, []string{diag.KindCacheDegraded}, rec.Kinds())

	title, err := e.Get(context.Background(), "config/Site/title")
	require.NoError(t, err)
	assert.Equal(t, "Shared", title.String())

	status := e.Status(context.Background())
	assert.True(t, status.Degraded)
	assert.Empty(t, status.Backend)
	assert.False(t, status.Cache.Persistent)
}

func TestEngineSnapshotsSurviveRestart(t *testing.T) {
	for _, backend := range []string{"file", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			base, _, site := layout(t)
			cfg := testsupport.NewConfig(t,
				testsupport.WithBaseDir(base),
				testsupport.WithLocalDir(site),
				testsupport.WithCacheBackend(backend),
			)
			ctx := context.Background()

			first, err := engine.New(ctx, cfg, nil)
			require.NoError(t, err)
			_, err = first.Get(ctx, "config/Site/title")
			require.NoError(t, err)

			status := first.Status(ctx)
			assert.Equal(t, backend, status.Backend)
			require.Len(t, status.Snapshots, 2)
			assert.Equal(t, cfg.Cache.EntireName, status.Snapshots[0].Name)
			require.NoError(t, first.Close())

			second := newEngine(t, cfg)
			engineName, err := second.Get(ctx, "config/Index/engine")
			require.NoError(t, err)
			assert.Equal(t, "solr", engineName.String())
			assert.Zero(t, second.Files().Runs())
			assert.True(t, second.Cache().Stats().FromSnapshot)

			require.NoError(t, second.Reset(ctx))
			assert.Empty(t, second.Status(ctx).Snapshots)
		})
	}
}

func TestEngineCacheDisabled(t *testing.T) {
	base, _, _ := layout(t)
	cfg := testsupport.NewConfig(t, testsupport.WithBaseDir(base), testsupport.WithoutCache())

	e := newEngine(t, cfg)
	_, err := e.Get(context.Background(), "config")
	require.NoError(t, err)
	assert.False(t, e.Degraded())
	assert.NoDirExists(t, cfg.Paths.CacheDir)
}

func TestEngineResetWithCacheDisabledRemovesSnapshots(t *testing.T) {
	for _, backend := range []string{"file", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			base, _, _ := layout(t)
			ctx := context.Background()
			enabled := testsupport.NewConfig(t,
				testsupport.WithBaseDir(base),
				testsupport.WithCacheBackend(backend),
			)
			disabled := *enabled
			disabled.Cache.Enabled = false

			first, err := engine.New(ctx, enabled, nil)
			require.NoError(t, err)
			_, err = first.Get(ctx, "config/Site/url")
			require.NoError(t, err)
			require.Len(t, first.Status(ctx).Snapshots, 2)
			require.NoError(t, first.Close())

			require.NoError(t, newEngine(t, &disabled).Reset(ctx))
			if backend == "file" {
				assert.NoFileExists(t, filepath.Join(enabled.Paths.CacheDir, enabled.Cache.EntireName+".json"))
				assert.NoFileExists(t, filepath.Join(enabled.Paths.CacheDir, enabled.Cache.SparseName+".json"))
			}

			testsupport.WriteFile(t, filepath.Join(base, "config", "config.ini"),
				"[Site]\nurl = http://edited\n")
			second := newEngine(t, enabled)
			assert.Empty(t, second.Status(ctx).Snapshots)
			url, err := second.Get(ctx, "config/Site/url")
			require.NoError(t, err)
			assert.Equal(t, "http://edited", url.String())
			assert.False(t, second.Cache().Stats().FromSnapshot)
		})
	}
}

func TestEngineResetWithoutCacheDirCreatesNothing(t *testing.T) {
	base, _, _ := layout(t)
	cfg := testsupport.NewConfig(t, testsupport.WithBaseDir(base), testsupport.WithoutCache())

	require.NoError(t, newEngine(t, cfg).Reset(context.Background()))
	assert.NoDirExists(t, cfg.Paths.CacheDir)
}

func TestEngineRequiresConfig(t *testing.T) {
	_, err := engine.New(context.Background(), nil, nil)
	require.Error(t, err)
}
