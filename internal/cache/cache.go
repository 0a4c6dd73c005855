package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"confstack/internal/diag"
	"confstack/internal/logging"
	"confstack/internal/snapshot"
	"confstack/internal/tree"
)

// ErrNoAggregator is returned by NewManager when no aggregator is supplied.
var ErrNoAggregator = errors.New("cache: aggregator is required")

// Default snapshot names.
const (
	DefaultEntireName = "entire"
	DefaultSparseName = "sparse"
)

// Aggregator builds the whole-application configuration tree.
type Aggregator interface {
	Aggregate(ctx context.Context) (*tree.Node, error)
}

// AggregatorFunc adapts a function to Aggregator.
type AggregatorFunc func(ctx context.Context) (*tree.Node, error)

func (f AggregatorFunc) Aggregate(ctx context.Context) (*tree.Node, error) { return f(ctx) }

// Remover deletes a named snapshot. Reset uses it when no store is
// attached so snapshots written by an earlier persistent run still go away.
type Remover interface {
	Remove(ctx context.Context, name string) error
}

// entry is one node of the sparse cache. A loaded entry with nil Content
// records that the path is absent.
type entry struct {
	Loaded   bool              `json:"loaded"`
	Content  *tree.Node        `json:"content,omitempty"`
	Children map[string]*entry `json:"children,omitempty"`
}

func newEntry() *entry {
	return &entry{Children: make(map[string]*entry)}
}

// Stats summarises cache state for status output.
type Stats struct {
	Built         bool      `json:"built"`
	FromSnapshot  bool      `json:"from_snapshot"`
	Aggregations  int       `json:"aggregations"`
	Hits          int       `json:"hits"`
	Misses        int       `json:"misses"`
	WriteFailures int       `json:"write_failures"`
	Persistent    bool      `json:"persistent"`
	LoadedPaths   []string  `json:"loaded_paths"`
	BuiltAt       time.Time `json:"built_at,omitempty"`
}

// Manager serves path lookups from the sparse cache, falling back to the
// entire cache, which is built at most once per epoch. One mutex guards
// every check-then-populate sequence, including snapshot writes.
type Manager struct {
	agg           Aggregator
	store         snapshot.Store
	remover       Remover
	entireName    string
	sparseName    string
	persistSparse bool
	sink          diag.Sink
	logger        *slog.Logger

	mu            sync.Mutex
	entire        *tree.Node
	sparse        *entry
	hydrated      bool
	fromSnapshot  bool
	builtAt       time.Time
	aggregations  int
	hits          int
	misses        int
	writeFailures int
}

// Option configures a Manager.
type Option func(*Manager)

// WithStore enables snapshot persistence through store.
func WithStore(store snapshot.Store) Option {
	return func(m *Manager) { m.store = store }
}

// WithSnapshotRemover sets the Remover Reset uses when there is no store.
func WithSnapshotRemover(r Remover) Option {
	return func(m *Manager) { m.remover = r }
}

// WithSnapshotNames overrides the entire and sparse snapshot names.
func WithSnapshotNames(entire, sparse string) Option {
	return func(m *Manager) {
		if entire = strings.TrimSpace(entire); entire != "" {
			m.entireName = entire
		}
		if sparse = strings.TrimSpace(sparse); sparse != "" {
			m.sparseName = sparse
		}
	}
}

// WithSparsePersistence controls whether the sparse tree is written after
// every miss. It has no effect without a store.
func WithSparsePersistence(enabled bool) Option {
	return func(m *Manager) { m.persistSparse = enabled }
}

// WithSink sets the diagnostics sink.
func WithSink(sink diag.Sink) Option {
	return func(m *Manager) { m.sink = diag.OrDiscard(sink) }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logging.NewComponentLogger(logger, "cache") }
}

// NewManager constructs a Manager in front of agg.
func NewManager(agg Aggregator, opts ...Option) (*Manager, error) {
	if agg == nil {
		return nil, ErrNoAggregator
	}
	m := &Manager{
		agg:        agg,
		entireName: DefaultEntireName,
		sparseName: DefaultSparseName,
		sink:       diag.Discard(),
		logger:     logging.NewComponentLogger(nil, "cache"),
		sparse:     newEntry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Get returns the value at the "/"-delimited path, or nil when the path is
// absent. The empty path returns the whole aggregated tree. Returned nodes
// are shared with the cache and must not be modified.
func (m *Manager) Get(ctx context.Context, path string) (*tree.Node, error) {
	segments := tree.SplitPath(path)
	ctx = diag.Begin(ctx)
	logger := logging.WithContext(ctx, m.logger)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.hydrateSparse(ctx)

	if value, ok := m.lookupSparse(segments); ok {
		m.hits++
		logger.Debug("sparse cache hit", logging.String(logging.FieldPath, path))
		return value, nil
	}
	m.misses++

	entire, err := m.materializeEntire(ctx)
	if err != nil {
		return nil, err
	}
	value := entire.Lookup(segments)
	m.storeSparse(segments, value)
	logger.Debug("sparse cache populated",
		logging.String(logging.FieldPath, path),
		logging.Bool("present", value != nil))

	if m.persistSparse {
		m.persist(ctx, m.sparseName, m.sparse)
	}
	return value, nil
}

// Reset discards both trees and deletes both snapshots, through the store
// or, without one, the snapshot remover. The next Get rebuilds from source
// files.
func (m *Manager) Reset(ctx context.Context) error {
	ctx = diag.Begin(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entire = nil
	m.sparse = newEntry()
	m.hydrated = true
	m.fromSnapshot = false
	m.builtAt = time.Time{}

	remover := m.remover
	if m.store != nil {
		remover = m.store
	}
	var errs []error
	if remover != nil {
		for _, name := range []string{m.entireName, m.sparseName} {
			if err := remover.Remove(ctx, name); err != nil {
				errs = append(errs, err)
			}
		}
	}
	logging.WithContext(ctx, m.logger).Info("configuration cache reset")
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("remove snapshots: %w", err)
	}
	return nil
}

// Stats returns a snapshot of the cache counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Built:         m.entire != nil,
		FromSnapshot:  m.fromSnapshot,
		Aggregations:  m.aggregations,
		Hits:          m.hits,
		Misses:        m.misses,
		WriteFailures: m.writeFailures,
		Persistent:    m.store != nil,
		LoadedPaths:   m.loadedPathsLocked(),
		BuiltAt:       m.builtAt,
	}
}

// LoadedPaths lists every loaded sparse path in lexical order. The root
// is reported as "/".
func (m *Manager) LoadedPaths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadedPathsLocked()
}

// SnapshotNames returns the entire and sparse snapshot names.
func (m *Manager) SnapshotNames() (entire, sparse string) {
	return m.entireName, m.sparseName
}

// Store returns the snapshot store, or nil when persistence is off.
func (m *Manager) Store() snapshot.Store { return m.store }

// lookupSparse walks the sparse tree root-down and answers from the first
// loaded entry on the path.
func (m *Manager) lookupSparse(segments []string) (*tree.Node, bool) {
	node := m.sparse
	for i := 0; ; i++ {
		if node.Loaded {
			if node.Content == nil {
				return nil, true
			}
			return node.Content.Lookup(segments[i:]), true
		}
		if i == len(segments) {
			return nil, false
		}
		child, ok := node.Children[segments[i]]
		if !ok {
			return nil, false
		}
		node = child
	}
}

func (m *Manager) storeSparse(segments []string, value *tree.Node) {
	node := m.sparse
	for _, segment := range segments {
		if node.Children == nil {
			node.Children = make(map[string]*entry)
		}
		child, ok := node.Children[segment]
		if !ok {
			child = newEntry()
			node.Children[segment] = child
		}
		node = child
	}
	node.Loaded = true
	node.Content = value
	node.Children = nil
}

func (m *Manager) materializeEntire(ctx context.Context) (*tree.Node, error) {
	if m.entire != nil {
		return m.entire, nil
	}

	if m.store != nil {
		var snap tree.Node
		found, err := m.store.Load(ctx, m.entireName, &snap)
		switch {
		case err != nil:
			diag.Warn(ctx, m.sink, diag.KindSnapshotReadFailed, m.entireName,
				"entire snapshot unreadable; rebuilding", err)
		case found:
			m.entire = &snap
			m.fromSnapshot = true
			m.builtAt = time.Now()
			logging.WithContext(ctx, m.logger).Info("entire cache loaded from snapshot",
				logging.String("snapshot", m.entireName))
			return m.entire, nil
		}
	}

	start := time.Now()
	built, err := m.agg.Aggregate(ctx)
	if err != nil {
		return nil, fmt.Errorf("build entire cache: %w", err)
	}
	if built == nil {
		built = tree.NewBranch()
	}
	m.entire = built
	m.aggregations++
	m.fromSnapshot = false
	m.builtAt = time.Now()
	logging.WithContext(ctx, m.logger).Info("entire cache built",
		logging.Int("files", built.Len()),
		logging.Duration("elapsed", time.Since(start)))

	m.persist(ctx, m.entireName, built)
	return built, nil
}

func (m *Manager) hydrateSparse(ctx context.Context) {
	if m.hydrated {
		return
	}
	m.hydrated = true
	if m.store == nil || !m.persistSparse {
		return
	}
	snap := newEntry()
	found, err := m.store.Load(ctx, m.sparseName, snap)
	if err != nil {
		diag.Warn(ctx, m.sink, diag.KindSnapshotReadFailed, m.sparseName,
			"sparse snapshot unreadable; starting empty", err)
		return
	}
	if found {
		m.sparse = snap
	}
}

// persist writes v under name. Failures leave the in-memory cache intact
// and are reported as diagnostics.
func (m *Manager) persist(ctx context.Context, name string, v any) {
	if m.store == nil {
		return
	}
	if err := m.store.Save(ctx, name, v); err != nil {
		m.writeFailures++
		diag.Warn(ctx, m.sink, diag.KindSnapshotWriteFailed, name,
			"snapshot write failed; continuing without persistence", err)
	}
}

func (m *Manager) loadedPathsLocked() []string {
	var out []string
	type frame struct {
		node *entry
		path []string
	}
	stack := []frame{{node: m.sparse}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if top.node.Loaded {
			if len(top.path) == 0 {
				out = append(out, "/")
			} else {
				out = append(out, tree.JoinPath(top.path))
			}
			continue
		}
		for name, child := range top.node.Children {
			next := append(append([]string(nil), top.path...), name)
			stack = append(stack, frame{node: child, path: next})
		}
	}
	sort.Strings(out)
	return out
}
