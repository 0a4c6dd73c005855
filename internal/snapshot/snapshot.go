package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"confstack/internal/config"
	"confstack/internal/fileutil"
)

var (
	// ErrUnknownBackend is returned by Open for unsupported cache.backend values.
	ErrUnknownBackend = errors.New("unknown snapshot backend")
	// ErrInvalidName rejects snapshot names that are not bare identifiers.
	ErrInvalidName = errors.New("invalid snapshot name")
)

// Info describes a stored snapshot.
type Info struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists named JSON snapshots. Implementations are safe for
// concurrent use and for use by several processes sharing one cache dir.
type Store interface {
	// Load decodes the named snapshot into v. found is false when no
	// snapshot exists; a snapshot that cannot be decoded is an error.
	Load(ctx context.Context, name string, v any) (found bool, err error)
	// Save replaces the named snapshot atomically.
	Save(ctx context.Context, name string, v any) error
	// Remove deletes the named snapshot. Missing snapshots are not an error.
	Remove(ctx context.Context, name string) error
	// Stat reports size and modification time.
	Stat(ctx context.Context, name string) (Info, bool, error)
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// SQLiteFileName is the database file used by the sqlite backend.
const SQLiteFileName = "snapshots.db"

// Open returns the store selected by cfg.Backend rooted at dir.
func Open(cfg config.Cache, dir string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendFile:
		return NewFileStore(dir)
	case BackendSQLite:
		return NewSQLiteStore(filepath.Join(dir, SQLiteFileName))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// CheckWritable verifies that dir exists (creating it if needed) and that
// the current process may create files in it.
func CheckWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("stat cache dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	if err := unix.Access(dir, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return fmt.Errorf("cache dir %s not writable: %w", dir, err)
	}
	return nil
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Purger deletes snapshots left in a cache directory that no open Store
// owns, such as when persistence is disabled. It never creates the
// directory, the database or the lock file when there is nothing to remove.
type Purger struct {
	cfg config.Cache
	dir string
}

// NewPurger returns a Purger for the backend selected by cfg rooted at dir.
func NewPurger(cfg config.Cache, dir string) *Purger {
	return &Purger{cfg: cfg, dir: dir}
}

// Remove deletes the named snapshot if it exists.
func (p *Purger) Remove(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if !p.holds(name) {
		return nil
	}
	store, err := Open(p.cfg, p.dir)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return store.Remove(ctx, name)
}

func (p *Purger) holds(name string) bool {
	if !fileutil.IsDir(nil, p.dir) {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(p.cfg.Backend)) {
	case BackendSQLite:
		return fileutil.IsFile(nil, filepath.Join(p.dir, SQLiteFileName))
	default:
		return fileutil.IsFile(nil, filepath.Join(p.dir, name+".json"))
	}
}
