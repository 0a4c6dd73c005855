package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the installation, override, and cache roots.
type Paths struct {
	// BaseDir is the installation root. Always required.
	BaseDir string `toml:"base_dir" validate:"required"`
	// LocalDir enables the override-directory stack when non-empty.
	LocalDir string `toml:"local_dir"`
	CacheDir string `toml:"cache_dir" validate:"required"`
}

// Files controls where configuration files live and which ones are read.
type Files struct {
	ConfigSubdir   string   `toml:"config_subdir"`
	DescriptorName string   `toml:"descriptor_name" validate:"required"`
	Extensions     []string `toml:"extensions" validate:"min=1,dive,required"`
}

// Cache contains configuration for the entire/sparse caches.
type Cache struct {
	Enabled       bool   `toml:"enabled"`
	Backend       string `toml:"backend" validate:"oneof=file sqlite"`
	EntireName    string `toml:"entire_name" validate:"required"`
	SparseName    string `toml:"sparse_name" validate:"required,nefield=EntireName"`
	PersistSparse bool   `toml:"persist_sparse"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format" validate:"oneof=console json"`
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
	Dir    string `toml:"dir"`
}

// API contains configuration for the HTTP lookup surface.
type API struct {
	Bind  string `toml:"bind" validate:"required,hostname_port"`
	Token string `toml:"token"`
}

// Config encapsulates all settings for confstack.
//
// Configuration sections by subsystem:
//   - Paths: base installation, override root, snapshot cache directory
//   - Files: config subdirectory, directory descriptor name, file extensions
//   - Cache: snapshot persistence of the entire and sparse caches
//   - Logging: log format, level, and optional log directory
//   - API: bind address and bearer token for `confstack serve`
type Config struct {
	Paths   Paths   `toml:"paths"`
	Files   Files   `toml:"files"`
	Cache   Cache   `toml:"cache"`
	Logging Logging `toml:"logging"`
	API     API     `toml:"api"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	if value, ok := os.LookupEnv(envConfigPath); ok && strings.TrimSpace(value) != "" {
		return resolveConfigPath(strings.TrimSpace(value))
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("confstack.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the cache and log directories. The base and
// override roots are operator-managed and never created here.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.CacheDir}
	if c.Logging.Dir != "" {
		dirs = append(dirs, c.Logging.Dir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// OverridesEnabled reports whether an override root is configured.
func (c *Config) OverridesEnabled() bool {
	return strings.TrimSpace(c.Paths.LocalDir) != ""
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultCacheDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "confstack")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.cache/confstack"
	}
	return filepath.Join(home, ".cache", "confstack")
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
