package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeFiles()
	c.normalizeCache()
	c.normalizeLogging()
	if err := c.normalizeLogDir(); err != nil {
		return err
	}
	c.normalizeAPI()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.BaseDir) == "" {
		if value, ok := os.LookupEnv(envBaseDir); ok {
			c.Paths.BaseDir = strings.TrimSpace(value)
		}
	}
	if c.Paths.BaseDir, err = expandPath(strings.TrimSpace(c.Paths.BaseDir)); err != nil {
		return fmt.Errorf("paths.base_dir: %w", err)
	}

	if strings.TrimSpace(c.Paths.LocalDir) == "" {
		if value, ok := os.LookupEnv(envLocalDir); ok {
			c.Paths.LocalDir = strings.TrimSpace(value)
		}
	}
	if c.Paths.LocalDir, err = expandPath(strings.TrimSpace(c.Paths.LocalDir)); err != nil {
		return fmt.Errorf("paths.local_dir: %w", err)
	}

	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		if value, ok := os.LookupEnv(envCacheDir); ok && strings.TrimSpace(value) != "" {
			c.Paths.CacheDir = strings.TrimSpace(value)
		} else {
			c.Paths.CacheDir = defaultCacheDir()
		}
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeFiles() {
	c.Files.ConfigSubdir = strings.Trim(filepath.ToSlash(strings.TrimSpace(c.Files.ConfigSubdir)), "/")
	c.Files.DescriptorName = strings.TrimSpace(c.Files.DescriptorName)
	if c.Files.DescriptorName == "" {
		c.Files.DescriptorName = defaultDescriptorName
	}

	exts := make([]string, 0, len(c.Files.Extensions))
	seen := make(map[string]struct{}, len(c.Files.Extensions))
	for _, ext := range c.Files.Extensions {
		normalized := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		exts = append(exts, normalized)
	}
	if len(exts) == 0 {
		exts = append(exts, DefaultExtensions...)
	}
	c.Files.Extensions = exts
}

func (c *Config) normalizeCache() {
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	if c.Cache.Backend == "" {
		c.Cache.Backend = defaultCacheBackend
	}
	c.Cache.EntireName = strings.TrimSpace(c.Cache.EntireName)
	if c.Cache.EntireName == "" {
		c.Cache.EntireName = defaultEntireName
	}
	c.Cache.SparseName = strings.TrimSpace(c.Cache.SparseName)
	if c.Cache.SparseName == "" {
		c.Cache.SparseName = defaultSparseName
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	switch c.Logging.Level {
	case "":
		c.Logging.Level = defaultLogLevel
	case "warning":
		c.Logging.Level = "warn"
	}
}

func (c *Config) normalizeLogDir() error {
	var err error
	if c.Logging.Dir, err = expandPath(strings.TrimSpace(c.Logging.Dir)); err != nil {
		return fmt.Errorf("logging.dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		if value, ok := os.LookupEnv(envAPIToken); ok {
			c.API.Token = strings.TrimSpace(value)
		}
	}
}
