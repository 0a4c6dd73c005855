package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	structCheck  *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		structCheck = validator.New(validator.WithRequiredStructEnabled())
		structCheck.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("toml"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return structCheck
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStruct(); err != nil {
		return err
	}
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateFiles(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStruct() error {
	err := structValidator().Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validate config: %w", err)
	}
	first := fieldErrs[0]
	key := dottedKey(first.Namespace())
	if key == "paths.base_dir" && first.Tag() == "required" {
		defaultPath, pathErr := DefaultConfigPath()
		if pathErr != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("paths.base_dir is required. Set %s or edit %s (create with 'confstack config init')", envBaseDir, defaultPath)
	}
	if first.Param() != "" {
		return fmt.Errorf("%s must satisfy %s=%s (got %q)", key, first.Tag(), first.Param(), fmt.Sprint(first.Value()))
	}
	return fmt.Errorf("%s must satisfy %s (got %q)", key, first.Tag(), fmt.Sprint(first.Value()))
}

func (c *Config) validatePaths() error {
	info, err := os.Stat(c.Paths.BaseDir)
	if err != nil {
		return fmt.Errorf("paths.base_dir %q: %w", c.Paths.BaseDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("paths.base_dir %q is not a directory", c.Paths.BaseDir)
	}
	if c.Paths.LocalDir != "" && c.Paths.LocalDir == c.Paths.BaseDir {
		return errors.New("paths.local_dir must differ from paths.base_dir")
	}
	return nil
}

func (c *Config) validateFiles() error {
	if strings.Contains(c.Files.DescriptorName, "/") || strings.Contains(c.Files.DescriptorName, string(filepath.Separator)) {
		return errors.New("files.descriptor_name must be a bare file name")
	}
	if strings.HasPrefix(c.Files.ConfigSubdir, "..") {
		return errors.New("files.config_subdir must stay inside the base directory")
	}
	return nil
}

// dottedKey turns "Config.paths.base_dir" into "paths.base_dir".
func dottedKey(namespace string) string {
	if idx := strings.Index(namespace, "."); idx >= 0 {
		return namespace[idx+1:]
	}
	return namespace
}
