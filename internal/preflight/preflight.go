package preflight

import (
	"context"
	"path/filepath"

	"confstack/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Required bool   `json:"required"`
	Detail   string `json:"detail"`
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// Base installation (always checked)
	results = append(results, required(CheckReadable("Base directory", cfg.Paths.BaseDir)))
	if cfg.Files.ConfigSubdir != "" {
		results = append(results, CheckReadable("Base config directory",
			filepath.Join(cfg.Paths.BaseDir, cfg.Files.ConfigSubdir)))
	}

	// Override root
	if cfg.OverridesEnabled() {
		results = append(results, CheckReadable("Override directory", cfg.Paths.LocalDir))
	}

	// Snapshot cache; failure only disables persistence
	if cfg.Cache.Enabled {
		results = append(results, CheckDirectoryAccess("Cache directory", cfg.Paths.CacheDir))
	}

	if err := ctx.Err(); err != nil {
		results = append(results, Result{Name: "Preflight", Detail: err.Error()})
	}
	return results
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if r.Required && !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

func required(r Result) Result {
	r.Required = true
	return r
}
