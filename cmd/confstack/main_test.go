package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"confstack/internal/api"
	"confstack/internal/engine"
	"confstack/internal/testsupport"
)

type cliTestEnv struct {
	root       string
	baseDir    string
	sharedDir  string
	siteDir    string
	cacheDir   string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("resolve temp dir: %v", err)
	}
	t.Setenv("HOME", filepath.Join(root, "home"))
	t.Setenv("CONFSTACK_CONFIG", "")
	t.Setenv("CONFSTACK_BASE_DIR", "")
	t.Setenv("CONFSTACK_LOCAL_DIR", "")
	t.Setenv("CONFSTACK_CACHE_DIR", "")

	env := &cliTestEnv{
		root:      root,
		baseDir:   filepath.Join(root, "base"),
		sharedDir: filepath.Join(root, "shared"),
		siteDir:   filepath.Join(root, "site"),
		cacheDir:  filepath.Join(root, "cache"),
	}

	testsupport.WriteFile(t, filepath.Join(env.baseDir, "config", "config.ini"),
		"[Site]\nurl = http://base\ntitle = Base\n[Index]\nengine = solr\nshards[] = local\nshards[] = remote\n")
	testsupport.WriteFile(t, filepath.Join(env.sharedDir, "config", "config.ini"),
		"[Parent_Config]\nrelative_path = ../../base/config/config.ini\n[Site]\ntitle = Shared\n")
	testsupport.WriteFile(t, filepath.Join(env.siteDir, "DirLocations.ini"),
		"[Parent_Dir]\npath = ../shared\nis_relative_path = true\n")
	testsupport.WriteFile(t, filepath.Join(env.siteDir, "config", "searches.yaml"), "General:\n  limit: 20\n")

	env.configPath = filepath.Join(root, "confstack.toml")
	testsupport.WriteFile(t, env.configPath, fmt.Sprintf(`[paths]
base_dir = %q
local_dir = %q
cache_dir = %q

[logging]
level = "error"
`, env.baseDir, env.siteDir, env.cacheDir))
	return env
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func decodeJSON(t *testing.T, data string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(data), v); err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
}

func TestGetCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"get", "config/Site/title"}, env.configPath)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if out != "Shared\n" {
		t.Fatalf("unexpected scalar output %q", out)
	}

	out, _, err = runCLI(t, []string{"get", "/config/Index/shards/"}, env.configPath)
	if err != nil {
		t.Fatalf("get sequence: %v", err)
	}
	if out != "local\nremote\n" {
		t.Fatalf("unexpected sequence output %q", out)
	}

	out, _, err = runCLI(t, []string{"get", "searches"}, env.configPath)
	if err != nil {
		t.Fatalf("get branch: %v", err)
	}
	requireContains(t, out, `"limit": "20"`)

	out, _, err = runCLI(t, []string{"--json", "get", "config/Site/url"}, env.configPath)
	if err != nil {
		t.Fatalf("get --json: %v", err)
	}
	var resp api.ConfigResponse
	decodeJSON(t, out, &resp)
	if resp.Path != "config/Site/url" || resp.Value.String() != "http://base" {
		t.Fatalf("unexpected response %+v", resp)
	}

	_, _, err = runCLI(t, []string{"get", "facets/Results"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestStackCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"stack"}, env.configPath)
	if err != nil {
		t.Fatalf("stack: %v", err)
	}
	var resp api.StackResponse
	decodeJSON(t, out, &resp)
	if len(resp.Directories) != 2 {
		t.Fatalf("expected 2 directories, got %+v", resp.Directories)
	}
	if resp.Directories[0].Path != env.sharedDir || resp.Directories[1].Path != env.siteDir {
		t.Fatalf("unexpected stack order %+v", resp.Directories)
	}
}

func TestLocateCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"locate", "config.ini"}, env.configPath)
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	var result locateResult
	decodeJSON(t, out, &result)
	want := filepath.Join(env.sharedDir, "config", "config.ini")
	if result.Resolved != want || result.Local != want {
		t.Fatalf("resolved %q local %q, want %q", result.Resolved, result.Local, want)
	}
	if len(result.Candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %+v", result.Candidates)
	}
	if result.Candidates[0].Exists || !result.Candidates[1].Exists || !result.Candidates[2].Exists {
		t.Fatalf("unexpected candidate existence %+v", result.Candidates)
	}

	out, _, err = runCLI(t, []string{"locate", "facets.ini", "--force"}, env.configPath)
	if err != nil {
		t.Fatalf("locate --force: %v", err)
	}
	decodeJSON(t, out, &result)
	if want := filepath.Join(env.siteDir, "config", "facets.ini"); result.Resolved != want {
		t.Fatalf("forced path %q, want %q", result.Resolved, want)
	}
}

func TestLoadCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"load", "config.ini"}, env.configPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	var merged map[string]map[string]any
	decodeJSON(t, out, &merged)
	if merged["Site"]["title"] != "Shared" || merged["Index"]["engine"] != "solr" {
		t.Fatalf("unexpected merged document %v", merged)
	}

	out, _, err = runCLI(t, []string{"load", "config.ini", "--chain"}, env.configPath)
	if err != nil {
		t.Fatalf("load --chain: %v", err)
	}
	var links []struct {
		Path string `json:"path"`
	}
	decodeJSON(t, out, &links)
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %+v", links)
	}
	if links[1].Path != filepath.Join(env.baseDir, "config", "config.ini") {
		t.Fatalf("unexpected root of chain %q", links[1].Path)
	}
}

func TestCacheStatusAndReset(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"cache", "status", "--warm"}, env.configPath)
	if err != nil {
		t.Fatalf("cache status: %v", err)
	}
	var status engine.Status
	decodeJSON(t, out, &status)
	if status.Backend != "file" || status.Degraded || !status.Cache.Built {
		t.Fatalf("unexpected status %+v", status)
	}
	if len(status.Snapshots) != 2 {
		t.Fatalf("expected entire and sparse snapshots, got %+v", status.Snapshots)
	}
	if _, err := os.Stat(filepath.Join(env.cacheDir, "entire.json")); err != nil {
		t.Fatalf("expected entire snapshot: %v", err)
	}

	out, _, err = runCLI(t, []string{"reset"}, env.configPath)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	requireContains(t, out, `"reset": true`)

	out, _, err = runCLI(t, []string{"cache", "status"}, env.configPath)
	if err != nil {
		t.Fatalf("cache status after reset: %v", err)
	}
	status = engine.Status{}
	decodeJSON(t, out, &status)
	if len(status.Snapshots) != 0 || status.Cache.Built {
		t.Fatalf("expected empty cache after reset, got %+v", status)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "(2 directories in stack)")
	requireContains(t, out, "[ok  ] Cache directory")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected error when config already exists")
	}
}

func TestMissingBaseDirFails(t *testing.T) {
	env := setupCLITestEnv(t)
	path := filepath.Join(env.root, "empty.toml")
	testsupport.WriteFile(t, path, "[logging]\nlevel = \"error\"\n")

	_, _, err := runCLI(t, []string{"stack"}, path)
	if err == nil || !strings.Contains(err.Error(), "CONFSTACK_BASE_DIR") {
		t.Fatalf("expected base_dir error, got %v", err)
	}
}

func TestRenderTable(t *testing.T) {
	rendered := renderTable(
		[]string{"#", "Candidate", "Exists"},
		[][]string{{"1", "/srv/site/config/config.ini", "no"}, {"2", "/srv/base/config/config.ini"}},
		[]columnAlignment{alignRight},
	)
	for _, want := range []string{"Candidate", "/srv/site/config/config.ini", "/srv/base/config/config.ini", "no"} {
		requireContains(t, rendered, want)
	}
	if renderTable(nil, nil, nil) != "" {
		t.Fatal("expected empty table without headers")
	}
}
