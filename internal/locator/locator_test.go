package locator_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"confstack/internal/dirstack"
	"confstack/internal/locator"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("[A]\nx = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func fixture(t *testing.T) (string, dirstack.Stack) {
	t.Helper()
	root := t.TempDir()
	base := filepath.Join(root, "base")
	stack := dirstack.Stack{
		{Path: filepath.Join(root, "ancestor")},
		{Path: filepath.Join(root, "middle"), ConfigSubdir: "special"},
		{Path: filepath.Join(root, "leaf")},
	}
	for _, d := range stack {
		if err := os.MkdirAll(d.Path, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return base, stack
}

func TestLocalPathPrefersMostSpecific(t *testing.T) {
	base, stack := fixture(t)
	touch(t, filepath.Join(stack[0].Path, "config", "main.ini"))
	touch(t, filepath.Join(stack[1].Path, "special", "main.ini"))

	loc := locator.New(base, stack)
	path, ok := loc.LocalPath("main.ini", "config", false)
	if !ok {
		t.Fatal("expected a local path")
	}
	if want := filepath.Join(stack[1].Path, "special", "main.ini"); path != want {
		t.Fatalf("got %s want %s", path, want)
	}

	touch(t, filepath.Join(stack[2].Path, "config", "main.ini"))
	if path, _ := loc.LocalPath("main.ini", "config", false); path != filepath.Join(stack[2].Path, "config", "main.ini") {
		t.Fatalf("leaf override not preferred: %s", path)
	}
}

func TestLocalPathForce(t *testing.T) {
	base, stack := fixture(t)
	loc := locator.New(base, stack)

	if path, ok := loc.LocalPath("new.ini", "config", false); ok || path != "" {
		t.Fatalf("expected null result without force, got %q", path)
	}
	path, ok := loc.LocalPath("new.ini", "config", true)
	if !ok {
		t.Fatal("force must return a path")
	}
	if want := filepath.Join(stack[2].Path, "config", "new.ini"); path != want {
		t.Fatalf("got %s want %s", path, want)
	}
}

func TestLocalPathEmptyStack(t *testing.T) {
	loc := locator.New(t.TempDir(), nil)
	if _, ok := loc.LocalPath("main.ini", "config", true); ok {
		t.Fatal("no override directories means no local path, even with force")
	}
}

func TestResolveFallsBackToBase(t *testing.T) {
	base, stack := fixture(t)
	loc := locator.New(base, stack)

	want := filepath.Join(base, "config", "main.ini")
	if got := loc.BasePath("main.ini", "config"); got != want {
		t.Fatalf("BasePath = %s want %s", got, want)
	}
	if got := loc.Resolve("main.ini", "config"); got != want {
		t.Fatalf("Resolve = %s want %s", got, want)
	}

	touch(t, filepath.Join(stack[0].Path, "config", "main.ini"))
	if got := loc.Resolve("main.ini", "config"); got != filepath.Join(stack[0].Path, "config", "main.ini") {
		t.Fatalf("Resolve should prefer override, got %s", got)
	}
}

func TestCandidatesAndDirectories(t *testing.T) {
	base, stack := fixture(t)
	loc := locator.New(base, stack)

	wantCandidates := []string{
		filepath.Join(stack[2].Path, "config", "main.ini"),
		filepath.Join(stack[1].Path, "special", "main.ini"),
		filepath.Join(stack[0].Path, "config", "main.ini"),
		filepath.Join(base, "config", "main.ini"),
	}
	if diff := cmp.Diff(wantCandidates, loc.Candidates("main.ini", "config")); diff != "" {
		t.Fatalf("candidates mismatch (-want +got):\n%s", diff)
	}

	wantDirs := []string{
		filepath.Join(base, "config"),
		filepath.Join(stack[0].Path, "config"),
		filepath.Join(stack[1].Path, "special"),
		filepath.Join(stack[2].Path, "config"),
	}
	if diff := cmp.Diff(wantDirs, loc.Directories("config")); diff != "" {
		t.Fatalf("directories mismatch (-want +got):\n%s", diff)
	}
}

func TestLocalPathIgnoresDirectories(t *testing.T) {
	base, stack := fixture(t)
	if err := os.MkdirAll(filepath.Join(stack[2].Path, "config", "main.ini"), 0o755); err != nil {
		t.Fatal(err)
	}
	if _, ok := locator.New(base, stack).LocalPath("main.ini", "config", false); ok {
		t.Fatal("a directory named like the file is not a match")
	}
}
