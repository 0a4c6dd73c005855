package dirstack_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"pgregory.net/rapid"

	"confstack/internal/diag"
	"confstack/internal/dirstack"
)

type fatalHelper interface {
	Helper()
	Fatalf(format string, args ...any)
}

func writeDescriptor(t fatalHelper, dir, body string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, dirstack.DefaultDescriptorName), []byte(body), 0o644); err != nil {
		t.Fatalf("write descriptor: %v", err)
	}
}

func canonical(t fatalHelper, dir string) string {
	t.Helper()
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatalf("eval symlinks: %v", err)
	}
	return resolved
}

func TestResolveEmptyStart(t *testing.T) {
	rec := &diag.Recorder{}
	stack := dirstack.NewResolver(dirstack.WithSink(rec)).Resolve(context.Background(), "  ")
	if len(stack) != 0 {
		t.Fatalf("expected empty stack, got %v", stack.Paths())
	}
	if len(rec.Events()) != 0 {
		t.Fatalf("expected no diagnostics, got %v", rec.Kinds())
	}
	if _, ok := stack.MostSpecific(); ok {
		t.Fatal("empty stack has no most specific directory")
	}
}

func TestResolveChainOrdersAncestorFirst(t *testing.T) {
	root := t.TempDir()
	base := filepath.Join(root, "base")
	mid := filepath.Join(root, "mid")
	leaf := filepath.Join(root, "leaf")
	writeDescriptor(t, base, "[Local_Dirs]\nconfig_subdir = conf/vufind\n")
	writeDescriptor(t, mid, fmt.Sprintf("[Parent_Dir]\npath = %s\n", base))
	writeDescriptor(t, leaf, "[Parent_Dir]\npath = ../mid\nis_relative_path = true\n")

	rec := &diag.Recorder{}
	stack := dirstack.NewResolver(dirstack.WithSink(rec)).Resolve(context.Background(), leaf)

	want := []string{canonical(t, base), canonical(t, mid), canonical(t, leaf)}
	if diff := cmp.Diff(want, stack.Paths()); diff != "" {
		t.Fatalf("stack mismatch (-want +got):\n%s", diff)
	}
	if stack[0].ConfigSubdir != "conf/vufind" {
		t.Fatalf("expected local config subdir on base, got %q", stack[0].ConfigSubdir)
	}
	if stack[2].ConfigSubdir != "" {
		t.Fatalf("leaf should use default subdir, got %q", stack[2].ConfigSubdir)
	}
	if len(rec.Events()) != 0 {
		t.Fatalf("unexpected diagnostics %v", rec.Kinds())
	}
}

func TestResolveDetectsCycle(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a")
	b := filepath.Join(root, "b")
	writeDescriptor(t, a, "[Parent_Dir]\npath = ../b\nis_relative_path = 1\n")
	writeDescriptor(t, b, fmt.Sprintf("[Parent_Dir]\npath = %s\n", a))

	rec := &diag.Recorder{}
	stack := dirstack.NewResolver(dirstack.WithSink(rec)).Resolve(context.Background(), a)

	if len(stack) > 2 {
		t.Fatalf("cycle must truncate the stack, got %v", stack.Paths())
	}
	last, _ := stack.MostSpecific()
	if last.Path != canonical(t, a) {
		t.Fatalf("most specific should be the start dir, got %s", last.Path)
	}
	if diff := cmp.Diff([]string{diag.KindCycleDetected}, rec.Kinds()); diff != "" {
		t.Fatalf("diagnostics mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveSelfReference(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "self")
	writeDescriptor(t, dir, "[Parent_Dir]\npath = .\nis_relative_path = true\n")

	rec := &diag.Recorder{}
	stack := dirstack.NewResolver(dirstack.WithSink(rec)).Resolve(context.Background(), dir)
	if len(stack) != 1 {
		t.Fatalf("expected single entry, got %v", stack.Paths())
	}
	if diff := cmp.Diff([]string{diag.KindCycleDetected}, rec.Kinds()); diff != "" {
		t.Fatalf("diagnostics mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveMissingDirectories(t *testing.T) {
	root := t.TempDir()

	rec := &diag.Recorder{}
	resolver := dirstack.NewResolver(dirstack.WithSink(rec))
	if stack := resolver.Resolve(context.Background(), filepath.Join(root, "nope")); len(stack) != 0 {
		t.Fatalf("missing start dir should yield empty stack, got %v", stack.Paths())
	}

	leaf := filepath.Join(root, "leaf")
	writeDescriptor(t, leaf, "[Parent_Dir]\npath = /does/not/exist\n")
	stack := resolver.Resolve(context.Background(), leaf)
	if diff := cmp.Diff([]string{canonical(t, leaf)}, stack.Paths()); diff != "" {
		t.Fatalf("stack mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{diag.KindDirectoryMissing, diag.KindDirectoryMissing}, rec.Kinds()); diff != "" {
		t.Fatalf("diagnostics mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveMalformedDescriptor(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "broken")
	writeDescriptor(t, dir, "[Parent_Dir\npath = ../x\n")

	rec := &diag.Recorder{}
	stack := dirstack.NewResolver(dirstack.WithSink(rec)).Resolve(context.Background(), dir)
	if len(stack) != 1 {
		t.Fatalf("expected the directory itself, got %v", stack.Paths())
	}
	if stack[0].Descriptor != (dirstack.Descriptor{}) {
		t.Fatalf("malformed descriptor should be empty, got %+v", stack[0].Descriptor)
	}
	if diff := cmp.Diff([]string{diag.KindDescriptorInvalid}, rec.Kinds()); diff != "" {
		t.Fatalf("diagnostics mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveFollowsSymlinks(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "target")
	writeDescriptor(t, target, "")
	link := filepath.Join(root, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	stack := dirstack.NewResolver().Resolve(context.Background(), link)
	if diff := cmp.Diff([]string{canonical(t, target)}, stack.Paths()); diff != "" {
		t.Fatalf("stack mismatch (-want +got):\n%s", diff)
	}
}

func TestCustomDescriptorName(t *testing.T) {
	root := t.TempDir()
	parent := filepath.Join(root, "parent")
	child := filepath.Join(root, "child")
	if err := os.MkdirAll(parent, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(child, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(child, "stack.ini"), []byte("[Parent_Dir]\npath = ../parent\nis_relative_path = true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	stack := dirstack.NewResolver(dirstack.WithDescriptorName("stack.ini")).Resolve(context.Background(), child)
	if len(stack) != 2 {
		t.Fatalf("expected two entries, got %v", stack.Paths())
	}
}

func TestResolveChainProperty(t *testing.T) {
	base := t.TempDir()
	rapid.Check(t, func(rt *rapid.T) {
		caseDir, err := os.MkdirTemp(base, "case")
		if err != nil {
			rt.Fatalf("mkdtemp: %v", err)
		}
		depth := rapid.IntRange(1, 6).Draw(rt, "depth")

		dirs := make([]string, depth)
		for i := range depth {
			dirs[i] = filepath.Join(caseDir, fmt.Sprintf("d%d", i))
			body := ""
			if i > 0 {
				if rapid.Bool().Draw(rt, fmt.Sprintf("relative%d", i)) {
					body = fmt.Sprintf("[Parent_Dir]\npath = ../d%d\nis_relative_path = true\n", i-1)
				} else {
					body = fmt.Sprintf("[Parent_Dir]\npath = %s\n", dirs[i-1])
				}
			}
			writeDescriptor(rt, dirs[i], body)
		}

		rec := &diag.Recorder{}
		stack := dirstack.NewResolver(dirstack.WithSink(rec)).Resolve(context.Background(), dirs[depth-1])

		if len(stack) != depth {
			rt.Fatalf("expected %d entries, got %v", depth, stack.Paths())
		}
		for i, d := range stack {
			if d.Path != canonical(rt, dirs[i]) {
				rt.Fatalf("entry %d = %s, want %s", i, d.Path, dirs[i])
			}
		}
		last, _ := stack.MostSpecific()
		if last.Path != canonical(rt, dirs[depth-1]) {
			rt.Fatalf("last entry %s is not the start dir", last.Path)
		}
		if len(rec.Events()) != 0 {
			rt.Fatalf("unexpected diagnostics %v", rec.Kinds())
		}
	})
}
