package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "nested", "snapshot.json")

	if err := WriteFileAtomic(target, []byte(`{"a":1}`), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"a":1}` {
		t.Fatalf("content mismatch: got %q", got)
	}

	entries, err := os.ReadDir(filepath.Dir(target))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temp files to be gone, found %d entries", len(entries))
	}
}

func TestWriteFileAtomicReplaces(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "data.json")

	if err := WriteFileAtomic(target, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteFileAtomic(target, []byte("new"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "new" {
		t.Fatalf("content mismatch: got %q", got)
	}
}

func TestRemoveIfExists(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "gone")

	if err := RemoveIfExists(target); err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := RemoveIfExists(target); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, stat err=%v", err)
	}
}

func TestCountingFS(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a.ini")
	if err := os.WriteFile(target, []byte("[A]\nk = v\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	fsys := NewCountingFS(nil)
	for i := 0; i < 3; i++ {
		if _, err := fsys.ReadFile(target); err != nil {
			t.Fatal(err)
		}
	}
	if got := fsys.Reads(target); got != 3 {
		t.Fatalf("expected 3 reads, got %d", got)
	}
	if !IsFile(fsys, target) {
		t.Fatal("expected IsFile true")
	}
	if IsFile(fsys, dir) {
		t.Fatal("directory must not count as file")
	}
	if !IsDir(fsys, dir) {
		t.Fatal("expected IsDir true")
	}

	fsys.Reset()
	if fsys.TotalReads() != 0 {
		t.Fatalf("expected counters reset, got %d", fsys.TotalReads())
	}
}
