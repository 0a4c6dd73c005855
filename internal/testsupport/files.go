package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates path and any missing parents with the given contents.
func WriteFile(t testing.TB, path, body string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// Layout is a three level configuration tree: a base directory, a shared
// override and a site override that names shared as its parent.
type Layout struct {
	Base   string
	Shared string
	Site   string
}

// WriteLayout populates base <- shared <- site under root. Shared's
// config.ini inherits from the base file through Parent_Config, and the site
// contributes a searches.ini of its own.
func WriteLayout(t testing.TB, root string) Layout {
	t.Helper()

	l := Layout{
		Base:   filepath.Join(root, "base"),
		Shared: filepath.Join(root, "shared"),
		Site:   filepath.Join(root, "site"),
	}
	WriteFile(t, filepath.Join(l.Base, "config", "config.ini"),
		"[Site]\nurl = http://base\ntitle = Base\n[Index]\nengine = solr\nshards[] = local\nshards[] = remote\n")
	WriteFile(t, filepath.Join(l.Shared, "config", "config.ini"),
		"[Parent_Config]\nrelative_path = ../../base/config/config.ini\n[Site]\ntitle = Shared\n")
	WriteFile(t, filepath.Join(l.Site, "DirLocations.ini"),
		"[Parent_Dir]\npath = ../shared\nis_relative_path = true\n")
	WriteFile(t, filepath.Join(l.Site, "config", "searches.ini"), "[General]\nlimit = 20\n")
	return l
}
