package dirstack

import (
	"path/filepath"
	"strings"

	"confstack/internal/document"
	"confstack/internal/fileutil"
)

// Descriptor sections and keys.
const (
	sectionParentDir = "Parent_Dir"
	sectionLocalDirs = "Local_Dirs"
	keyPath          = "path"
	keyIsRelative    = "is_relative_path"
	keyConfigSubdir  = "config_subdir"
)

// Descriptor is the contents of a directory's self-describing file.
type Descriptor struct {
	ParentPath        string `json:"parent_path,omitempty"`
	ParentIsRelative  bool   `json:"parent_is_relative,omitempty"`
	LocalConfigSubdir string `json:"local_config_subdir,omitempty"`
}

// HasParent reports whether the descriptor names a parent directory.
func (d Descriptor) HasParent() bool {
	return d.ParentPath != ""
}

// LoadDescriptor reads name from dir. A missing file yields an empty
// descriptor and no error.
func LoadDescriptor(fsys fileutil.FS, dir, name string) (Descriptor, error) {
	path := filepath.Join(dir, name)
	if !fileutil.IsFile(fsys, path) {
		return Descriptor{}, nil
	}
	doc, err := document.ParseFile(fsys, path)
	if err != nil {
		return Descriptor{}, err
	}
	return Descriptor{
		ParentPath:        strings.TrimSpace(doc.Get(sectionParentDir, keyPath).String()),
		ParentIsRelative:  doc.Get(sectionParentDir, keyIsRelative).Bool(),
		LocalConfigSubdir: strings.Trim(strings.TrimSpace(doc.Get(sectionLocalDirs, keyConfigSubdir).String()), "/"),
	}, nil
}
