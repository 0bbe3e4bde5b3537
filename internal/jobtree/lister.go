package jobtree

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"syscall"
)

// DirContent is the listing of a single directory.
// Symlinks never appear in either slice, whatever they point to.
type DirContent struct {
	Dirs  []string // absolute paths of child directories
	Files []string // names of child files
}

// Empty reports whether the directory has no (non-symlink) children at all.
func (c DirContent) Empty() bool {
	return len(c.Dirs) == 0 && len(c.Files) == 0
}

// HasDir reports whether a child directory with the given base name exists.
func (c DirContent) HasDir(name string) bool {
	for _, d := range c.Dirs {
		if filepath.Base(d) == name {
			return true
		}
	}
	return false
}

// HasFile reports whether a child file with the given name exists.
func (c DirContent) HasFile(name string) bool {
	return slices.Contains(c.Files, name)
}

// List returns the immediate children of dir, split into directories and files.
// A directory that no longer exists yields an empty listing and a nil error:
// other purge processes and job producers mutate the tree concurrently.
func List(dir string) (DirContent, error) {
	var content DirContent

	entries, err := os.ReadDir(dir)
	if err != nil {
		if vanished(err) {
			return content, nil
		}
		return content, fmt.Errorf("list %s: %w", dir, err)
	}

	for _, e := range entries {
		// Info is an lstat; it never follows a symlink.
		info, err := e.Info()
		if err != nil {
			if vanished(err) {
				continue
			}
			return DirContent{}, fmt.Errorf("stat %s: %w", filepath.Join(dir, e.Name()), err)
		}
		mode := info.Mode()
		switch {
		case mode&fs.ModeSymlink != 0:
			continue
		case mode.IsDir():
			content.Dirs = append(content.Dirs, filepath.Join(dir, e.Name()))
		default:
			content.Files = append(content.Files, e.Name())
		}
	}

	return content, nil
}

// vanished reports whether err means the path disappeared under us.
// ENOTDIR covers a directory replaced by a file between listing and reading.
func vanished(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}
