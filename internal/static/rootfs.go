package static

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// containedFS serves from an os.Root, which refuses any lookup that would
// resolve outside the root, symlinks included. Such refusals are reported
// as fs.ErrPermission so the file server answers 403. A file used as a
// directory counts as missing. Other open failures pass through and become
// 500.
type containedFS struct {
	root *os.Root
	fsys fs.FS
	// dir is the absolute root with symlinks resolved.
	dir string
}

func openContained(dir string) (*containedFS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, err
	}

	root, err := os.OpenRoot(resolved)
	if err != nil {
		return nil, err
	}
	return &containedFS{root: root, fsys: root.FS(), dir: resolved}, nil
}

func (c *containedFS) Open(name string) (fs.File, error) {
	f, err := c.fsys.Open(name)
	if err != nil {
		return nil, c.classify(name, err)
	}
	return f, nil
}

func (c *containedFS) Close() error {
	return c.root.Close()
}

func (c *containedFS) classify(name string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission):
		return err
	case errors.Is(err, syscall.ENOTDIR):
		return &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	case c.escapes(name):
		return &fs.PathError{Op: "open", Path: name, Err: fs.ErrPermission}
	default:
		return err
	}
}

// escapes reports whether name, with symlinks followed, lands outside the
// root.
func (c *containedFS) escapes(name string) bool {
	resolved, err := filepath.EvalSymlinks(filepath.Join(c.dir, filepath.FromSlash(name)))
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(c.dir, resolved)
	if err != nil {
		return true
	}
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
