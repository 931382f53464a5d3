// Package walker scans the local tree that is mirrored to the store.
package walker

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/yuya-takeyama/strict-bunny-sync/pkg/planner"
	"github.com/yuya-takeyama/strict-bunny-sync/pkg/syncerr"
)

// Walker walks regular files below root with exclude pattern support.
// Symbolic links are neither followed nor reported.
type Walker struct {
	fs       billy.Filesystem
	root     string
	excludes []string
}

// NewWalker creates a walker rooted at root inside fsys.
func NewWalker(fsys billy.Filesystem, root string, excludes []string) (*Walker, error) {
	for _, pattern := range excludes {
		if !doublestar.ValidatePattern(strings.TrimSuffix(pattern, "/")) {
			return nil, syncerr.Configuration("exclude", fmt.Errorf("invalid pattern %q", pattern))
		}
	}

	info, err := fsys.Stat(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, syncerr.Configuration("stat root", fmt.Errorf("%s: %w", root, err))
		}
		return nil, syncerr.Filesystem("stat root", root, err)
	}
	if !info.IsDir() {
		return nil, syncerr.Configuration("stat root", fmt.Errorf("root is not a directory: %s", root))
	}

	resolved, err := resolveRoot(fsys, root)
	if err != nil {
		return nil, err
	}

	return &Walker{
		fs:       fsys,
		root:     resolved,
		excludes: excludes,
	}, nil
}

// maxLinkHops bounds symlink chains at the root.
const maxLinkHops = 40

// resolveRoot follows symlinks at root itself, since util.Walk does not.
// Links below the root are left alone.
func resolveRoot(fsys billy.Filesystem, root string) (string, error) {
	for hops := 0; ; hops++ {
		info, err := fsys.Lstat(root)
		if err != nil {
			return "", syncerr.Filesystem("lstat root", root, err)
		}
		if info.Mode()&os.ModeSymlink == 0 {
			return root, nil
		}
		if hops == maxLinkHops {
			return "", syncerr.Configuration("resolve root", fmt.Errorf("too many levels of symbolic links: %s", root))
		}

		target, err := fsys.Readlink(root)
		if err != nil {
			return "", syncerr.Filesystem("readlink root", root, err)
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(root), target)
		}
		root = target
	}
}

// Walk returns every regular file keyed by its remote name below remotePrefix.
func (w *Walker) Walk(remotePrefix string) (planner.LocalMap, error) {
	prefix := planner.NormalizePrefix(remotePrefix)
	files := planner.LocalMap{}

	err := util.Walk(w.fs, w.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return syncerr.Filesystem("walk", path, err)
		}

		relPath, err := filepath.Rel(w.root, path)
		if err != nil {
			return syncerr.Filesystem("walk", path, fmt.Errorf("get relative path: %w", err))
		}
		if relPath == "." {
			return nil
		}
		if !utf8.ValidString(relPath) {
			return syncerr.Encoding("walk", fmt.Sprintf("%q", path), fmt.Errorf("path is not valid UTF-8"))
		}
		relPathForward := filepath.ToSlash(relPath)

		if info.IsDir() {
			if w.isExcludedDir(relPathForward) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if w.isExcluded(relPathForward) {
			return nil
		}

		files[RemoteName(prefix, relPathForward)] = path
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}

	return files, nil
}

// Scan walks root inside fsys and keys every regular file by its remote name.
func Scan(fsys billy.Filesystem, root, remotePrefix string, excludes []string) (planner.LocalMap, error) {
	w, err := NewWalker(fsys, root, excludes)
	if err != nil {
		return nil, err
	}
	return w.Walk(remotePrefix)
}

// isExcluded checks a file path against the patterns. A pattern ending with
// "/" excludes everything below a matching directory.
func (w *Walker) isExcluded(path string) bool {
	for _, pattern := range w.excludes {
		if strings.HasSuffix(pattern, "/") {
			dirPattern := strings.TrimSuffix(pattern, "/")
			parts := strings.Split(path, "/")
			for i := 1; i < len(parts); i++ {
				if matched, _ := doublestar.Match(dirPattern, strings.Join(parts[:i], "/")); matched {
					return true
				}
			}
			continue
		}
		if matched, _ := doublestar.Match(pattern, path); matched {
			return true
		}
	}
	return false
}

func (w *Walker) isExcludedDir(path string) bool {
	for _, pattern := range w.excludes {
		if !strings.HasSuffix(pattern, "/") {
			continue
		}
		if matched, _ := doublestar.Match(strings.TrimSuffix(pattern, "/"), path); matched {
			return true
		}
	}
	return false
}

// RemoteName joins a normalized prefix and a slash-separated relative path.
func RemoteName(prefix, relPath string) string {
	if prefix == "" {
		return relPath
	}
	return prefix + "/" + relPath
}
