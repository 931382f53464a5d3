// Package planner diffs the local tree against the remote tree and produces an
// ordered list of tasks.
package planner

import (
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Plan returns one task per local name and one delete per unprotected
// remote-only name.
//
// Puts and replaces come first, ordered by (IsHTML, name) so that assets are
// submitted before the pages referencing them. Deletes follow in name order.
func Plan(local LocalMap, remote RemoteMap, opts Options) ([]Task, error) {
	names := make([]string, 0, len(local))
	for name := range local {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		hi, hj := IsHTML(names[i]), IsHTML(names[j])
		if hi != hj {
			return !hi
		}
		return names[i] < names[j]
	})

	tasks := make([]Task, 0, len(local))
	for _, name := range names {
		if sum, ok := remote[name]; ok {
			tasks = append(tasks, Task{
				Kind:           KindReplace,
				LocalPath:      local[name],
				RemoteName:     name,
				RemoteChecksum: sum,
			})
			continue
		}
		tasks = append(tasks, Task{
			Kind:       KindPut,
			LocalPath:  local[name],
			RemoteName: name,
		})
	}

	removals, err := RemovalSet(local, remote, opts)
	if err != nil {
		return nil, err
	}
	for _, name := range removals {
		tasks = append(tasks, Task{Kind: KindDelete, RemoteName: name})
	}
	return tasks, nil
}

// RemovalSet returns the remote-only names that must be deleted, sorted.
func RemovalSet(local LocalMap, remote RemoteMap, opts Options) ([]string, error) {
	var removals []string
	for name := range remote {
		if _, ok := local[name]; ok {
			continue
		}
		if IsProtected(name, opts.Protected) {
			continue
		}
		excluded, err := IsExcluded(relativeTo(name, opts.RemotePrefix), opts.Excludes)
		if err != nil {
			return nil, err
		}
		if excluded {
			continue
		}
		removals = append(removals, name)
	}
	sort.Strings(removals)
	return removals, nil
}

// IsHTML reports whether name is a page that should be published after
// everything else.
func IsHTML(name string) bool {
	return strings.HasSuffix(name, ".html") || strings.HasSuffix(name, ".htm")
}

// IsProtected reports whether name starts with any of the prefixes.
func IsProtected(name string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// IsExcluded reports whether path matches any of the doublestar patterns.
func IsExcluded(path string, patterns []string) (bool, error) {
	for _, pattern := range patterns {
		matched, err := doublestar.Match(pattern, path)
		if err != nil {
			return false, err
		}
		if matched {
			return true, nil
		}
	}
	return false, nil
}

// NormalizePrefix trims surrounding slashes from a remote path so "/", "" and
// "/docs/" become "" and "docs".
func NormalizePrefix(prefix string) string {
	return strings.Trim(prefix, "/")
}

func relativeTo(name, prefix string) string {
	prefix = NormalizePrefix(prefix)
	if prefix == "" {
		return name
	}
	return strings.TrimPrefix(name, prefix+"/")
}
