// Package enumerator lists the remote tree below a prefix with a pool of
// concurrent directory listings.
package enumerator

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/yuya-takeyama/strict-bunny-sync/internal/checksum"
	"github.com/yuya-takeyama/strict-bunny-sync/internal/worker"
	"github.com/yuya-takeyama/strict-bunny-sync/pkg/planner"
	"github.com/yuya-takeyama/strict-bunny-sync/pkg/storage"
	"github.com/yuya-takeyama/strict-bunny-sync/pkg/syncerr"
)

type Enumerator struct {
	store       storage.Store
	logger      *zap.Logger
	concurrency int
}

func NewEnumerator(store storage.Store, logger *zap.Logger, concurrency int) *Enumerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enumerator{
		store:       store,
		logger:      logger,
		concurrency: concurrency,
	}
}

type listing struct {
	path    string
	entries []storage.Entry
	err     error
}

// Enumerate returns every file below rootPrefix with its checksum. Directories
// whose slash-terminated path starts with a protected prefix are not listed.
// The first failed listing aborts the whole enumeration.
func (e *Enumerator) Enumerate(ctx context.Context, rootPrefix string, protected []string) (planner.RemoteMap, error) {
	work := make(chan string)
	results := make(chan listing)

	pool := worker.New(e.concurrency, func(ctx context.Context, path string) listing {
		entries, err := e.store.ListDir(ctx, path)
		return listing{path: path, entries: entries, err: err}
	})
	pool.Start(ctx, work, results)
	defer func() {
		close(work)
		pool.Wait()
	}()

	globalPrefix := "/" + e.store.ID() + "/"
	pending := []string{seedPath(rootPrefix)}
	// queued plus in-flight listings; zero means the walk is complete
	outstanding := 1

	var files []storage.Entry
	var firstErr error

	for outstanding > 0 {
		var send chan<- string
		var next string
		if len(pending) > 0 {
			send = work
			next = pending[0]
		}

		select {
		case send <- next:
			pending = pending[1:]

		case res := <-results:
			outstanding--
			if firstErr != nil {
				continue
			}
			if res.err != nil {
				firstErr = fmt.Errorf("list %q: %w", res.path, res.err)
				outstanding -= len(pending)
				pending = nil
				pool.Stop()
				continue
			}

			e.logger.Debug("listed directory",
				zap.String("path", res.path),
				zap.Int("entries", len(res.entries)))

			for _, child := range res.entries {
				if !child.IsDirectory {
					files = append(files, child)
					continue
				}
				subtree := subtreePath(child, globalPrefix)
				if planner.IsProtected(subtree, protected) {
					e.logger.Debug("skipping protected directory", zap.String("path", subtree))
					continue
				}
				outstanding++
				pending = append(pending, subtree)
			}
		}
	}

	if firstErr != nil {
		return nil, firstErr
	}
	return toRemoteMap(files, globalPrefix)
}

// Enumerate is a shorthand for NewEnumerator(store, logger, concurrency).Enumerate.
func Enumerate(ctx context.Context, store storage.Store, rootPrefix string, protected []string, concurrency int, logger *zap.Logger) (planner.RemoteMap, error) {
	return NewEnumerator(store, logger, concurrency).Enumerate(ctx, rootPrefix, protected)
}

func toRemoteMap(files []storage.Entry, globalPrefix string) (planner.RemoteMap, error) {
	remote := make(planner.RemoteMap, len(files))
	for _, f := range files {
		name := strings.TrimPrefix(f.Path, globalPrefix) + f.ObjectName
		if f.Checksum == "" {
			remote[name] = nil
			continue
		}
		sum, err := checksum.ParseHex(f.Checksum)
		if err != nil {
			return nil, syncerr.Encoding("decode checksum", name, err)
		}
		remote[name] = &sum
	}
	return remote, nil
}

// seedPath turns a remote path such as "/", "docs" or "/docs/" into the
// listing path "" or "docs/".
func seedPath(rootPrefix string) string {
	prefix := planner.NormalizePrefix(rootPrefix)
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

// subtreePath returns the store-root relative, slash-terminated path of a
// directory entry. Directories at the root have no leading slash.
func subtreePath(dir storage.Entry, globalPrefix string) string {
	parent := strings.TrimSuffix(strings.TrimPrefix(dir.Path, globalPrefix), "/")
	if parent == "" {
		return dir.ObjectName + "/"
	}
	return parent + "/" + dir.ObjectName + "/"
}
