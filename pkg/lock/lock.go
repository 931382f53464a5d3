// Package lock implements the advisory lock file that keeps two syncs from
// running against the same store at once.
//
// Acquisition is read-then-write. Two runs racing inside that window can
// both succeed; the store offers no conditional write to close it.
package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yuya-takeyama/strict-bunny-sync/pkg/storage"
	"github.com/yuya-takeyama/strict-bunny-sync/pkg/syncerr"
)

// ContentType of the lock file.
const ContentType = "text/plain"

var now = time.Now

// Handle is a held lock. Release it with defer right after Acquire.
type Handle struct {
	store      storage.Store
	name       string
	logger     *zap.Logger
	acquiredAt time.Time
	once       sync.Once
}

// Acquire writes the lock file named name. An existing lock file fails with
// syncerr.ErrLockHeld unless force is set, in which case it is overwritten.
func Acquire(ctx context.Context, store storage.Store, name string, force bool, logger *zap.Logger) (*Handle, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	existing, err := store.Read(ctx, name)
	switch {
	case err == nil:
		since := strings.TrimSpace(string(existing))
		logger.Warn("remote is locked",
			zap.String("lockfile", name),
			zap.String("since", since),
			zap.Bool("force", force))
		if !force {
			return nil, syncerr.New(syncerr.ErrLockHeld, "acquire lock", name,
				fmt.Errorf("dangling lock since %s prevents sync", since))
		}
	case errors.Is(err, storage.ErrNotFound):
	default:
		return nil, fmt.Errorf("check lock %s: %w", name, err)
	}

	acquiredAt := now()
	if err := store.Put(ctx, name, []byte(acquiredAt.Format(time.RFC3339)), ContentType); err != nil {
		return nil, fmt.Errorf("write lock %s: %w", name, err)
	}
	logger.Debug("lock acquired", zap.String("lockfile", name), zap.Time("at", acquiredAt))

	return &Handle{
		store:      store,
		name:       name,
		logger:     logger,
		acquiredAt: acquiredAt,
	}, nil
}

// Name returns the lock file name.
func (h *Handle) Name() string {
	return h.name
}

// AcquiredAt returns the timestamp written to the lock file.
func (h *Handle) AcquiredAt() time.Time {
	return h.acquiredAt
}

// Release deletes the lock file. Failures are logged, never returned. Only
// the first call has an effect.
func (h *Handle) Release(ctx context.Context) {
	h.once.Do(func() {
		if err := h.store.Delete(ctx, h.name); err != nil {
			h.logger.Warn("unable to remove lockfile",
				zap.String("lockfile", h.name),
				zap.Error(err))
			return
		}
		h.logger.Debug("lock released", zap.String("lockfile", h.name))
	})
}
