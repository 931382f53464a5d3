package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yuya-takeyama/strict-bunny-sync/pkg/storage/storagetest"
	"github.com/yuya-takeyama/strict-bunny-sync/pkg/syncerr"
)

const name = ".strict-bunny-sync.lock"

func fixedNow(t *testing.T) time.Time {
	t.Helper()
	at := time.Date(2025, 4, 15, 16, 52, 33, 0, time.FixedZone("CEST", 2*60*60))
	orig := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = orig })
	return at
}

func TestAcquireRelease(t *testing.T) {
	fixedNow(t)
	store := storagetest.NewMemory("zone")

	h, err := Acquire(context.Background(), store, name, false, zap.NewNop())
	require.NoError(t, err)

	content, ok := store.Content(name)
	require.True(t, ok)
	assert.Equal(t, "2025-04-15T16:52:33+02:00", content)
	assert.Equal(t, "text/plain", store.ContentType(name))
	assert.Equal(t, name, h.Name())

	h.Release(context.Background())
	h.Release(context.Background())
	_, ok = store.Content(name)
	assert.False(t, ok)
	assert.Len(t, store.Calls("DELETE"), 1)
}

func TestAcquireHeld(t *testing.T) {
	fixedNow(t)
	core, logs := observer.New(zapcore.WarnLevel)
	store := storagetest.NewMemory("zone").Seed(name, "2024-01-01T00:00:00Z")

	h, err := Acquire(context.Background(), store, name, false, zap.New(core))
	require.Error(t, err)
	assert.Nil(t, h)
	assert.ErrorIs(t, err, syncerr.ErrLockHeld)
	assert.True(t, syncerr.IsLockHeld(err))

	content, _ := store.Content(name)
	assert.Equal(t, "2024-01-01T00:00:00Z", content, "marker must be left untouched")
	assert.Empty(t, store.Calls("PUT"))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "remote is locked", entry.Message)
	assert.Equal(t, "2024-01-01T00:00:00Z", entry.ContextMap()["since"])
}

func TestAcquireForce(t *testing.T) {
	fixedNow(t)
	store := storagetest.NewMemory("zone").Seed(name, "2024-01-01T00:00:00Z")

	h, err := Acquire(context.Background(), store, name, true, nil)
	require.NoError(t, err)
	require.NotNil(t, h)

	content, _ := store.Content(name)
	assert.Equal(t, "2025-04-15T16:52:33+02:00", content)
}

func TestAcquireReadFailure(t *testing.T) {
	store := storagetest.NewMemory("zone")
	store.ReadHook = func(string) error { return syncerr.Network("read", name, errors.New("401")) }

	_, err := Acquire(context.Background(), store, name, true, nil)
	assert.ErrorIs(t, err, syncerr.ErrNetwork)
	assert.Empty(t, store.Calls("PUT"))
}

func TestAcquireWriteFailure(t *testing.T) {
	store := storagetest.NewMemory("zone")
	store.PutHook = func(string) error { return syncerr.Network("put", name, errors.New("500")) }

	_, err := Acquire(context.Background(), store, name, false, nil)
	assert.ErrorIs(t, err, syncerr.ErrNetwork)
}

func TestReleaseFailureIsOnlyLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	store := storagetest.NewMemory("zone")

	h, err := Acquire(context.Background(), store, name, false, zap.New(core))
	require.NoError(t, err)

	store.DeleteHook = func(string) error { return errors.New("connection reset") }
	h.Release(context.Background())

	_, ok := store.Content(name)
	assert.True(t, ok)
	require.Equal(t, 1, logs.FilterMessage("unable to remove lockfile").Len())
}
