package executor

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuya-takeyama/strict-bunny-sync/pkg/logger"
	"github.com/yuya-takeyama/strict-bunny-sync/pkg/planner"
	"github.com/yuya-takeyama/strict-bunny-sync/pkg/storage/storagetest"
	"github.com/yuya-takeyama/strict-bunny-sync/pkg/syncerr"
)

const lockFile = ".strict-bunny-sync.lock"

func localFiles(files map[string]string) ContentReader {
	return func(path string) ([]byte, error) {
		content, ok := files[path]
		if !ok {
			return nil, errors.New("no such file")
		}
		return []byte(content), nil
	}
}

func sortedOutcomes(outcomes []Outcome) []Outcome {
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].RemoteName < outcomes[j].RemoteName })
	return outcomes
}

func TestExecute(t *testing.T) {
	files := map[string]string{
		"/src/a.txt":      "new",
		"/src/same.txt":   "same",
		"/src/index.html": "<html></html>",
	}

	store := storagetest.NewMemory("zone").
		Seed("same.txt", "same").
		Seed("index.html", "old").
		Seed("old.txt", "old").
		Seed(lockFile, "2025-01-01T00:00:00Z")

	tasks := []planner.Task{
		{Kind: planner.KindPut, LocalPath: "/src/a.txt", RemoteName: "a.txt"},
		{Kind: planner.KindReplace, LocalPath: "/src/same.txt", RemoteName: "same.txt", RemoteChecksum: digestOf("same")},
		{Kind: planner.KindReplace, LocalPath: "/src/index.html", RemoteName: "index.html", RemoteChecksum: digestOf("old")},
		{Kind: planner.KindDelete, RemoteName: lockFile},
		{Kind: planner.KindDelete, RemoteName: "old.txt"},
	}

	var out bytes.Buffer
	exec := NewExecutor(store, localFiles(files), logger.NewConsoleReporter(&out), nil, Options{
		Concurrency: 3,
		LockFile:    lockFile,
	})

	outcomes, err := exec.Execute(context.Background(), tasks)
	require.NoError(t, err)

	assert.Equal(t, []Outcome{
		{RemoteName: lockFile, Event: "delete"},
		{RemoteName: "a.txt", Event: "put", Bytes: 3},
		{RemoteName: "index.html", Event: "put", Bytes: 13},
		{RemoteName: "old.txt", Event: "delete"},
		{RemoteName: "same.txt", Event: "unchanged"},
	}, sortedOutcomes(outcomes))

	assert.Equal(t, []string{lockFile, "a.txt", "index.html", "same.txt"}, store.Paths())
	content, _ := store.Content("index.html")
	assert.Equal(t, "<html></html>", content)
	assert.Contains(t, store.ContentType("index.html"), "text/html")
	assert.Len(t, store.Calls("PUT"), 2)
	assert.Len(t, store.Calls("DELETE"), 1)

	assert.Contains(t, out.String(), "same.txt: unchanged\n")
	assert.Contains(t, out.String(), "old.txt: delete\n")

	put, unchanged, deleted, n := Summarize(outcomes)
	assert.Equal(t, 2, put)
	assert.Equal(t, 1, unchanged)
	assert.Equal(t, 2, deleted)
	assert.Equal(t, int64(16), n)
}

func TestExecuteDryRun(t *testing.T) {
	store := storagetest.NewMemory("zone").Seed("old.txt", "old")
	tasks := []planner.Task{
		{Kind: planner.KindPut, LocalPath: "/src/a.txt", RemoteName: "a.txt"},
		{Kind: planner.KindDelete, RemoteName: "old.txt"},
	}

	exec := NewExecutor(store, localFiles(map[string]string{"/src/a.txt": "a"}), nil, nil, Options{
		Concurrency: 2,
		DryRun:      true,
	})

	outcomes, err := exec.Execute(context.Background(), tasks)
	require.NoError(t, err)
	assert.Equal(t, []Outcome{
		{RemoteName: "a.txt", Event: "put", Bytes: 1},
		{RemoteName: "old.txt", Event: "delete"},
	}, sortedOutcomes(outcomes))

	assert.Empty(t, store.Calls("PUT"))
	assert.Empty(t, store.Calls("DELETE"))
	assert.Equal(t, []string{"old.txt"}, store.Paths())
}

func TestExecuteStopsOnFirstError(t *testing.T) {
	store := storagetest.NewMemory("zone")
	boom := syncerr.Network("put", "b.txt", errors.New("503"))
	store.PutHook = func(path string) error {
		if path == "b.txt" {
			return boom
		}
		return nil
	}

	files := map[string]string{}
	var tasks []planner.Task
	for _, name := range []string{"a.txt", "b.txt", "c.txt", "d.txt", "e.txt", "f.txt"} {
		files["/src/"+name] = name
		tasks = append(tasks, planner.Task{Kind: planner.KindPut, LocalPath: "/src/" + name, RemoteName: name})
	}

	exec := NewExecutor(store, localFiles(files), nil, nil, Options{Concurrency: 1})
	outcomes, err := exec.Execute(context.Background(), tasks)

	require.Error(t, err)
	assert.ErrorIs(t, err, syncerr.ErrNetwork)
	assert.Contains(t, err.Error(), "b.txt")

	// with one worker nothing after the failing task is taken
	assert.Equal(t, []Outcome{{RemoteName: "a.txt", Event: "put", Bytes: 5}}, outcomes)
	assert.Equal(t, []string{"a.txt"}, store.Paths(), "applied uploads are not rolled back")
}

func TestExecuteReadFailure(t *testing.T) {
	store := storagetest.NewMemory("zone")
	tasks := []planner.Task{{Kind: planner.KindPut, LocalPath: "/src/missing", RemoteName: "missing"}}

	exec := NewExecutor(store, localFiles(nil), nil, nil, Options{Concurrency: 4})
	_, err := exec.Execute(context.Background(), tasks)
	assert.ErrorIs(t, err, syncerr.ErrFilesystem)
	assert.Empty(t, store.Calls("PUT"))
}

func TestExecuteHTMLBarrier(t *testing.T) {
	var mu sync.Mutex
	var order []string
	record := func(path string) error {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, path)
		return nil
	}

	store := storagetest.NewMemory("zone").Seed("old.css", "x")
	store.PutHook = record
	store.DeleteHook = record

	files := map[string]string{}
	local := planner.LocalMap{}
	for _, name := range []string{"a.css", "b.js", "c.png", "index.html", "about.htm", "docs/index.html"} {
		files["/src/"+name] = name
		local[name] = "/src/" + name
	}
	tasks, err := planner.Plan(local, planner.RemoteMap{"old.css": nil}, planner.Options{})
	require.NoError(t, err)

	exec := NewExecutor(store, localFiles(files), nil, nil, Options{Concurrency: 8, HTMLBarrier: true})
	_, err = exec.Execute(context.Background(), tasks)
	require.NoError(t, err)

	require.Len(t, order, 7)
	groupOf := func(name string) int {
		switch {
		case name == "old.css":
			return 2
		case planner.IsHTML(name):
			return 1
		default:
			return 0
		}
	}
	for i := 1; i < len(order); i++ {
		assert.LessOrEqual(t, groupOf(order[i-1]), groupOf(order[i]), "%v", order)
	}
}

func TestSplitWaves(t *testing.T) {
	tasks := []planner.Task{
		{Kind: planner.KindPut, RemoteName: "a.css"},
		{Kind: planner.KindReplace, RemoteName: "z.js"},
		{Kind: planner.KindPut, RemoteName: "index.html"},
		{Kind: planner.KindDelete, RemoteName: "old.html"},
	}

	waves := SplitWaves(tasks)
	require.Len(t, waves, 3)
	assert.Equal(t, tasks[0:2], waves[0])
	assert.Equal(t, tasks[2:3], waves[1])
	assert.Equal(t, tasks[3:4], waves[2])

	assert.Len(t, SplitWaves(tasks[3:]), 1)
	assert.Empty(t, SplitWaves(nil))
}
