// Package storagetest provides an in-memory storage.Store for tests.
package storagetest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/yuya-takeyama/strict-bunny-sync/internal/checksum"
	"github.com/yuya-takeyama/strict-bunny-sync/pkg/storage"
)

// Call records one request made against a Memory store.
type Call struct {
	Method string
	Path   string
}

// Memory is a goroutine-safe storage.Store backed by a map.
//
// The hook fields allow tests to inject failures; a hook returning a non-nil
// error aborts the call before the store is touched.
type Memory struct {
	Zone string

	// OmitChecksums makes listings report no checksum, like objects uploaded
	// before the store started computing them.
	OmitChecksums bool

	ListHook   func(path string) error
	ReadHook   func(path string) error
	PutHook    func(path string) error
	DeleteHook func(path string) error

	mu           sync.Mutex
	files        map[string][]byte
	contentTypes map[string]string
	calls        []Call
}

// NewMemory creates an empty store named zone.
func NewMemory(zone string) *Memory {
	return &Memory{
		Zone:         zone,
		files:        make(map[string][]byte),
		contentTypes: make(map[string]string),
	}
}

// Seed stores content at path without recording a call.
func (m *Memory) Seed(path, content string) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = []byte(content)
	return m
}

// ID implements storage.Store.
func (m *Memory) ID() string {
	return m.Zone
}

// ListDir implements storage.Store.
func (m *Memory) ListDir(_ context.Context, path string) ([]storage.Entry, error) {
	m.record("LIST", path)
	if m.ListHook != nil {
		if err := m.ListHook(path); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	dirs := map[string]bool{}
	var entries []storage.Entry
	parent := "/" + m.Zone + "/" + path
	for key, content := range m.files {
		if !strings.HasPrefix(key, path) {
			continue
		}
		rest := key[len(path):]
		if i := strings.Index(rest, "/"); i >= 0 {
			name := rest[:i]
			if !dirs[name] {
				dirs[name] = true
				entries = append(entries, storage.Entry{Path: parent, ObjectName: name, IsDirectory: true})
			}
			continue
		}
		entry := storage.Entry{Path: parent, ObjectName: rest}
		if !m.OmitChecksums {
			entry.Checksum = checksum.Sum(content).String()
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ObjectName < entries[j].ObjectName })
	return entries, nil
}

// Read implements storage.Store.
func (m *Memory) Read(_ context.Context, path string) ([]byte, error) {
	m.record("GET", path)
	if m.ReadHook != nil {
		if err := m.ReadHook(path); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", path, storage.ErrNotFound)
	}
	return append([]byte(nil), content...), nil
}

// Put implements storage.Store.
func (m *Memory) Put(_ context.Context, path string, body []byte, contentType string) error {
	m.record("PUT", path)
	if m.PutHook != nil {
		if err := m.PutHook(path); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = append([]byte(nil), body...)
	m.contentTypes[path] = contentType
	return nil
}

// Delete implements storage.Store.
func (m *Memory) Delete(_ context.Context, path string) error {
	m.record("DELETE", path)
	if m.DeleteHook != nil {
		if err := m.DeleteHook(path); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	delete(m.contentTypes, path)
	return nil
}

// Content returns the stored content of path and whether it exists.
func (m *Memory) Content(path string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.files[path]
	return string(content), ok
}

// ContentType returns the content type the object at path was written with.
func (m *Memory) ContentType(path string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.contentTypes[path]
}

// Paths returns all stored paths in lexical order.
func (m *Memory) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Calls returns the recorded calls with the given method, in order.
func (m *Memory) Calls(method string) []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Call
	for _, c := range m.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (m *Memory) record(method, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: method, Path: path})
}

var _ storage.Store = (*Memory)(nil)
