package enumerator

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yuya-takeyama/strict-bunny-sync/internal/checksum"
	"github.com/yuya-takeyama/strict-bunny-sync/pkg/planner"
	"github.com/yuya-takeyama/strict-bunny-sync/pkg/storage"
	"github.com/yuya-takeyama/strict-bunny-sync/pkg/storage/storagetest"
	"github.com/yuya-takeyama/strict-bunny-sync/pkg/syncerr"
)

func seededStore() *storagetest.Memory {
	return storagetest.NewMemory("zone").
		Seed("index.html", "home").
		Seed("a.txt", "a").
		Seed("css/site.css", "css").
		Seed("css/vendor/reset.css", "reset").
		Seed("img/logo.png", "png").
		Seed("docs/v1/index.html", "v1").
		Seed("docs/v1/deep/er/file.txt", "deep")
}

func sum(content string) *checksum.Digest {
	d := checksum.Sum([]byte(content))
	return &d
}

func keys(m planner.RemoteMap) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func TestEnumerate(t *testing.T) {
	tests := []struct {
		name        string
		prefix      string
		protected   []string
		concurrency int
		want        []string
	}{
		{
			name:        "whole zone",
			prefix:      "/",
			concurrency: 4,
			want: []string{
				"a.txt", "css/site.css", "css/vendor/reset.css",
				"docs/v1/deep/er/file.txt", "docs/v1/index.html",
				"img/logo.png", "index.html",
			},
		},
		{
			name:        "single worker",
			prefix:      "",
			concurrency: 1,
			want: []string{
				"a.txt", "css/site.css", "css/vendor/reset.css",
				"docs/v1/deep/er/file.txt", "docs/v1/index.html",
				"img/logo.png", "index.html",
			},
		},
		{
			name:        "protected subtrees are not listed",
			prefix:      "/",
			protected:   []string{"docs/", "css/vendor"},
			concurrency: 3,
			want:        []string{"a.txt", "css/site.css", "img/logo.png", "index.html"},
		},
		{
			name:        "nested prefix",
			prefix:      "/docs/",
			concurrency: 2,
			want:        []string{"docs/v1/deep/er/file.txt", "docs/v1/index.html"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Enumerate(context.Background(), seededStore(), tt.prefix, tt.protected, tt.concurrency, zap.NewNop())
			require.NoError(t, err)
			assert.Equal(t, tt.want, keys(got))
		})
	}
}

func TestEnumerateChecksums(t *testing.T) {
	store := seededStore()
	got, err := Enumerate(context.Background(), store, "/", nil, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, sum("reset"), got["css/vendor/reset.css"])
	assert.Equal(t, sum("home"), got["index.html"])

	store.OmitChecksums = true
	got, err = Enumerate(context.Background(), store, "/", nil, 2, nil)
	require.NoError(t, err)
	assert.Nil(t, got["index.html"])
	assert.Contains(t, got, "index.html")
}

func TestEnumerateListsEachDirectoryOnce(t *testing.T) {
	store := seededStore()
	_, err := Enumerate(context.Background(), store, "/", []string{"docs/"}, 4, nil)
	require.NoError(t, err)

	var listed []string
	for _, c := range store.Calls("LIST") {
		listed = append(listed, c.Path)
	}
	sort.Strings(listed)
	assert.Equal(t, []string{"", "css/", "css/vendor/", "img/"}, listed)
}

func TestEnumerateFailure(t *testing.T) {
	boom := errors.New("boom")
	for _, concurrency := range []int{1, 4} {
		store := seededStore()
		store.ListHook = func(path string) error {
			if path == "css/" {
				return syncerr.Network("list", path, boom)
			}
			return nil
		}

		got, err := Enumerate(context.Background(), store, "/", nil, concurrency, nil)
		require.Error(t, err)
		assert.Nil(t, got)
		assert.ErrorIs(t, err, boom)
		assert.ErrorIs(t, err, syncerr.ErrNetwork)
	}
}

func TestEnumerateMalformedChecksum(t *testing.T) {
	store := &listingStore{entries: []storage.Entry{
		{Path: "/zone/", ObjectName: "bad.txt", Checksum: "not-hex"},
	}}

	_, err := Enumerate(context.Background(), store, "/", nil, 1, nil)
	assert.ErrorIs(t, err, syncerr.ErrEncoding)
}

func TestSubtreePath(t *testing.T) {
	tests := []struct {
		entry storage.Entry
		want  string
	}{
		{storage.Entry{Path: "/zone/", ObjectName: "assets"}, "assets/"},
		{storage.Entry{Path: "/zone/assets/", ObjectName: "img"}, "assets/img/"},
		{storage.Entry{Path: "/zone/a/b/", ObjectName: "c"}, "a/b/c/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, subtreePath(tt.entry, "/zone/"))
	}
}

func TestSeedPath(t *testing.T) {
	assert.Equal(t, "", seedPath("/"))
	assert.Equal(t, "", seedPath(""))
	assert.Equal(t, "docs/", seedPath("docs"))
	assert.Equal(t, "docs/v1/", seedPath("/docs/v1/"))
}

// listingStore returns a fixed root listing.
type listingStore struct {
	storage.Store
	entries []storage.Entry
}

func (s *listingStore) ID() string { return "zone" }

func (s *listingStore) ListDir(_ context.Context, _ string) ([]storage.Entry, error) {
	return s.entries, nil
}
