package bunny

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuya-takeyama/strict-bunny-sync/pkg/syncerr"
)

func TestPurgeURL(t *testing.T) {
	var gotURL, gotKey, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotKey = r.Header.Get("AccessKey")
		gotURL = r.URL.Query().Get("url")
		assert.Equal(t, "/purge", r.URL.Path)
	}))
	defer srv.Close()

	client, err := NewPurgeClient("secret", srv.URL, srv.Client())
	require.NoError(t, err)

	require.NoError(t, client.PurgeURL(context.Background(), "https://cdn.example.com/docs/*"))
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "https://cdn.example.com/docs/*", gotURL)
}

func TestPurgeZone(t *testing.T) {
	tests := []struct {
		name     string
		cacheTag string
	}{
		{name: "whole zone"},
		{name: "with cache tag", cacheTag: "assets"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath, gotTag string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				gotPath = r.URL.Path
				require.NoError(t, r.ParseForm())
				gotTag = r.PostForm.Get("CacheTag")
			}))
			defer srv.Close()

			client, err := NewPurgeClient("secret", srv.URL, srv.Client())
			require.NoError(t, err)

			require.NoError(t, client.PurgeZone(context.Background(), 42, tt.cacheTag))
			assert.Equal(t, "/pullzone/42/purgeCache", gotPath)
			assert.Equal(t, tt.cacheTag, gotTag)
		})
	}
}

func TestPurgeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, err := NewPurgeClient("secret", srv.URL, srv.Client())
	require.NoError(t, err)

	err = client.PurgeZone(context.Background(), 1, "")
	assert.ErrorIs(t, err, syncerr.ErrNetwork)

	_, err = NewPurgeClient("", "", nil)
	assert.ErrorIs(t, err, syncerr.ErrConfiguration)
}
