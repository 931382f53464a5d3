// Package bunny implements the bunny.net Storage and cache purge HTTP APIs.
package bunny

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/yuya-takeyama/strict-bunny-sync/pkg/storage"
	"github.com/yuya-takeyama/strict-bunny-sync/pkg/syncerr"
)

// DefaultEndpoint is the main storage region.
const DefaultEndpoint = "storage.bunnycdn.com"

// StorageConfig holds the settings of a StorageClient.
type StorageConfig struct {
	AccessKey   string
	Endpoint    string
	StorageZone string

	// HTTPClient is used for every request. Defaults to a new http.Client.
	HTTPClient *http.Client
}

// StorageClient talks to one storage zone. It is immutable after construction.
type StorageClient struct {
	httpClient  *http.Client
	accessKey   string
	endpoint    string
	storageZone string
}

// NewStorageClient creates a client for cfg.StorageZone.
func NewStorageClient(cfg StorageConfig) (*StorageClient, error) {
	if cfg.AccessKey == "" {
		return nil, syncerr.Configuration("storage client", fmt.Errorf("access key is required"))
	}
	if cfg.StorageZone == "" {
		return nil, syncerr.Configuration("storage client", fmt.Errorf("storage zone is required"))
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}

	return &StorageClient{
		httpClient:  cfg.HTTPClient,
		accessKey:   cfg.AccessKey,
		endpoint:    cfg.Endpoint,
		storageZone: cfg.StorageZone,
	}, nil
}

// ID implements storage.Store.
func (c *StorageClient) ID() string {
	return c.storageZone
}

// ListDir implements storage.Store.
func (c *StorageClient) ListDir(ctx context.Context, path string) ([]storage.Entry, error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, syncerr.Network("list", path, err)
	}
	defer resp.Body.Close()

	var entries []storage.Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, syncerr.Network("list", path, fmt.Errorf("decode listing: %w", err))
	}
	return entries, nil
}

// Read implements storage.Store.
func (c *StorageClient) Read(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, syncerr.Network("read", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, syncerr.Network("read", path, err)
	}
	return body, nil
}

// Put implements storage.Store.
func (c *StorageClient) Put(ctx context.Context, path string, body []byte, contentType string) error {
	if contentType == "" {
		contentType = storage.DefaultContentType
	}
	resp, err := c.do(ctx, http.MethodPut, path, body, contentType)
	if err != nil {
		return syncerr.Network("put", path, err)
	}
	drain(resp)
	return nil
}

// Delete implements storage.Store.
func (c *StorageClient) Delete(ctx context.Context, path string) error {
	resp, err := c.do(ctx, http.MethodDelete, path, nil, "")
	if err != nil {
		return syncerr.Network("delete", path, err)
	}
	drain(resp)
	return nil
}

// URLFor returns the request URL of a store-root relative path.
func (c *StorageClient) URLFor(path string) string {
	u := url.URL{
		Scheme: "https",
		Host:   c.endpoint,
		Path:   "/" + c.storageZone + "/" + strings.TrimPrefix(path, "/"),
	}
	return u.String()
}

// do sends a request and returns the response when its status is 2xx.
func (c *StorageClient) do(ctx context.Context, method, path string, body []byte, contentType string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	target := c.URLFor(path)
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("AccessKey", c.accessKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp, method, target); err != nil {
		drain(resp)
		return nil, err
	}
	return resp, nil
}

func checkStatus(resp *http.Response, method, target string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	statusErr := &syncerr.StatusError{Method: method, URL: target, StatusCode: resp.StatusCode}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %w", storage.ErrNotFound, statusErr)
	}
	return statusErr
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

var _ storage.Store = (*StorageClient)(nil)
