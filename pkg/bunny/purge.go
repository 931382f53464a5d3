package bunny

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/yuya-takeyama/strict-bunny-sync/pkg/syncerr"
)

// DefaultAPIBaseURL is the account API used for cache purges.
const DefaultAPIBaseURL = "https://api.bunny.net"

// PurgeClient purges the CDN edge cache. Each call is a single stateless request.
type PurgeClient struct {
	httpClient *http.Client
	accessKey  string
	baseURL    string
}

// NewPurgeClient creates a purge client. An empty baseURL selects DefaultAPIBaseURL.
func NewPurgeClient(accessKey, baseURL string, httpClient *http.Client) (*PurgeClient, error) {
	if accessKey == "" {
		return nil, syncerr.Configuration("purge client", fmt.Errorf("access key is required"))
	}
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &PurgeClient{
		httpClient: httpClient,
		accessKey:  accessKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// PurgeURL purges a single URL. A trailing * purges everything below it.
func (c *PurgeClient) PurgeURL(ctx context.Context, target string) error {
	query := url.Values{"url": []string{target}}
	endpoint := c.baseURL + "/purge?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return err
	}
	return c.send(req, "purge url", target)
}

// PurgeZone purges a whole pull zone, optionally only the entries tagged cacheTag.
func (c *PurgeClient) PurgeZone(ctx context.Context, pullZoneID uint64, cacheTag string) error {
	endpoint := c.baseURL + "/pullzone/" + strconv.FormatUint(pullZoneID, 10) + "/purgeCache"

	var body *strings.Reader
	if cacheTag != "" {
		body = strings.NewReader(url.Values{"CacheTag": []string{cacheTag}}.Encode())
	} else {
		body = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return err
	}
	if cacheTag != "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return c.send(req, "purge zone", strconv.FormatUint(pullZoneID, 10))
}

func (c *PurgeClient) send(req *http.Request, op, subject string) error {
	req.Header.Set("AccessKey", c.accessKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return syncerr.Network(op, subject, err)
	}
	defer drain(resp)

	if err := checkStatus(resp, req.Method, req.URL.String()); err != nil {
		return syncerr.Network(op, subject, err)
	}
	return nil
}
