// Package s3client implements storage.Store on top of an S3 compatible bucket.
package s3client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/yuya-takeyama/strict-bunny-sync/pkg/storage"
	"github.com/yuya-takeyama/strict-bunny-sync/pkg/syncerr"
)

// API is the subset of *s3.Client used by Client.
type API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Options configures how the AWS client is built.
type Options struct {
	Region  string
	Profile string
	// Endpoint points the client at an S3 compatible service instead of AWS.
	Endpoint  string
	PathStyle bool
}

// Client stores files as objects of one bucket. Keys are the store paths
// themselves; "directories" are the common prefixes of a "/" delimited listing.
type Client struct {
	api    API
	bucket string
}

// New wraps an existing API implementation.
func New(api API, bucket string) *Client {
	return &Client{api: api, bucket: bucket}
}

// NewFromOptions loads the shared AWS configuration and builds a client for bucket.
func NewFromOptions(ctx context.Context, bucket string, opts Options) (*Client, error) {
	if bucket == "" {
		return nil, syncerr.Configuration("s3 client", fmt.Errorf("bucket is required"))
	}

	var configOpts []func(*config.LoadOptions) error
	if opts.Profile != "" {
		configOpts = append(configOpts, config.WithSharedConfigProfile(opts.Profile))
	}
	if opts.Region != "" {
		configOpts = append(configOpts, config.WithRegion(opts.Region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, syncerr.Configuration("load AWS config", err)
	}

	api := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.PathStyle
	})
	return New(api, bucket), nil
}

// ID implements storage.Store.
func (c *Client) ID() string {
	return c.bucket
}

// ListDir implements storage.Store. Object checksums are fetched with one
// HeadObject request per file.
func (c *Client) ListDir(ctx context.Context, path string) ([]storage.Entry, error) {
	parent := "/" + c.bucket + "/" + path

	var entries []storage.Entry
	paginator := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
		Bucket:    aws.String(c.bucket),
		Prefix:    aws.String(path),
		Delimiter: aws.String("/"),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, syncerr.Network("list", path, fmt.Errorf("failed to list objects: %w", err))
		}

		for _, p := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(p.Prefix), path), "/")
			if name == "" {
				continue
			}
			entries = append(entries, storage.Entry{Path: parent, ObjectName: name, IsDirectory: true})
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			name := strings.TrimPrefix(key, path)
			if name == "" {
				// directory marker object
				continue
			}
			sum, err := c.checksum(ctx, key)
			if err != nil {
				return nil, err
			}
			entries = append(entries, storage.Entry{Path: parent, ObjectName: name, Checksum: sum})
		}
	}

	return entries, nil
}

// checksum returns the hex SHA-256 of a whole-object upload, or "" when the
// object has none (uploaded without a checksum or in multiple parts).
func (c *Client) checksum(ctx context.Context, key string) (string, error) {
	resp, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket:       aws.String(c.bucket),
		Key:          aws.String(key),
		ChecksumMode: types.ChecksumModeEnabled,
	})
	if err != nil {
		return "", syncerr.Network("head", key, fmt.Errorf("failed to head object: %w", err))
	}
	return hexChecksum(aws.ToString(resp.ChecksumSHA256)), nil
}

func hexChecksum(b64 string) string {
	if b64 == "" || strings.Contains(b64, "-") {
		return ""
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return ""
	}
	return strings.ToUpper(hex.EncodeToString(raw))
}

// Read implements storage.Store.
func (c *Client) Read(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		if isNotFound(err) {
			err = fmt.Errorf("%w: %w", storage.ErrNotFound, err)
		}
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
func (c *Client) Put(ctx context.Context, path string, body []byte, contentType string) error {
	if contentType == "" {
		contentType = storage.DefaultContentType
	}
	_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:            aws.String(c.bucket),
		Key:               aws.String(path),
		Body:              bytes.NewReader(body),
		ContentLength:     aws.Int64(int64(len(body))),
		ContentType:       aws.String(contentType),
		ChecksumAlgorithm: types.ChecksumAlgorithmSha256,
	})
	if err != nil {
		return syncerr.Network("put", path, fmt.Errorf("failed to put object: %w", err))
	}
	return nil
}

// Delete implements storage.Store.
func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return syncerr.Network("delete", path, fmt.Errorf("failed to delete object: %w", err))
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

var _ storage.Store = (*Client)(nil)
