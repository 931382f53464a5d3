package s3client

import (
	"fmt"
	"strings"
)

// IsS3URI reports whether target looks like s3://bucket/prefix.
func IsS3URI(target string) bool {
	return strings.HasPrefix(target, "s3://")
}

// ParseS3URI parses an S3 URI into bucket and prefix. The prefix keeps no
// surrounding slashes.
func ParseS3URI(uri string) (bucket, prefix string, err error) {
	if !IsS3URI(uri) {
		return "", "", fmt.Errorf("invalid S3 URI: must start with s3://")
	}

	path := strings.TrimPrefix(uri, "s3://")
	parts := strings.SplitN(path, "/", 2)

	if parts[0] == "" {
		return "", "", fmt.Errorf("invalid S3 URI: missing bucket name")
	}

	bucket = parts[0]
	if len(parts) > 1 {
		prefix = strings.Trim(parts[1], "/")
	}

	return bucket, prefix, nil
}
