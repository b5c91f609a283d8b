// Package s3blob archives ledger-evicted opportunities and price history
// snapshots to S3-compatible object storage (AWS, MinIO, R2) using AWS SDK v2,
// and serves the archive back to the HTTP API.
package s3blob

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Config describes the bucket holding the archive.
type Config struct {
	// Endpoint overrides the AWS endpoint for MinIO, R2 and similar. A value
	// without a scheme gets https:// when UseSSL is set and http:// otherwise.
	Endpoint string
	Region   string
	Bucket   string

	// KeyPrefix namespaces every object key, so several deployments can share
	// one bucket. "prod" stores archive/... under prod/archive/....
	KeyPrefix string

	AccessKey string
	SecretKey string
	UseSSL    bool

	// ForcePathStyle puts the bucket in the path instead of the host name.
	// MinIO needs it.
	ForcePathStyle bool
}

// Client is a bucket-scoped S3 client. It implements domain.BlobReader and
// domain.BlobWriter; keys passed to it are relative to Config.KeyPrefix.
type Client struct {
	s3     *s3.Client
	bucket string
	prefix string
}

// New builds a Client. Static credentials are used when AccessKey is set;
// otherwise the default AWS credential chain applies.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3blob: bucket name is required")
	}
	if cfg.Region == "" {
		return nil, errors.New("s3blob: region is required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3blob: load aws config: %w", err)
	}

	endpoint, err := endpointURL(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return &Client{
		s3:     client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.KeyPrefix, "/"),
	}, nil
}

// Health issues a HeadBucket to check reachability and permissions.
func (c *Client) Health(ctx context.Context) error {
	if _, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)}); err != nil {
		return fmt.Errorf("s3blob: head bucket %s: %w", c.bucket, err)
	}
	return nil
}

// key maps an archive path to its object key.
func (c *Client) key(p string) string {
	p = strings.TrimLeft(p, "/")
	if c.prefix == "" {
		return p
	}
	return path.Join(c.prefix, p)
}

// relative strips the key prefix from an object key.
func (c *Client) relative(key string) string {
	if c.prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, c.prefix+"/")
}

// listPrefix is like key but keeps a trailing slash, which S3 treats as
// significant when listing.
func (c *Client) listPrefix(p string) string {
	k := c.key(p)
	if strings.HasSuffix(p, "/") && !strings.HasSuffix(k, "/") {
		k += "/"
	}
	return k
}

func endpointURL(endpoint string, useSSL bool) (string, error) {
	if endpoint == "" {
		return "", nil
	}
	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" && u.Host != "" {
		return endpoint, nil
	}
	scheme := "http"
	if useSSL {
		scheme = "https"
	}
	u, err := url.Parse(scheme + "://" + endpoint)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("s3blob: invalid endpoint %q", endpoint)
	}
	return u.String(), nil
}
