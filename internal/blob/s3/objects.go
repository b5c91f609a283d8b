package s3blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
)

// minPartSize is the smallest part S3 accepts in a multipart upload.
const minPartSize int64 = 5 * 1024 * 1024

// Put uploads data in a single PutObject request.
func (c *Client) Put(ctx context.Context, p string, data io.Reader, contentType string) error {
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(c.key(p)),
		Body:        data,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3blob: put %s: %w", p, err)
	}
	return nil
}

// PutMultipart uploads data through the SDK upload manager in parts of
// partSize bytes, raised to the 5 MiB minimum when smaller.
func (c *Client) PutMultipart(ctx context.Context, p string, data io.Reader, partSize int64) error {
	uploader := manager.NewUploader(c.s3, func(u *manager.Uploader) {
		u.PartSize = max(partSize, minPartSize)
	})
	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(c.key(p)),
		Body:        data,
		ContentType: aws.String(contentTypeFor(p)),
	})
	if err != nil {
		return fmt.Errorf("s3blob: multipart upload %s: %w", p, err)
	}
	return nil
}

// Get opens the object at p. The caller closes the body. A missing object
// yields domain.ErrNotFound.
func (c *Client) Get(ctx context.Context, p string) (io.ReadCloser, error) {
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.key(p)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("s3blob: get %s: %w", p, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("s3blob: get %s: %w", p, err)
	}
	return out.Body, nil
}

// List returns every object under prefix, newest first. Paths are relative
// to the configured key prefix.
func (c *Client) List(ctx context.Context, prefix string) ([]domain.BlobInfo, error) {
	var infos []domain.BlobInfo

	pages := s3.NewListObjectsV2Paginator(c.s3, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(c.listPrefix(prefix)),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3blob: list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			p := c.relative(aws.ToString(obj.Key))
			info := domain.BlobInfo{
				Path:        p,
				Size:        aws.ToInt64(obj.Size),
				ContentType: contentTypeFor(p),
			}
			if obj.LastModified != nil {
				info.LastModified = obj.LastModified.UTC()
			}
			infos = append(infos, info)
		}
	}

	slices.SortStableFunc(infos, func(a, b domain.BlobInfo) int {
		if d := b.LastModified.Compare(a.LastModified); d != 0 {
			return d
		}
		return strings.Compare(b.Path, a.Path)
	})
	return infos, nil
}

// contentTypeFor infers an archive object's type from its extension, since
// listings do not carry it.
func contentTypeFor(p string) string {
	switch {
	case strings.HasSuffix(p, ".jsonl"):
		return contentTypeJSONL
	case strings.HasSuffix(p, ".json"):
		return contentTypeJSON
	default:
		return ""
	}
}

// isNotFound reports whether err means the object does not exist. AWS returns
// NoSuchKey; some compatible stores only return a bare 404.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		return true
	}
	var re interface{ HTTPStatusCode() int }
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound
}
