// Package storage pushes uploaded assets to S3-compatible object storage and
// hands back URLs the synthesis service can fetch.
package storage

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/egress-lab/evacsim/pkg/errors"
)

// Options configures the S3 client. Credentials are optional; when empty the
// default AWS credential chain is used.
type Options struct {
	Bucket        string
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
	PresignTTL    time.Duration
}

// Client provides S3 storage operations
type Client struct {
	s3Client  *s3.Client
	presigner *s3.PresignClient
	bucket    string
	publicURL string
	ttl       time.Duration
}

// NewClient creates a new S3 client
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	slog.Info("s3_client_init", "bucket", opts.Bucket, "region", opts.Region, "endpoint", opts.Endpoint)

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		slog.Error("aws_config_load_failed", "error", err)
		return nil, errors.Wrap(err, "failed to load AWS config")
	}

	s3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	slog.Info("s3_client_created", "bucket", opts.Bucket)

	return newClient(s3Client, opts), nil
}

func newClient(s3Client *s3.Client, opts Options) *Client {
	ttl := opts.PresignTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Client{
		s3Client:  s3Client,
		presigner: s3.NewPresignClient(s3Client),
		bucket:    opts.Bucket,
		publicURL: strings.TrimRight(opts.PublicBaseURL, "/"),
		ttl:       ttl,
	}
}

// Put uploads data under key and returns a URL that resolves to the object.
func (c *Client) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	slog.Info("s3_put_start", "bucket", c.bucket, "s3_key", key, "size", len(data), "content_type", contentType)

	_, err := c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		slog.Error("s3_put_object_failed", "s3_key", key, "error", err)
		return "", errors.Wrap(err, "failed to put object to S3")
	}

	objectURL, err := c.URL(ctx, key)
	if err != nil {
		return "", err
	}

	slog.Info("s3_put_complete", "s3_key", key)
	return objectURL, nil
}

// URL returns the public URL of key when a public base URL is configured,
// otherwise a presigned GET URL valid for the configured TTL.
func (c *Client) URL(ctx context.Context, key string) (string, error) {
	if c.publicURL != "" {
		return publicObjectURL(c.publicURL, key), nil
	}

	req, err := c.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(c.ttl))
	if err != nil {
		slog.Error("s3_presign_failed", "s3_key", key, "error", err)
		return "", errors.Wrap(err, "failed to presign object URL")
	}
	return req.URL, nil
}

// ListObjects lists all objects in the bucket with a given prefix
func (c *Client) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	slog.Info("s3_list_start", "bucket", c.bucket, "prefix", prefix)

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(c.s3Client, input)

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			slog.Error("s3_list_failed", "prefix", prefix, "error", err)
			return nil, errors.Wrap(err, "failed to list objects")
		}

		for _, obj := range page.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
	}

	slog.Info("s3_list_complete", "prefix", prefix, "object_count", len(keys))

	return keys, nil
}

// Delete removes a single object
func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		slog.Error("s3_delete_object_failed", "s3_key", key, "error", err)
		return errors.Wrap(err, "failed to delete object")
	}

	slog.Info("s3_object_deleted", "s3_key", key)
	return nil
}

func publicObjectURL(base, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return base + "/" + path.Join(segments...)
}
