// Package objectstore stores public assets (canary logos) in an S3
// compatible bucket.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type Config struct {
	Endpoint        string // e.g. http://127.0.0.1:9000 for MinIO
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Folder          string // key prefix inside the bucket
	PublicURL       string // base URL objects are served from
}

// Store puts objects into one bucket.
type Store interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	URL(key string) string
}

type S3 struct {
	client *s3.Client
	cfg    Config
}

func NewS3(ctx context.Context, cfg Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("objectstore: bucket is required")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("objectstore: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3{client: client, cfg: cfg}, nil
}

func (s *S3) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(s.objectKey(key)),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("objectstore: put %s: %w", key, err)
	}
	return nil
}

// URL returns where a stored key is publicly readable.
func (s *S3) URL(key string) string {
	return strings.TrimRight(s.cfg.PublicURL, "/") + "/" + s.objectKey(key)
}

func (s *S3) objectKey(key string) string {
	return path.Join(s.cfg.Folder, key)
}

// Image types accepted for logos, keyed by sniffed content type.
var imageExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

// SniffImage returns the content type and extension of head when it is an
// accepted image type.
func SniffImage(head []byte) (contentType, ext string, ok bool) {
	ct := http.DetectContentType(head)
	ext, ok = imageExtensions[ct]
	return ct, ext, ok
}
