// Package storage archives downloaded invoice PDFs in S3-compatible object storage
// (MinIO in development) and hands out presigned download URLs.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const region = "us-east-1"

// Archive stores invoice documents.
type Archive interface {
	// Put uploads body under key.
	Put(ctx context.Context, key, contentType string, body []byte) error
	// PresignedDownloadURL creates a time-limited URL for key.
	PresignedDownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	// EnsureBucketExists creates the bucket if it doesn't exist
	EnsureBucketExists(ctx context.Context) error
	// Health checks if the storage service is accessible
	Health(ctx context.Context) error
}

// Config locates the bucket. PublicEndpoint, when set, is the host baked into presigned URLs.
type Config struct {
	Endpoint       string
	PublicEndpoint string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
}

func (c Config) validate() error {
	switch {
	case c.Endpoint == "":
		return errors.New("S3_ENDPOINT is required")
	case c.AccessKey == "":
		return errors.New("S3_ACCESS_KEY is required")
	case c.SecretKey == "":
		return errors.New("S3_SECRET_KEY is required")
	case c.Bucket == "":
		return errors.New("S3_BUCKET_NAME is required")
	}
	return nil
}

func (c Config) url(host string) string {
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	if c.UseSSL {
		return "https://" + host
	}
	return "http://" + host
}

// S3Archive implements Archive on aws-sdk-go-v2.
type S3Archive struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	logger    *slog.Logger
}

// New creates an S3 archive with path-style addressing.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*S3Archive, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := newClient(awsCfg, cfg.url(cfg.Endpoint))
	presignClient := client
	if cfg.PublicEndpoint != "" && cfg.PublicEndpoint != cfg.Endpoint {
		presignClient = newClient(awsCfg, cfg.url(cfg.PublicEndpoint))
		logger.Info("presigning invoice URLs with public endpoint", "endpoint", cfg.PublicEndpoint)
	}

	return &S3Archive{
		client:    client,
		presigner: s3.NewPresignClient(presignClient),
		bucket:    cfg.Bucket,
		logger:    logger,
	}, nil
}

func newClient(awsCfg aws.Config, endpoint string) *s3.Client {
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
}

// InvoiceKey is the object key for an invoice document.
func InvoiceKey(invoiceID, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "invoice-" + invoiceID + ".pdf"
	}
	return path.Join("invoices", invoiceID, name)
}

// EnsureBucketExists creates the bucket if it doesn't already exist
func (s *S3Archive) EnsureBucketExists(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err == nil {
		return nil
	}

	if _, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}

	s.logger.Info("created invoice bucket", "bucket", s.bucket)
	return nil
}

func (s *S3Archive) Put(ctx context.Context, key, contentType string, body []byte) error {
	if key == "" {
		return errors.New("object key cannot be empty")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
		Body:          bytes.NewReader(body),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

func (s *S3Archive) PresignedDownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if key == "" {
		return "", errors.New("object key cannot be empty")
	}
	if ttl <= 0 {
		return "", errors.New("TTL must be positive")
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return req.URL, nil
}

// Health checks if the storage service is accessible
func (s *S3Archive) Health(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("storage health check failed: %w", err)
	}
	return nil
}
