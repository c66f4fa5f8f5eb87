package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dustin/go-humanize"
)

// S3Config holds the configuration for S3 storage.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: for custom S3-compatible endpoints
	AccessKeyID     string // Optional: AWS access key ID
	SecretAccessKey string // Optional: AWS secret access key
}

// S3Storage uploads segments to an S3 bucket.
type S3Storage struct {
	client *s3.Client
	bucket string
	region string
	logger *slog.Logger
}

// NewS3Storage creates a new S3Storage instance.
// Returns ErrS3NotConfigured if bucket or region is missing.
func NewS3Storage(ctx context.Context, cfg S3Config, logger *slog.Logger) (*S3Storage, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, ErrS3NotConfigured
	}
	if logger == nil {
		logger = slog.Default()
	}

	var configOpts []func(*config.LoadOptions) error
	configOpts = append(configOpts, config.WithRegion(cfg.Region))

	// Use static credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	// S3-compatible stores often reject the SDK's default trailing checksums.
	if cfg.Endpoint != "" {
		configOpts = append(configOpts,
			config.WithRequestChecksumCalculation(aws.RequestChecksumCalculationWhenRequired))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3Storage{
		client: s3.NewFromConfig(awsCfg, clientOpts...),
		bucket: cfg.Bucket,
		region: cfg.Region,
		logger: logger,
	}, nil
}

// Upload puts localPath into the bucket under key and returns s3://bucket/key.
func (s *S3Storage) Upload(ctx context.Context, localPath, key, contentType string) (string, error) {
	f, err := os.Open(localPath) // #nosec G304 - path is produced by the segmenter
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %w", ErrUploadFailed, localPath, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("%w: stat %s: %w", ErrUploadFailed, localPath, err)
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("%w: upload to S3: %w", ErrUploadFailed, err)
	}

	s.logger.Info("uploaded",
		slog.String("bucket", s.bucket),
		slog.String("key", key),
		slog.String("size", humanize.Bytes(uint64(info.Size()))),
	)

	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

// Verify interface implementation at compile time.
var _ Storage = (*S3Storage)(nil)
