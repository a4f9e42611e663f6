// Package storage provides object storage for shared print artifacts.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/erp/docprint/internal/domain/printing"
	infraconfig "github.com/erp/docprint/internal/infrastructure/config"
	printinfra "github.com/erp/docprint/internal/infrastructure/printing"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Ensure S3ShareTarget implements ShareTarget
var _ printinfra.ShareTarget = (*S3ShareTarget)(nil)

// ObjectAPI is the subset of the S3 client used by the share target
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// S3ShareTarget uploads artifacts to S3-compatible storage and hands out
// presigned links for the native share sheet.
// It is compatible with any S3-compatible storage (AWS S3, RustFS, MinIO, etc.)
type S3ShareTarget struct {
	api               ObjectAPI
	presignClient     *s3.PresignClient
	bucket            string
	prefix            string
	presignExpiration time.Duration
	logger            *zap.Logger
	now               func() time.Time
}

// S3ShareTargetOption is a functional option for configuring S3ShareTarget
type S3ShareTargetOption func(*S3ShareTarget)

// WithLogger sets a custom logger
func WithLogger(logger *zap.Logger) S3ShareTargetOption {
	return func(s *S3ShareTarget) {
		s.logger = logger
	}
}

// WithPresignExpiration sets a custom presign expiration duration
func WithPresignExpiration(d time.Duration) S3ShareTargetOption {
	return func(s *S3ShareTarget) {
		s.presignExpiration = d
	}
}

// WithKeyPrefix sets the key prefix of shared objects (default "shares")
func WithKeyPrefix(prefix string) S3ShareTargetOption {
	return func(s *S3ShareTarget) {
		s.prefix = strings.Trim(prefix, "/")
	}
}

// WithObjectAPI replaces the S3 client used for uploads
func WithObjectAPI(api ObjectAPI) S3ShareTargetOption {
	return func(s *S3ShareTarget) {
		s.api = api
	}
}

// NewS3ShareTarget creates a share target from configuration
func NewS3ShareTarget(cfg *infraconfig.StorageConfig, opts ...S3ShareTargetOption) (*S3ShareTarget, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKey == "" {
		return nil, errors.New("storage access key is required")
	}
	if cfg.SecretKey == "" {
		return nil, errors.New("storage secret key is required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "http://localhost:9000" // RustFS default
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if cfg.UseSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("invalid storage endpoint: %w", err)
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		o.BaseEndpoint = aws.String(endpoint)
	})

	target := &S3ShareTarget{
		api:               client,
		presignClient:     s3.NewPresignClient(client),
		bucket:            cfg.Bucket,
		prefix:            "shares",
		presignExpiration: cfg.PresignExpiration,
		logger:            zap.NewNop(),
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(target)
	}
	if target.presignExpiration == 0 {
		target.presignExpiration = 15 * time.Minute
	}
	return target, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
// Call this during application startup to ensure the bucket is ready.
func (s *S3ShareTarget) EnsureBucket(ctx context.Context) error {
	_, err := s.api.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	s.logger.Info("Creating storage bucket", zap.String("bucket", s.bucket))
	_, err = s.api.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Share uploads the artifact and returns a presigned download link
func (s *S3ShareTarget) Share(ctx context.Context, artifact *printing.Artifact) (printinfra.Link, error) {
	if artifact.Size() == 0 {
		return printinfra.Link{}, errors.New("artifact is empty")
	}
	key := s.ShareKey(artifact.Filename)

	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:             aws.String(s.bucket),
		Key:                aws.String(key),
		Body:               bytes.NewReader(artifact.Content),
		ContentType:        aws.String(artifact.MIMEType),
		ContentDisposition: aws.String(fmt.Sprintf("attachment; filename=%q", artifact.Filename)),
	})
	if err != nil {
		return printinfra.Link{}, fmt.Errorf("failed to upload artifact: %w", err)
	}

	link, err := s.presign(ctx, key)
	if err != nil {
		// An unreachable object is useless; remove it
		if _, derr := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		}); derr != nil {
			s.logger.Warn("Failed to delete unshared object", zap.String("key", key), zap.Error(derr))
		}
		return printinfra.Link{}, err
	}

	s.logger.Info("Artifact uploaded for sharing",
		zap.String("bucket", s.bucket),
		zap.String("key", key),
		zap.Int("size", artifact.Size()))
	return link, nil
}

// ShareKey returns the object key for a new shared file.
// Format: {prefix}/{yyyy}/{mm}/{uuid}/{filename}
func (s *S3ShareTarget) ShareKey(filename string) string {
	now := s.now()
	return path.Join(
		s.prefix,
		fmt.Sprintf("%04d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		uuid.New().String(),
		printing.SanitizeFilename(filename),
	)
}

// Bucket returns the bucket name
func (s *S3ShareTarget) Bucket() string {
	return s.bucket
}

func (s *S3ShareTarget) presign(ctx context.Context, key string) (printinfra.Link, error) {
	req, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.presignExpiration))
	if err != nil {
		return printinfra.Link{}, fmt.Errorf("failed to generate share URL: %w", err)
	}
	return printinfra.Link{URL: req.URL, ExpiresAt: s.now().Add(s.presignExpiration)}, nil
}
