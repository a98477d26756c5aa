package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// =============================================================================
// S3Storage Implementation
// =============================================================================

// S3Storage implements the Storage interface using any S3-compatible
// object store (AWS S3, Cloudflare R2, MinIO) via the AWS SDK v2.
type S3Storage struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	bucketName    string
	publicURL     string // Optional public URL (e.g., custom domain)
	logger        *slog.Logger
}

// NewS3Storage creates a new S3Storage instance.
//
// If cfg.Endpoint is set, all requests are directed to that endpoint
// (required for non-AWS providers). Returns an error if the SDK client
// cannot be constructed.
func NewS3Storage(cfg S3Config, logger *slog.Logger) (*S3Storage, error) {
	if cfg.BucketName == "" {
		return nil, fmt.Errorf("storage: bucket name is required")
	}

	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	creds := credentials.NewStaticCredentialsProvider(
		cfg.AccessKeyID,
		cfg.SecretAccessKey,
		"", // no session token for static credentials
	)

	awsCfg := aws.Config{
		Region:      region,
		Credentials: creds,
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	// Presign client for generating signed URLs
	presignClient := s3.NewPresignClient(client)

	logger.Info("initialized S3 storage",
		"bucket", cfg.BucketName,
		"endpoint", cfg.Endpoint,
		"public_url", cfg.PublicURL,
	)

	return &S3Storage{
		client:        client,
		presignClient: presignClient,
		bucketName:    cfg.BucketName,
		publicURL:     strings.TrimSuffix(cfg.PublicURL, "/"),
		logger:        logger,
	}, nil
}

// =============================================================================
// Interface Implementation
// =============================================================================

// Put stores data at the specified key.
func (s *S3Storage) Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error {
	if err := s.validateKey(key); err != nil {
		return newError("put", key, err)
	}

	// Check if object exists when overwrite is disabled
	if !opts.Overwrite {
		exists, err := s.Exists(ctx, key)
		if err != nil {
			return newError("put", key, fmt.Errorf("failed to check existence: %w", err))
		}
		if exists {
			return newError("put", key, ErrKeyExists)
		}
	}

	var reader io.Reader = data
	if opts.MaxSize > 0 {
		reader = io.LimitReader(data, opts.MaxSize+1)
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = DetectContentType(key)
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        reader,
		ContentType: aws.String(contentType),
	}

	result, err := s.client.PutObject(ctx, input)
	if err != nil {
		return newError("put", key, s.wrapS3Error(err))
	}

	s.logger.Debug("stored object",
		"key", key,
		"etag", aws.ToString(result.ETag),
		"content_type", contentType,
	)

	return nil
}

// Get retrieves the data at the specified key.
func (s *S3Storage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	if err := s.validateKey(key); err != nil {
		return nil, ObjectInfo{}, newError("get", key, err)
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, ObjectInfo{}, newError("get", key, s.wrapS3Error(err))
	}

	info := ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(result.ContentLength),
		ContentType:  aws.ToString(result.ContentType),
		LastModified: aws.ToTime(result.LastModified),
		ETag:         aws.ToString(result.ETag),
	}

	return result.Body, info, nil
}

// Delete removes the object at the specified key.
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	if err := s.validateKey(key); err != nil {
		return newError("delete", key, err)
	}

	// S3 delete is idempotent; no error for missing keys
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return newError("delete", key, s.wrapS3Error(err))
	}

	s.logger.Debug("deleted object", "key", key)

	return nil
}

// URL returns a URL for accessing the object.
// If publicURL is configured and expires is 0, returns a public URL.
// Otherwise, returns a presigned URL valid for the specified duration.
func (s *S3Storage) URL(ctx context.Context, key string, expires time.Duration) (string, error) {
	if err := s.validateKey(key); err != nil {
		return "", newError("url", key, err)
	}

	if s.publicURL != "" && expires == 0 {
		return fmt.Sprintf("%s/%s", s.publicURL, key), nil
	}

	if expires == 0 {
		expires = 15 * time.Minute
	}

	request, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", newError("url", key, fmt.Errorf("failed to generate presigned URL: %w", err))
	}

	return request.URL, nil
}

// Exists checks if an object exists at the specified key.
func (s *S3Storage) Exists(ctx context.Context, key string) (bool, error) {
	if err := s.validateKey(key); err != nil {
		return false, newError("exists", key, err)
	}

	// HeadObject checks existence without downloading the object
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}

		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			if apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey" {
				return false, nil
			}
		}

		return false, newError("exists", key, s.wrapS3Error(err))
	}

	return true, nil
}

// =============================================================================
// Internal Helpers
// =============================================================================

// validateKey rejects empty keys and keys with path traversal attempts.
func (s *S3Storage) validateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}

// wrapS3Error converts SDK errors to storage sentinel errors.
func (s *S3Storage) wrapS3Error(err error) error {
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return ErrNotFound
	}

	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return ErrNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return ErrNotFound
		case "AccessDenied", "Forbidden":
			return ErrAccessDenied
		}

		if httpErr, ok := err.(interface{ HTTPStatusCode() int }); ok {
			switch httpErr.HTTPStatusCode() {
			case http.StatusNotFound:
				return ErrNotFound
			case http.StatusForbidden:
				return ErrAccessDenied
			}
		}
	}

	return fmt.Errorf("s3 operation failed: %w", err)
}

var _ Storage = (*S3Storage)(nil)
