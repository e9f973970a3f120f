// Package offsite replicates finished artifacts to S3-compatible storage.
package offsite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/edvin/mariaback/internal/config"
)

// Uploader copies artifacts into a bucket after successful dumps. The bucket
// is write-only from here: retention never reaches into it.
type Uploader struct {
	logger zerolog.Logger
	cfg    config.Offsite
	client *s3.Client
}

// NewUploader builds the uploader, or nil when no bucket is configured.
func NewUploader(logger zerolog.Logger, cfg config.Offsite) *Uploader {
	if !cfg.Enabled() {
		return nil
	}

	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: cfg.PathStyle,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}

	return &Uploader{
		logger: logger.With().Str("component", "offsite").Logger(),
		cfg:    cfg,
		client: s3.New(opts),
	}
}

// ObjectKey places artifacts under their host, mirroring the local layout.
func ObjectKey(host, path string) string {
	return host + "/" + filepath.Base(path)
}

// Upload puts one artifact into the bucket.
func (u *Uploader) Upload(ctx context.Context, host, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	key := ObjectKey(host, path)
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.cfg.Bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}

	u.logger.Info().Str("bucket", u.cfg.Bucket).Str("key", key).Msg("artifact replicated")
	return nil
}
