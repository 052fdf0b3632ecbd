// Package s3 provides an S3-compatible volume backend with metrics.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/fruitsalade/volumeviewer/internal/logging"
	"github.com/fruitsalade/volumeviewer/internal/metrics"
	"github.com/fruitsalade/volumeviewer/internal/models"
)

// Config holds S3 connection settings.
type Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
}

// S3Backend maps volume paths onto object keys in one bucket. The leading
// "/" of a volume path is dropped to form the key.
type S3Backend struct {
	client *s3.Client
	bucket string
}

// New creates a new S3 backend.
func New(ctx context.Context, cfg Config) (*S3Backend, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
		// S3-compatible stores (MinIO and friends) often reject the
		// default flexible checksums.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	backend := &S3Backend{
		client: client,
		bucket: cfg.Bucket,
	}

	if err := backend.checkBucket(ctx); err != nil {
		logging.Warn("bucket check failed", zap.String("bucket", cfg.Bucket), zap.Error(err))
	}

	return backend, nil
}

func (b *S3Backend) checkBucket(ctx context.Context) error {
	start := time.Now()
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucket),
	})
	metrics.RecordStorageOperation(b.Type(), "head_bucket", time.Since(start), err == nil)
	if err != nil {
		return fmt.Errorf("bucket %s not reachable: %w", b.bucket, err)
	}
	return nil
}

func objectKey(path string) string {
	return strings.TrimPrefix(path, "/")
}

// List returns the objects and common prefixes directly under dir.
func (b *S3Backend) List(ctx context.Context, dir string) ([]models.Entry, error) {
	start := time.Now()
	entries, err := b.list(ctx, dir)
	metrics.RecordStorageOperation(b.Type(), "list", time.Since(start), err == nil)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	return entries, nil
}

func (b *S3Backend) list(ctx context.Context, dir string) ([]models.Entry, error) {
	prefix := objectKey(dir)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	entries := []models.Entry{}
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(b.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, cp := range page.CommonPrefixes {
			entries = append(entries, models.NewEntry("/"+aws.ToString(cp.Prefix), 0, time.Time{}))
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == prefix {
				continue
			}
			entries = append(entries, models.NewEntry("/"+key,
				aws.ToInt64(obj.Size), aws.ToTime(obj.LastModified)))
		}
	}
	return entries, nil
}

// Fetch downloads an object.
func (b *S3Backend) Fetch(ctx context.Context, path string) ([]byte, error) {
	start := time.Now()

	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(objectKey(path)),
	})
	if err != nil {
		metrics.RecordStorageOperation(b.Type(), "fetch", time.Since(start), false)
		return nil, fmt.Errorf("get object %s: %w", path, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	metrics.RecordStorageOperation(b.Type(), "fetch", time.Since(start), err == nil)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", path, err)
	}
	metrics.RecordFetch(len(data))
	return data, nil
}

// Store uploads an object, replacing any existing one.
func (b *S3Backend) Store(ctx context.Context, path string, data []byte) error {
	start := time.Now()

	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(objectKey(path)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	metrics.RecordStorageOperation(b.Type(), "store", time.Since(start), err == nil)
	if err != nil {
		return fmt.Errorf("put object %s: %w", path, err)
	}

	metrics.RecordStore(len(data))
	logging.Debug("S3 put object", zap.String("path", path), zap.Int("size", len(data)))
	return nil
}

// Type returns "s3".
func (b *S3Backend) Type() string { return "s3" }

// Close is a no-op for S3 backends.
func (b *S3Backend) Close() error { return nil }
