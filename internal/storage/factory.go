package storage

import (
	"context"
	"fmt"

	"github.com/fruitsalade/volumeviewer/internal/config"
	"github.com/fruitsalade/volumeviewer/internal/storage/databricks"
	"github.com/fruitsalade/volumeviewer/internal/storage/local"
	s3backend "github.com/fruitsalade/volumeviewer/internal/storage/s3"
)

// NewBackend creates the Backend selected by cfg.StorageBackend.
func NewBackend(ctx context.Context, cfg *config.Config) (Backend, error) {
	switch cfg.StorageBackend {
	case "databricks", "":
		return databricks.New(databricks.Config{
			Host:    cfg.DatabricksHost,
			Token:   cfg.DatabricksToken,
			Timeout: cfg.HTTPTimeout,
		})
	case "s3":
		return s3backend.New(ctx, s3backend.Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
		})
	case "local":
		return local.New(local.Config{
			RootPath:   cfg.LocalStoragePath,
			CreateDirs: true,
		})
	default:
		return nil, fmt.Errorf("unknown backend type: %s", cfg.StorageBackend)
	}
}
