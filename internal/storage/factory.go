package storage

import (
	"fmt"

	"podpress/pkg/types"
)

// NewAdapter creates a storage adapter for the given bucket based on
// the configuration. The bucket argument overrides cfg.Bucket so the
// same config can back both the episode and music stores.
func NewAdapter(cfg types.StorageConfig, bucket string) (Adapter, error) {
	if bucket == "" {
		bucket = cfg.Bucket
	}

	switch cfg.Adapter {
	case "local":
		return NewLocalAdapter(cfg.Local.BasePath, bucket, cfg.Local.PublicBaseURL)
	case "s3":
		return NewS3Adapter(S3Options{
			Endpoint:        cfg.S3.Endpoint,
			Region:          cfg.S3.Region,
			Bucket:          bucket,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UseSSL:          cfg.S3.UseSSL,
			PublicBaseURL:   cfg.S3.PublicBaseURL,
		})
	default:
		return nil, fmt.Errorf("unknown storage adapter: %s", cfg.Adapter)
	}
}
