package blob

import (
	"context"
	"fmt"

	"workflow-portal-go/internal/blob/core"
	"workflow-portal-go/internal/blob/fs"
	"workflow-portal-go/internal/blob/memory"
	"workflow-portal-go/internal/blob/s3"
	"workflow-portal-go/internal/config"
)

// OpenBackend builds the backend selected by cfg.Driver.
func OpenBackend(ctx context.Context, cfg config.BlobConfig) (core.Backend, error) {
	switch core.Driver(cfg.Driver) {
	case core.DriverFilesystem, "":
		return fs.New(cfg.FSRoot)
	case core.DriverMemory:
		return memory.New(), nil
	case core.DriverS3:
		return s3.New(ctx, s3.Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			PathStyle:       cfg.S3.PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}
