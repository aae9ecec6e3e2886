package state

import (
	"context"
	"fmt"

	"github.com/imamik/svmzner/internal/config"
	"github.com/imamik/svmzner/internal/platform/s3"
)

// Open returns the backend selected by cfg.
func Open(ctx context.Context, cfg config.StateConfig) (Store, error) {
	switch cfg.Backend {
	case config.StateBackendLocal:
		return OpenBolt(cfg.Path)
	case config.StateBackendS3:
		client, err := s3.NewClient(ctx, s3.Options{
			Endpoint:     cfg.S3.Endpoint,
			Region:       cfg.S3.Region,
			AccessKey:    cfg.S3.AccessKey,
			SecretKey:    cfg.S3.SecretKey,
			UsePathStyle: cfg.S3.UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		return OpenS3(ctx, client, cfg.S3.Bucket, cfg.S3.Prefix)
	default:
		return nil, fmt.Errorf("unknown state backend %q", cfg.Backend)
	}
}
