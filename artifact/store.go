package artifact

import (
	"context"
	"fmt"
)

// StoreConfig selects and configures a BlobStore.
type StoreConfig struct {
	Kind string
	Root string
	S3   S3Config
	GCS  GCSConfig
}

// NewStore builds the BlobStore named by cfg.Kind. An empty kind means local.
func NewStore(ctx context.Context, cfg StoreConfig) (BlobStore, error) {
	switch cfg.Kind {
	case "", LocalStoreKind:
		return NewLocalStore(cfg.Root)
	case S3StoreKind:
		return NewS3Store(ctx, cfg.S3)
	case GCSStoreKind:
		return NewGCSStore(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown store kind %q (want local, s3 or gcs)", cfg.Kind)
	}
}

var (
	_ BlobStore = (*LocalStore)(nil)
	_ BlobStore = (*S3Store)(nil)
	_ BlobStore = (*GCSStore)(nil)
)
