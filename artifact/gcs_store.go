package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStoreKind selects the Google Cloud Storage backend.
const GCSStoreKind = "gcs"

// GCSConfig configures a Google Cloud Storage blob store.
type GCSConfig struct {
	Bucket string
	Prefix string
	// CredentialsFile is a service account JSON file; empty uses application
	// default credentials.
	CredentialsFile string
}

// GCSStore keeps blobs as objects in a GCS bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSStore creates a store for cfg.Bucket. Extra client options are
// appended after the ones derived from cfg.
func NewGCSStore(ctx context.Context, cfg GCSConfig, extra ...option.ClientOption) (*GCSStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("gcs store: bucket is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	opts = append(opts, extra...)

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs store: create client: %w", err)
	}
	return &GCSStore{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *GCSStore) Kind() string { return GCSStoreKind }

func (s *GCSStore) objectName(key string) string {
	return path.Join(s.prefix, key)
}

func (s *GCSStore) Put(ctx context.Context, key, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("gcs store: open %q: %w", localPath, err)
	}
	defer f.Close()

	w := s.client.Bucket(s.bucket).Object(s.objectName(key)).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs store: write gs://%s/%s: %w", s.bucket, s.objectName(key), err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs store: finalize gs://%s/%s: %w", s.bucket, s.objectName(key), err)
	}
	return nil
}

func (s *GCSStore) Get(ctx context.Context, key, localPath string) error {
	r, err := s.client.Bucket(s.bucket).Object(s.objectName(key)).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("gcs store: gs://%s/%s: %w", s.bucket, s.objectName(key), ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("gcs store: read gs://%s/%s: %w", s.bucket, s.objectName(key), err)
	}
	defer r.Close()

	if err := writeFileAtomic(localPath, r); err != nil {
		return fmt.Errorf("gcs store: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
