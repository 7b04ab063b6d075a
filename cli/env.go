package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"airbnb-cleaning/artifact"
	"airbnb-cleaning/config"
	"airbnb-cleaning/utils"
)

// env bundles the collaborators a command needs.
type env struct {
	cfg      *config.Config
	logger   *utils.Logger
	store    artifact.BlobStore
	registry *artifact.SQLRegistry
	service  *artifact.Service
}

// loadConfig reads the configuration for cmd, with cmd's flags on top.
func loadConfig(cmd *cobra.Command, cfgFile string) (*config.Config, *utils.Logger, error) {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	logger, err := utils.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// openEnv opens the blob store and the registry described by cfg.
func openEnv(ctx context.Context, cfg *config.Config, logger *utils.Logger) (*env, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := artifact.NewStore(ctx, storeConfig(cfg.Store))
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Kind, err)
	}

	registry, err := artifact.OpenRegistry(ctx, cfg.Registry.URL, logger)
	if err != nil {
		closeStore(store)
		return nil, err
	}

	return &env{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		registry: registry,
		service:  artifact.NewService(store, registry, cfg.Store.CacheDir, logger),
	}, nil
}

func (e *env) Close() {
	if err := e.registry.Close(); err != nil {
		e.logger.Warn("[cli] closing registry: %v", err)
	}
	closeStore(e.store)
}

func closeStore(store artifact.BlobStore) {
	if c, ok := store.(io.Closer); ok {
		_ = c.Close()
	}
}

func storeConfig(c config.StoreConfig) artifact.StoreConfig {
	return artifact.StoreConfig{
		Kind: c.Kind,
		Root: c.Root,
		S3: artifact.S3Config{
			Bucket:       c.S3.Bucket,
			Prefix:       c.S3.Prefix,
			Region:       c.S3.Region,
			Endpoint:     c.S3.Endpoint,
			AccessKey:    c.S3.AccessKey,
			SecretKey:    c.S3.SecretKey,
			SessionToken: c.S3.SessionToken,
		},
		GCS: artifact.GCSConfig{
			Bucket:          c.GCS.Bucket,
			Prefix:          c.GCS.Prefix,
			CredentialsFile: c.GCS.CredentialsFile,
		},
	}
}
