package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"airbnb-cleaning/utils"
)

// Service fetches and publishes artifacts on behalf of a single run.
type Service struct {
	store    BlobStore
	registry Registry
	cacheDir string
	logger   *utils.Logger

	run *Run
}

// NewService creates a Service. Fetched files are cached under cacheDir.
func NewService(store BlobStore, registry Registry, cacheDir string, logger *utils.Logger) *Service {
	return &Service{
		store:    store,
		registry: registry,
		cacheDir: cacheDir,
		logger:   logger,
	}
}

// Run returns the active run, or nil before StartRun.
func (s *Service) Run() *Run {
	return s.run
}

// StartRun records a new run. Fetches and publishes made afterwards are
// linked to it.
func (s *Service) StartRun(ctx context.Context, jobType string, cfg map[string]any) (*Run, error) {
	run := &Run{ID: uuid.New().String(), JobType: jobType, Config: cfg}
	if err := s.registry.CreateRun(ctx, run); err != nil {
		return nil, err
	}
	s.run = run
	s.logger.Info("[artifacts] Started %s run %s", jobType, run.ID)
	return run, nil
}

// FinishRun closes the active run as finished, or failed when runErr is set.
func (s *Service) FinishRun(ctx context.Context, runErr error) error {
	if s.run == nil {
		return nil
	}
	status, msg := RunFinished, ""
	if runErr != nil {
		status, msg = RunFailed, runErr.Error()
	}
	if err := s.registry.FinishRun(ctx, s.run.ID, status, msg); err != nil {
		return err
	}
	s.logger.Info("[artifacts] Run %s %s", s.run.ID, status)
	s.run.Status, s.run.Error = status, msg
	return nil
}

// Fetch resolves identifier, downloads its blob into the local cache and
// returns the cached file path. Cached files whose digest still matches are
// reused.
func (s *Service) Fetch(ctx context.Context, identifier string) (string, error) {
	ref, err := ParseRef(identifier)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	v, err := s.registry.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}

	local := filepath.Join(s.cacheDir, v.Name, "v"+strconv.Itoa(v.Number), v.FileName)
	if digest, _, err := fileDigest(local); err == nil && digest == v.Digest {
		s.logger.Debug("[artifacts] %s served from cache %s", v.Identifier(), local)
	} else {
		s.logger.Info("[artifacts] Downloading %s from %s store", v.Identifier(), s.store.Kind())
		if err := s.store.Get(ctx, v.Key, local); err != nil {
			return "", fmt.Errorf("download %s: %w", v.Identifier(), err)
		}
		digest, _, err := fileDigest(local)
		if err != nil {
			return "", err
		}
		if digest != v.Digest {
			_ = os.Remove(local)
			return "", fmt.Errorf("download %s: digest mismatch (want %s, got %s)", v.Identifier(), v.Digest, digest)
		}
	}

	if s.run != nil {
		if err := s.registry.LinkRun(ctx, s.run.ID, v.ID, DirectionInput); err != nil {
			return "", err
		}
	}
	return local, nil
}

// Publish uploads localPath as a new version of name. When the content is
// identical to the current latest version, that version is returned instead.
func (s *Service) Publish(ctx context.Context, name, artifactType, description, localPath string) (*Version, error) {
	v, err := s.publish(ctx, name, artifactType, description, localPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPublish, name, err)
	}
	return v, nil
}

func (s *Service) publish(ctx context.Context, name, artifactType, description, localPath string) (*Version, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	digest, size, err := fileDigest(localPath)
	if err != nil {
		return nil, err
	}

	latest, err := s.registry.Resolve(ctx, Ref{Name: name, Alias: AliasLatest})
	switch {
	case err == nil && latest.Digest == digest:
		s.logger.Info("[artifacts] %s unchanged, reusing %s", name, latest.Identifier())
		return latest, s.linkOutput(ctx, latest)
	case err != nil && !errors.Is(err, ErrNotFound):
		return nil, err
	}

	base := filepath.Base(localPath)
	v := &Version{
		Name:        name,
		Type:        artifactType,
		Description: description,
		Key:         path.Join(name, "sha256-"+digest, base),
		FileName:    base,
		Digest:      digest,
		Size:        size,
	}
	if s.run != nil {
		v.RunID = s.run.ID
	}

	if err := s.store.Put(ctx, v.Key, localPath); err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	if err := s.registry.CreateVersion(ctx, v); err != nil {
		return nil, err
	}

	s.logger.Info("[artifacts] Published %s (%d bytes)", v.Identifier(), v.Size)
	return v, s.linkOutput(ctx, v)
}

func (s *Service) linkOutput(ctx context.Context, v *Version) error {
	if s.run == nil {
		return nil
	}
	return s.registry.LinkRun(ctx, s.run.ID, v.ID, DirectionOutput)
}
