package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"basic-cleaning/models"
	"basic-cleaning/utils"
)

// Store is an ArtifactStore built from a blob Backend and a version Registry
type Store struct {
	backend  Backend
	registry Registry
	project  string
	cacheDir string
	logger   *utils.Logger
	now      func() time.Time
}

// NewStore creates a Store. Resolved artifacts are downloaded under cacheDir.
func NewStore(backend Backend, registry Registry, project, cacheDir string, logger *utils.Logger) *Store {
	return &Store{
		backend:  backend,
		registry: registry,
		project:  project,
		cacheDir: cacheDir,
		logger:   logger,
		now:      time.Now,
	}
}

// Resolve looks up the referenced version, downloads it and verifies its digest
func (s *Store) Resolve(ctx context.Context, ref string) (*models.Artifact, error) {
	parsed, err := models.ParseArtifactRef(ref)
	if err != nil {
		return nil, err
	}

	artifact, err := s.registry.Lookup(ctx, parsed)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", parsed, err)
	}

	dst := filepath.Join(s.cacheDir, s.project, artifact.Name, artifact.VersionLabel(), artifact.FileName)
	if digest, _, err := fileDigest(dst); err == nil && digest == artifact.Digest {
		s.logger.Debug("artifact found in cache", "artifact", parsed.String(), "path", dst)
	} else {
		s.logger.Debug("downloading artifact", "artifact", parsed.String(), "key", artifact.Key)
		if err := s.backend.Download(ctx, artifact.Key, dst); err != nil {
			return nil, fmt.Errorf("failed to download %s: %w", parsed, err)
		}
		digest, _, err := fileDigest(dst)
		if err != nil {
			return nil, err
		}
		if digest != artifact.Digest {
			_ = os.Remove(dst)
			return nil, fmt.Errorf("%w: %s has %s, registry has %s", models.ErrDigestMismatch, parsed, digest, artifact.Digest)
		}
	}

	artifact.LocalPath = dst
	return artifact, nil
}

// Create stages a pending artifact holding a single local file
func (s *Store) Create(name, artifactType, description, filePath string) (*models.Artifact, error) {
	if err := models.ValidateArtifactName(name); err != nil {
		return nil, err
	}
	if artifactType == "" {
		return nil, errors.New("artifact type is required")
	}

	digest, size, err := fileDigest(filePath)
	if err != nil {
		return nil, err
	}

	return &models.Artifact{
		Name:        name,
		Type:        artifactType,
		Description: description,
		FileName:    filepath.Base(filePath),
		Digest:      digest,
		Size:        size,
		Metadata:    make(map[string]any),
		State:       models.ArtifactPending,
		LocalPath:   filePath,
	}, nil
}

// Publish uploads the artifact blob and registers a new version. When the latest
// version already holds the same content with the same type and description it is
// reused and nothing is uploaded.
func (s *Store) Publish(ctx context.Context, artifact *models.Artifact) error {
	if artifact.State == models.ArtifactCommitted {
		return fmt.Errorf("artifact %s is already published", artifact.Ref())
	}

	latest, err := s.registry.Lookup(ctx, models.ArtifactRef{Name: artifact.Name, Version: models.DefaultAlias})
	switch {
	case err == nil && sameVersion(latest, artifact):
		artifact.Version = latest.Version
		artifact.Aliases = latest.Aliases
		artifact.Key = latest.Key
		artifact.URI = latest.URI
		artifact.CreatedAt = latest.CreatedAt
		artifact.State = models.ArtifactCommitted
		s.logger.Info("content unchanged, reusing version", "artifact", artifact.Ref().String())
		return nil
	case err != nil && !errors.Is(err, models.ErrArtifactNotFound):
		return fmt.Errorf("failed to look up latest %s: %w", artifact.Name, err)
	}

	artifact.Key = path.Join(s.project, artifact.Name, artifact.Digest, artifact.FileName)
	uri, err := s.backend.Upload(ctx, artifact.Key, artifact.LocalPath)
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", artifact.Name, err)
	}
	artifact.URI = uri
	artifact.CreatedAt = s.now().UTC()

	if err := s.registry.Register(ctx, artifact); err != nil {
		return fmt.Errorf("failed to register %s: %w", artifact.Name, err)
	}
	artifact.State = models.ArtifactCommitted

	s.logger.Info("artifact published", "artifact", artifact.Ref().String(), "uri", uri, "size", artifact.Size)
	return nil
}

func sameVersion(published, pending *models.Artifact) bool {
	return published.Digest == pending.Digest &&
		published.Type == pending.Type &&
		published.Description == pending.Description
}

// Close releases the backend and registry
func (s *Store) Close() error {
	return errors.Join(s.backend.Close(), s.registry.Close())
}
