package storage

import (
	"context"
	"fmt"

	"basic-cleaning/config"
	"basic-cleaning/utils"
)

// NewArtifactStore builds the backend and registry selected by cfg
func NewArtifactStore(ctx context.Context, cfg *config.Config, logger *utils.Logger) (*Store, error) {
	backend, err := newBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	registry, err := newRegistry(ctx, cfg, logger)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	logger.Debug("artifact store ready", "backend", cfg.Backend, "registry", cfg.Registry, "project", cfg.Project)
	return NewStore(backend, registry, cfg.Project, cfg.CacheDir, logger), nil
}

func newBackend(ctx context.Context, cfg *config.Config) (Backend, error) {
	switch cfg.Backend {
	case config.BackendLocal:
		return NewLocalBackend(cfg.ArtifactRoot)
	case config.BackendS3:
		return NewS3Backend(ctx, cfg)
	case config.BackendGCS:
		return NewGCSBackend(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown artifact backend %q", cfg.Backend)
	}
}

func newRegistry(ctx context.Context, cfg *config.Config, logger *utils.Logger) (Registry, error) {
	switch cfg.Registry {
	case config.RegistryFile:
		return NewFileRegistry(cfg.ArtifactRoot)
	case config.RegistryPostgres:
		registry, err := NewPostgresRegistry(ctx, cfg.DatabaseURL, cfg.DBMaxOpenConns, logger)
		if err != nil {
			return nil, err
		}
		if err := registry.CreateTables(ctx); err != nil {
			_ = registry.Close()
			return nil, err
		}
		return registry, nil
	default:
		return nil, fmt.Errorf("unknown artifact registry %q", cfg.Registry)
	}
}
