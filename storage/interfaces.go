package storage

import (
	"context"

	"basic-cleaning/models"
)

// ArtifactStore is the collaborator the cleaning stage reads from and publishes to
type ArtifactStore interface {
	// Resolve fetches the referenced version and returns it with LocalPath set
	Resolve(ctx context.Context, ref string) (*models.Artifact, error)
	// Create stages a pending artifact for a local file; nothing leaves the machine
	Create(name, artifactType, description, path string) (*models.Artifact, error)
	// Publish uploads and registers a pending artifact, returning once both are durable
	Publish(ctx context.Context, artifact *models.Artifact) error
	Close() error
}

// Backend stores artifact blobs under opaque keys
type Backend interface {
	Upload(ctx context.Context, key, src string) (uri string, err error)
	Download(ctx context.Context, key, dst string) error
	Close() error
}

// Registry indexes published artifact versions and aliases
type Registry interface {
	Lookup(ctx context.Context, ref models.ArtifactRef) (*models.Artifact, error)
	// Register assigns the next version to the artifact and moves the latest alias to it
	Register(ctx context.Context, artifact *models.Artifact) error
	Close() error
}
