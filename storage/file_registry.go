package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"basic-cleaning/models"
)

// FileRegistry keeps the version index in a JSON file. It assumes one writer at a time.
type FileRegistry struct {
	path string
}

type registryIndex struct {
	Artifacts map[string]*registryEntry `json:"artifacts"`
}

type registryEntry struct {
	Versions []*versionRecord `json:"versions"`
	Aliases  map[string]int   `json:"aliases"`
}

type versionRecord struct {
	Version     int            `json:"version"`
	Type        string         `json:"type"`
	Description string         `json:"description"`
	FileName    string         `json:"file_name"`
	Digest      string         `json:"digest"`
	Size        int64          `json:"size"`
	Key         string         `json:"key"`
	URI         string         `json:"uri"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// NewFileRegistry uses registry.json under root
func NewFileRegistry(root string) (*FileRegistry, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}
	return &FileRegistry{path: filepath.Join(root, "registry.json")}, nil
}

func (r *FileRegistry) Lookup(_ context.Context, ref models.ArtifactRef) (*models.Artifact, error) {
	index, err := r.load()
	if err != nil {
		return nil, err
	}

	entry, ok := index.Artifacts[ref.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrArtifactNotFound, ref)
	}

	version, ok := ref.VersionNumber()
	if !ok {
		if version, ok = entry.Aliases[ref.Version]; !ok {
			return nil, fmt.Errorf("%w: %s", models.ErrArtifactNotFound, ref)
		}
	}

	for _, rec := range entry.Versions {
		if rec.Version == version {
			return rec.toArtifact(ref.Name, entry.aliasesFor(version)), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", models.ErrArtifactNotFound, ref)
}

func (r *FileRegistry) Register(_ context.Context, artifact *models.Artifact) error {
	index, err := r.load()
	if err != nil {
		return err
	}

	entry, ok := index.Artifacts[artifact.Name]
	if !ok {
		entry = &registryEntry{Aliases: make(map[string]int)}
		index.Artifacts[artifact.Name] = entry
	}
	if entry.Aliases == nil {
		entry.Aliases = make(map[string]int)
	}

	version := 1
	for _, rec := range entry.Versions {
		if rec.Version >= version {
			version = rec.Version + 1
		}
	}

	entry.Versions = append(entry.Versions, &versionRecord{
		Version:     version,
		Type:        artifact.Type,
		Description: artifact.Description,
		FileName:    artifact.FileName,
		Digest:      artifact.Digest,
		Size:        artifact.Size,
		Key:         artifact.Key,
		URI:         artifact.URI,
		Metadata:    artifact.Metadata,
		CreatedAt:   artifact.CreatedAt,
	})
	entry.Aliases[models.DefaultAlias] = version

	if err := r.save(index); err != nil {
		return err
	}

	artifact.Version = version
	artifact.Aliases = entry.aliasesFor(version)
	return nil
}

func (r *FileRegistry) Close() error {
	return nil
}

func (r *FileRegistry) load() (*registryIndex, error) {
	index := &registryIndex{Artifacts: make(map[string]*registryEntry)}

	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return index, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}
	if err := json.Unmarshal(data, index); err != nil {
		return nil, fmt.Errorf("failed to parse registry %s: %w", r.path, err)
	}
	if index.Artifacts == nil {
		index.Artifacts = make(map[string]*registryEntry)
	}
	return index, nil
}

func (r *FileRegistry) save(index *registryIndex) error {
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode registry: %w", err)
	}
	return writeFileAtomic(r.path, bytes.NewReader(data))
}

// aliasesFor returns the named aliases of a version followed by its vN label
func (e *registryEntry) aliasesFor(version int) []string {
	var aliases, named []string
	if v, ok := e.Aliases[models.DefaultAlias]; ok && v == version {
		aliases = append(aliases, models.DefaultAlias)
	}
	for alias, v := range e.Aliases {
		if v == version && alias != models.DefaultAlias {
			named = append(named, alias)
		}
	}
	sort.Strings(named)
	aliases = append(aliases, named...)
	return append(aliases, fmt.Sprintf("v%d", version))
}

func (rec *versionRecord) toArtifact(name string, aliases []string) *models.Artifact {
	return &models.Artifact{
		Name:        name,
		Type:        rec.Type,
		Description: rec.Description,
		Version:     rec.Version,
		Aliases:     aliases,
		FileName:    rec.FileName,
		Digest:      rec.Digest,
		Size:        rec.Size,
		Key:         rec.Key,
		URI:         rec.URI,
		Metadata:    rec.Metadata,
		State:       models.ArtifactCommitted,
		CreatedAt:   rec.CreatedAt,
	}
}
