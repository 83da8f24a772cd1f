package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"basic-cleaning/models"
	"basic-cleaning/storage"
	"basic-cleaning/utils"
)

// Run is the context of one stage invocation: the store it talks to, the
// parameters it was called with and the artifacts it consumed and produced.
type Run struct {
	ID        string
	JobType   string
	StartedAt time.Time
	Config    map[string]any
	Inputs    []*models.Artifact
	Outputs   []*models.Artifact

	store  storage.ArtifactStore
	logger *utils.Logger
}

// NewRun starts a run of the given job type against store
func NewRun(jobType string, store storage.ArtifactStore, logger *utils.Logger) *Run {
	id := uuid.NewString()
	return &Run{
		ID:        id,
		JobType:   jobType,
		StartedAt: time.Now().UTC(),
		Config:    make(map[string]any),
		store:     store,
		logger:    logger.With("run_id", id, "job_type", jobType),
	}
}

// Logger returns the run-scoped logger
func (r *Run) Logger() *utils.Logger {
	return r.logger
}

// Store returns the artifact store of the run
func (r *Run) Store() storage.ArtifactStore {
	return r.store
}

// UpdateConfig records invocation parameters on the run
func (r *Run) UpdateConfig(values map[string]any) {
	for k, v := range values {
		r.Config[k] = v
	}
}

// UseArtifact resolves ref to a local file and records it as an input
func (r *Run) UseArtifact(ctx context.Context, ref string) (*models.Artifact, error) {
	artifact, err := r.store.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	r.Inputs = append(r.Inputs, artifact)
	r.logger.Debug("using artifact", "artifact", artifact.Ref().String(), "path", artifact.LocalPath)
	return artifact, nil
}

// LogArtifact stamps run metadata onto a pending artifact, publishes it and
// waits for the store to acknowledge it
func (r *Run) LogArtifact(ctx context.Context, artifact *models.Artifact) error {
	if artifact.Metadata == nil {
		artifact.Metadata = make(map[string]any)
	}
	artifact.Metadata["run_id"] = r.ID
	artifact.Metadata["job_type"] = r.JobType
	artifact.Metadata["config"] = r.Config

	var inputs []string
	for _, in := range r.Inputs {
		inputs = append(inputs, in.Ref().String())
	}
	if len(inputs) > 0 {
		artifact.Metadata["inputs"] = inputs
	}

	if err := r.store.Publish(ctx, artifact); err != nil {
		return err
	}
	r.Outputs = append(r.Outputs, artifact)
	return nil
}
