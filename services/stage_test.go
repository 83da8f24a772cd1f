package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"basic-cleaning/models"
	"basic-cleaning/storage"
)

const rawSample = "id,name,neighbourhood_group,price,minimum_nights,last_review\n" +
	"2539,Clean & quiet apt home by the park,Brooklyn,149,1,2018-10-19\n" +
	"2595,Skylit Midtown Castle,Manhattan,225,1,2019-05-21\n" +
	"3647,THE VILLAGE OF HARLEM,Manhattan,150,3,\n" +
	"3831,Cozy Entire Floor of Brownstone,Brooklyn,89,1,07/05/2019\n" +
	"5022,Entire Apt: Spacious Studio/Loft,Manhattan,80,10,2018-11-19\n" +
	"5099,Large Cozy 1 BR Apartment,Manhattan,2000,3,2019-06-22\n"

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	root := t.TempDir()

	backend, err := storage.NewLocalBackend(root)
	require.NoError(t, err)
	registry, err := storage.NewFileRegistry(root)
	require.NoError(t, err)

	store := storage.NewStore(backend, registry, "nyc_airbnb", filepath.Join(t.TempDir(), "cache"), quietLogger())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedArtifact(t *testing.T, store storage.ArtifactStore, name, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	artifact, err := store.Create(name, "raw_data", "raw sample", path)
	require.NoError(t, err)
	require.NoError(t, store.Publish(context.Background(), artifact))
}

func testParams() models.CleaningParams {
	return models.CleaningParams{
		InputArtifact:     "sample.csv:latest",
		OutputArtifact:    "clean_sample.csv",
		OutputType:        "clean_sample",
		OutputDescription: "Data with outliers and null values removed",
		MinPrice:          100,
		MaxPrice:          350,
	}
}

func runStage(t *testing.T, store storage.ArtifactStore, params models.CleaningParams) (*StageResult, *Run, error) {
	t.Helper()
	run := NewRun(JobType, store, quietLogger())
	result, err := NewCleaningStage(run, NewDataCleaner(quietLogger())).Go(context.Background(), params)
	return result, run, err
}

func TestCleaningStage_EndToEnd(t *testing.T) {
	store := newTestStore(t)
	seedArtifact(t, store, "sample.csv", rawSample)

	result, run, err := runStage(t, store, testParams())
	require.NoError(t, err)

	assert.Equal(t, "clean_sample.csv", result.Artifact.Name)
	assert.Equal(t, "clean_sample", result.Artifact.Type)
	assert.Equal(t, 1, result.Artifact.Version)
	assert.Equal(t, models.ArtifactCommitted, result.Artifact.State)
	assert.Equal(t, run.ID, result.Artifact.Metadata["run_id"])
	assert.Equal(t, 3, result.Stats.RowsKept)
	assert.Equal(t, 3, result.Stats.DroppedOutOfRange)

	published, err := store.Resolve(context.Background(), "clean_sample.csv:latest")
	require.NoError(t, err)
	data, err := os.ReadFile(published.LocalPath)
	require.NoError(t, err)

	assert.Equal(t, "id,name,neighbourhood_group,price,minimum_nights,last_review\n"+
		"2539,Clean & quiet apt home by the park,Brooklyn,149,1,2018-10-19\n"+
		"2595,Skylit Midtown Castle,Manhattan,225,1,2019-05-21\n"+
		"3647,THE VILLAGE OF HARLEM,Manhattan,150,3,\n", string(data))

	require.Len(t, run.Inputs, 1)
	assert.Equal(t, "sample.csv", run.Inputs[0].Name)
	require.Len(t, run.Outputs, 1)
	assert.Equal(t, float64(100), run.Config["min_price"])
}

func TestCleaningStage_RepublishCreatesNewVersion(t *testing.T) {
	store := newTestStore(t)
	seedArtifact(t, store, "sample.csv", rawSample)

	_, _, err := runStage(t, store, testParams())
	require.NoError(t, err)

	params := testParams()
	params.MaxPrice = 200
	result, _, err := runStage(t, store, params)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Artifact.Version)

	v1, err := store.Resolve(context.Background(), "clean_sample.csv:v1")
	require.NoError(t, err)
	assert.NotEqual(t, v1.Digest, result.Artifact.Digest)
}

func TestCleaningStage_ResolutionError(t *testing.T) {
	store := newTestStore(t)

	result, _, err := runStage(t, store, testParams())
	assert.Nil(t, result)
	assert.Equal(t, models.KindResolution, models.KindOf(err))
	assert.ErrorIs(t, err, models.ErrArtifactNotFound)
}

func TestCleaningStage_MalformedReference(t *testing.T) {
	params := testParams()
	params.InputArtifact = "sample.csv:"

	_, _, err := runStage(t, newTestStore(t), params)
	assert.Equal(t, models.KindResolution, models.KindOf(err))
}

type recordingStore struct {
	storage.ArtifactStore
	created    int
	publishErr error
	tempPaths  []string
}

func (s *recordingStore) Create(name, artifactType, description, path string) (*models.Artifact, error) {
	s.created++
	s.tempPaths = append(s.tempPaths, path)
	return s.ArtifactStore.Create(name, artifactType, description, path)
}

func (s *recordingStore) Publish(ctx context.Context, artifact *models.Artifact) error {
	if s.publishErr != nil {
		return s.publishErr
	}
	return s.ArtifactStore.Publish(ctx, artifact)
}

func TestCleaningStage_SchemaErrorPublishesNothing(t *testing.T) {
	inner := newTestStore(t)
	seedArtifact(t, inner, "sample.csv", "id,cost,last_review\n1,150,2019-05-21\n")
	store := &recordingStore{ArtifactStore: inner}

	result, _, err := runStage(t, store, testParams())
	assert.Nil(t, result)
	assert.Equal(t, models.KindSchema, models.KindOf(err))
	assert.ErrorIs(t, err, models.ErrMissingColumn)
	assert.Contains(t, err.Error(), "price")
	assert.Zero(t, store.created)
}

func TestCleaningStage_CoercionErrorPublishesNothing(t *testing.T) {
	inner := newTestStore(t)
	seedArtifact(t, inner, "sample.csv", "price,last_review\n150,yesterday\n")
	store := &recordingStore{ArtifactStore: inner}

	_, _, err := runStage(t, store, testParams())
	assert.Equal(t, models.KindCoercion, models.KindOf(err))
	assert.Zero(t, store.created)

	_, err = inner.Resolve(context.Background(), "clean_sample.csv:latest")
	assert.ErrorIs(t, err, models.ErrArtifactNotFound)
}

func TestCleaningStage_PublishFailureCleansUp(t *testing.T) {
	inner := newTestStore(t)
	seedArtifact(t, inner, "sample.csv", rawSample)
	store := &recordingStore{ArtifactStore: inner, publishErr: errors.New("connection reset by peer")}

	result, run, err := runStage(t, store, testParams())
	assert.Nil(t, result)
	assert.Equal(t, models.KindPublish, models.KindOf(err))
	assert.ErrorContains(t, err, "connection reset by peer")
	assert.Empty(t, run.Outputs)

	require.Len(t, store.tempPaths, 1)
	_, statErr := os.Stat(filepath.Dir(store.tempPaths[0]))
	assert.True(t, os.IsNotExist(statErr))
	assert.True(t, strings.HasSuffix(store.tempPaths[0], "clean_sample.csv"))

	_, err = inner.Resolve(context.Background(), "clean_sample.csv:latest")
	assert.ErrorIs(t, err, models.ErrArtifactNotFound)
}

func TestCleaningStage_RejectsOutputNamesWithPaths(t *testing.T) {
	for _, name := range []string{"../escape.csv", "nested/clean_sample.csv", ".."} {
		t.Run(name, func(t *testing.T) {
			inner := newTestStore(t)
			seedArtifact(t, inner, "sample.csv", rawSample)
			store := &recordingStore{ArtifactStore: inner}

			params := testParams()
			params.OutputArtifact = name
			result, _, err := runStage(t, store, params)
			assert.Nil(t, result)
			assert.Equal(t, models.KindPublish, models.KindOf(err))
			assert.Zero(t, store.created)
		})
	}
}

func TestCleaningStage_EmptyResultIsPublished(t *testing.T) {
	store := newTestStore(t)
	seedArtifact(t, store, "sample.csv", rawSample)

	params := testParams()
	params.MinPrice, params.MaxPrice = 5000, 10000
	result, _, err := runStage(t, store, params)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Table.Len())

	published, err := store.Resolve(context.Background(), "clean_sample.csv:latest")
	require.NoError(t, err)
	data, err := os.ReadFile(published.LocalPath)
	require.NoError(t, err)
	assert.Equal(t, "id,name,neighbourhood_group,price,minimum_nights,last_review\n", string(data))
}
