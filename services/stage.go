package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"basic-cleaning/models"
	"basic-cleaning/storage"
	"basic-cleaning/utils"
)

// JobType is recorded on every run of the cleaning stage
const JobType = "basic_cleaning"

// StageResult is what a successful stage run produced
type StageResult struct {
	Artifact *models.Artifact
	Table    *models.Table
	Stats    models.CleaningStats
}

// CleaningStage downloads a raw dataset artifact, cleans it and publishes the result
type CleaningStage struct {
	run     *Run
	cleaner *DataCleaner
}

// NewCleaningStage creates a stage bound to a run
func NewCleaningStage(run *Run, cleaner *DataCleaner) *CleaningStage {
	return &CleaningStage{run: run, cleaner: cleaner}
}

// Go runs the stage. Every failure is returned as a *models.StageError; on
// failure no output artifact is registered and the temp directory is gone.
func (s *CleaningStage) Go(ctx context.Context, params models.CleaningParams) (*StageResult, error) {
	logger := s.run.Logger()
	s.run.UpdateConfig(params.AsMap())

	// ================== Resolve input ====================
	logger.Info("downloading and reading artifact", "artifact", params.InputArtifact)
	input, err := s.run.UseArtifact(ctx, params.InputArtifact)
	if err != nil {
		return nil, models.NewStageError(models.KindResolution, "resolve input artifact", err)
	}

	table, err := loadTable(input.LocalPath)
	if err != nil {
		return nil, err
	}

	// ================== Clean ====================
	cleaned, stats, err := s.cleaner.Clean(table, params.MinPrice, params.MaxPrice)
	if err != nil {
		kind := models.KindCoercion
		if errors.Is(err, models.ErrMissingColumn) {
			kind = models.KindSchema
		}
		return nil, models.NewStageError(kind, "clean dataset", err)
	}

	// ================== Serialize and publish ====================
	if err := models.ValidateArtifactName(params.OutputArtifact); err != nil {
		return nil, models.NewStageError(models.KindPublish, "validate output artifact", err)
	}

	var published *models.Artifact
	err = utils.WithTempDir("basic-cleaning-*", func(dir string) error {
		tempPath := filepath.Join(dir, params.OutputArtifact)

		logger.Info("uploading the cleaned dataset", "artifact", params.OutputArtifact)
		writer := storage.NewCSVWriter(tempPath, logger)
		if err := writer.WriteTable(cleaned); err != nil {
			return models.NewStageError(models.KindPublish, "write cleaned dataset", err)
		}

		artifact, err := s.run.Store().Create(params.OutputArtifact, params.OutputType, params.OutputDescription, tempPath)
		if err != nil {
			return models.NewStageError(models.KindPublish, "create output artifact", err)
		}
		artifact.Metadata["rows"] = stats.RowsKept
		artifact.Metadata["min_price"] = params.MinPrice
		artifact.Metadata["max_price"] = params.MaxPrice

		logger.Info("logging artifact", "artifact", params.OutputArtifact, "type", params.OutputType)
		if err := s.run.LogArtifact(ctx, artifact); err != nil {
			return models.NewStageError(models.KindPublish, "publish output artifact", err)
		}
		published = artifact
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("artifact published", "artifact", published.Ref().String(), "uri", published.URI)
	return &StageResult{Artifact: published, Table: cleaned, Stats: stats}, nil
}

func loadTable(path string) (*models.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, models.NewStageError(models.KindResolution, "open input artifact", err)
	}
	defer f.Close()

	table, err := storage.DecodeTable(f)
	if err != nil {
		return nil, models.NewStageError(models.KindSchema, "load input table", fmt.Errorf("%s: %w", filepath.Base(path), err))
	}
	return table, nil
}
