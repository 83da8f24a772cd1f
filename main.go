package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"basic-cleaning/config"
	"basic-cleaning/models"
	"basic-cleaning/services"
	"basic-cleaning/storage"
	"basic-cleaning/utils"
)

// Exit codes
const (
	ExitSuccess    = 0
	ExitUsage      = 1
	ExitResolution = 2
	ExitSchema     = 3
	ExitCoercion   = 4
	ExitPublish    = 5
)

func main() {
	cmd := newRootCmd(os.Stdout)
	if err := cmd.Execute(); err != nil {
		var stageErr *models.StageError
		if !errors.As(err, &stageErr) {
			// stage failures are logged by run; flag and usage errors are not
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			fmt.Fprintln(os.Stderr, cmd.UsageString())
		}
		os.Exit(exitCode(err))
	}
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	var params models.CleaningParams

	cmd := &cobra.Command{
		Use:   "basic-cleaning",
		Short: "Basic cleaning of a raw listings dataset",
		Long: `Downloads the input artifact, keeps the rows whose price lies within
[min_price, max_price], converts last_review to a canonical date and
publishes the result as a new artifact.

The artifact store is selected through the environment
(ARTIFACT_BACKEND, ARTIFACT_REGISTRY, ...) or a YAML file named by
CLEANING_CONFIG.

Exit codes:
  0 - Cleaned dataset published
  1 - Usage or configuration error
  2 - Input artifact could not be resolved
  3 - Input schema error
  4 - Value coercion error
  5 - Publish error

Example:
  basic-cleaning --input_artifact sample.csv:latest \
    --output_artifact clean_sample.csv --output_type clean_sample \
    --output_description "Data with outliers and null values removed" \
    --min_price 10 --max_price 350`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), params, stdout)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&params.InputArtifact, "input_artifact", "", "Fully-qualified name for the input artifact")
	flags.StringVar(&params.OutputArtifact, "output_artifact", "", "Name for the output artifact")
	flags.StringVar(&params.OutputType, "output_type", "", "Type for the output artifact")
	flags.StringVar(&params.OutputDescription, "output_description", "", "Description for the output artifact")
	flags.Float64Var(&params.MinPrice, "min_price", 0, "Minimum price for cleaning outliers")
	flags.Float64Var(&params.MaxPrice, "max_price", 0, "Maximum price for cleaning outliers")
	for _, name := range []string{
		"input_artifact", "output_artifact", "output_type", "output_description", "min_price", "max_price",
	} {
		_ = cmd.MarkFlagRequired(name)
	}

	cmd.AddCommand(newUploadCmd(stdout))
	return cmd
}

func newUploadCmd(stdout io.Writer) *cobra.Command {
	var name, artifactType, description string

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Publish a local file as an artifact",
		Long: `Publishes a local file to the configured artifact store as a new
version, typically the raw dataset later passed as --input_artifact.
Prints the versioned reference and the storage URI.

Example:
  basic-cleaning upload data/sample.csv --type raw_data --description "Raw listings"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return upload(cmd.Context(), args[0], name, artifactType, description, stdout)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&name, "name", "", "Artifact name (defaults to the file name)")
	flags.StringVar(&artifactType, "type", "", "Artifact type")
	flags.StringVar(&description, "description", "", "Artifact description")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

// run executes one cleaning stage and prints its report to stdout
func run(ctx context.Context, params models.CleaningParams, stdout io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// ================== Bootstrap ====================
	store, logger, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore(store, logger)

	// ================== Stage ====================
	runCtx := services.NewRun(services.JobType, store, logger)
	stage := services.NewCleaningStage(runCtx, services.NewDataCleaner(logger))

	result, err := stage.Go(ctx, params)
	if err != nil {
		runCtx.Logger().Error("stage failed", "kind", models.KindOf(err), "error", err)
		return err
	}

	// ================== Report ====================
	insights := services.NewInsightService(logger)
	report := insights.Generate(result.Table, result.Stats, result.Artifact.Ref().String())
	services.PrintCleaningReport(stdout, report)

	return nil
}

// upload publishes a local file as a new artifact version, so a fresh store can
// be seeded with the raw dataset the stage reads
func upload(ctx context.Context, path, name, artifactType, description string, stdout io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if name == "" {
		name = filepath.Base(path)
	}

	store, logger, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore(store, logger)

	if _, err := os.Stat(path); err != nil {
		logger.Error("cannot read file", "path", path, "error", err)
		return models.NewStageError(models.KindResolution, "read upload file", err)
	}

	artifact, err := store.Create(name, artifactType, description, path)
	if err != nil {
		logger.Error("cannot create artifact", "artifact", name, "error", err)
		return models.NewStageError(models.KindPublish, "create artifact", err)
	}
	if err := store.Publish(ctx, artifact); err != nil {
		logger.Error("cannot publish artifact", "artifact", name, "error", err)
		return models.NewStageError(models.KindPublish, "publish artifact", err)
	}

	fmt.Fprintf(stdout, "%s %s\n", artifact.Ref(), artifact.URI)
	return nil
}

// openStore loads configuration and opens the configured artifact store
func openStore(ctx context.Context) (*storage.Store, *utils.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return nil, nil, models.NewStageError(models.KindConfig, "load configuration", err)
	}
	logger := utils.NewLogger(cfg.LogLevel, cfg.LogFormat)

	store, err := storage.NewArtifactStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("cannot open artifact store", "backend", cfg.Backend, "registry", cfg.Registry, "error", err)
		return nil, nil, models.NewStageError(models.KindResolution, "open artifact store", err)
	}
	return store, logger, nil
}

func closeStore(store *storage.Store, logger *utils.Logger) {
	if err := store.Close(); err != nil {
		logger.Warn("failed to close artifact store", "error", err)
	}
}

// exitCode maps a command error to the process exit status
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	switch models.KindOf(err) {
	case models.KindResolution:
		return ExitResolution
	case models.KindSchema:
		return ExitSchema
	case models.KindCoercion:
		return ExitCoercion
	case models.KindPublish:
		return ExitPublish
	default:
		return ExitUsage
	}
}
