package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"airbnb-cleaning/config"
	"airbnb-cleaning/metrics"
	"airbnb-cleaning/models"
	"airbnb-cleaning/services"
	"airbnb-cleaning/storage"
)

// NewCleanCommand creates the clean command.
func NewCleanCommand(cfgFile func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Fetch, clean and publish a listings dataset",
		Long: `Fetch the raw listings artifact, apply the cleaning pipeline and publish the
result as a new version of the output artifact.

Every parameter is required. Price bounds have no effective default and must be
set by flag, environment (CLEANING_MIN_PRICE, CLEANING_MAX_PRICE) or config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd, cfgFile())
			if err != nil {
				return err
			}
			if err := cfg.ValidateClean(); err != nil {
				return err
			}

			e, err := openEnv(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer e.Close()

			return runClean(cmd.Context(), e, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.String("input_artifact", config.DefaultInputArtifact, "Fully-qualified name for the input artifact")
	f.String("output_artifact", config.DefaultOutputArtifact, "Name for the output artifact")
	f.String("output_type", config.DefaultOutputType, "Type for the output artifact")
	f.String("output_description", config.DefaultOutputDescription, "Description for the output artifact")
	f.Float64("min_price", config.DefaultMinPrice, "Minimum price for cleaning outliers")
	f.Float64("max_price", config.DefaultMaxPrice, "Maximum price for cleaning outliers")

	return cmd
}

// runClean executes one tracked cleaning run.
func runClean(ctx context.Context, e *env, out io.Writer) (err error) {
	started := time.Now()
	recorder := metrics.NewRecorder()

	run, err := e.service.StartRun(ctx, config.DefaultJobType, e.cfg.RunParams())
	if err != nil {
		return err
	}
	defer func() {
		recorder.ObserveRun(started, err)
		if url := e.cfg.Metrics.PushgatewayURL; url != "" {
			if perr := recorder.Push(ctx, url, e.cfg.Metrics.Job, run.ID); perr != nil {
				e.logger.Warn("[metrics] %v", perr)
			}
		}
		if ferr := e.service.FinishRun(context.WithoutCancel(ctx), err); ferr != nil {
			e.logger.Error("[cli] recording run result: %v", ferr)
		}
	}()

	report, clean, err := cleanStages(ctx, e)
	if err != nil {
		e.logger.Error("[cli] clean run %s failed: %v", run.ID, err)
		return err
	}
	recorder.ObserveClean(report)

	writeSinks(ctx, e, clean)

	insights := services.NewInsightService(e.logger)
	insights.Print(out, report, insights.Generate(clean))
	return nil
}

// cleanStages runs download, preprocess and upload, in that order.
func cleanStages(ctx context.Context, e *env) (*models.CleanReport, *models.Table, error) {
	cfg := e.cfg

	e.logger.Info("[cli] Downloading artifact %s", cfg.InputArtifact)
	localPath, err := e.service.Fetch(ctx, cfg.InputArtifact)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch %s: %w", cfg.InputArtifact, err)
	}

	raw, err := storage.ReadListingsFile(localPath)
	if err != nil {
		return nil, nil, err
	}

	e.logger.Info("[cli] Preprocessing %d rows (price range [%g, %g])", raw.Len(), *cfg.MinPrice, *cfg.MaxPrice)
	cleaner := services.NewCleaner(e.logger)
	clean, report, err := cleaner.CleanWithReport(raw, *cfg.MinPrice, *cfg.MaxPrice)
	if err != nil {
		return nil, nil, err
	}

	workDir, err := os.MkdirTemp("", "clean-*")
	if err != nil {
		return nil, nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	outPath := filepath.Join(workDir, filepath.Base(cfg.OutputArtifact))
	csvWriter, err := storage.NewCSVWriter(outPath)
	if err != nil {
		return nil, nil, err
	}
	if err := csvWriter.Write(ctx, clean); err != nil {
		_ = csvWriter.Close()
		return nil, nil, err
	}
	if err := csvWriter.Close(); err != nil {
		return nil, nil, err
	}

	e.logger.Info("[cli] Uploading artifact %s", cfg.OutputArtifact)
	v, err := e.service.Publish(ctx, cfg.OutputArtifact, cfg.OutputType, cfg.OutputDescription, outPath)
	if err != nil {
		return nil, nil, err
	}
	e.logger.Info("[cli] Published %s with %d rows", v.Identifier(), clean.Len())

	return report, clean, nil
}

// writeSinks mirrors the cleaned table to the configured sinks. Failures are
// logged only.
func writeSinks(ctx context.Context, e *env, t *models.Table) {
	sinks := e.cfg.Sinks

	if sinks.PostgresDSN != "" {
		pg, err := storage.NewPostgresWriter(ctx, sinks.PostgresDSN, e.logger)
		if err != nil {
			e.logger.Error("[cli] Postgres sink unavailable: %v", err)
		} else {
			writeSink(ctx, e, "Postgres", pg, t)
		}
	}

	if sinks.DuckDBPath != "" {
		duck, err := storage.NewDuckDBWriter(ctx, sinks.DuckDBPath, sinks.DuckDBTable)
		if err != nil {
			e.logger.Error("[cli] DuckDB sink unavailable: %v", err)
		} else {
			writeSink(ctx, e, "DuckDB", duck, t)
		}
	}
}

func writeSink(ctx context.Context, e *env, name string, w storage.ListingWriter, t *models.Table) {
	defer w.Close()
	if err := w.Write(ctx, t); err != nil {
		e.logger.Error("[cli] %s sink write failed: %v", name, err)
		return
	}
	e.logger.Info("[cli] Mirrored %d listings to %s", t.Len(), name)
}
