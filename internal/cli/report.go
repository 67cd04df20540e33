package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"

	"github.com/ppiankov/dastgate/internal/aggregator"
	"github.com/ppiankov/dastgate/internal/models"
	"github.com/ppiankov/dastgate/internal/reporter"
	"github.com/ppiankov/dastgate/internal/storage"
	"github.com/ppiankov/dastgate/internal/validator"
	"github.com/spf13/cobra"
)

var (
	reportInput        string
	reportOutput       string
	reportArtifactsURL string
	reportStorageURL   string
	reportTuningJSON   string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render the markdown summary of an evaluation",
	Long: `Report renders the pull request summary for an evaluation: verdict,
issue snapshot, critical/high spotlight, attack surface, next steps,
tuning guidance and artifact links.

Example:
  dastgate report --input reports/evaluation.json --output reports/summary.md \
    --tuning-json reports/tuning.json --artifacts-url "$RUN_URL"`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportInput, "input", "",
		"evaluation JSON input (required)")
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "",
		"markdown output path (required)")
	reportCmd.Flags().StringVar(&reportArtifactsURL, "artifacts-url", "",
		"URL where artifacts are available")
	reportCmd.Flags().StringVar(&reportStorageURL, "storage-url", "",
		"storage path where artifacts were uploaded")
	reportCmd.Flags().StringVar(&reportTuningJSON, "tuning-json", "",
		"tuning summary JSON produced by 'dastgate tune'")
}

func runReport(cmd *cobra.Command, args []string) error {
	if reportInput == "" || reportOutput == "" {
		return &ValidationError{Message: "--input and --output are required"}
	}

	eval, err := loadEvaluation(reportInput)
	if err != nil {
		return err
	}

	tuning := loadTuningSummary(reportTuningJSON)

	opts := reporter.Options{
		Tuning:         tuning,
		StorageURL:     reportStorageURL,
		ArtifactsURL:   reportArtifactsURL,
		EvaluationPath: reportInput,
		Hints:          configHints(),
		SurfaceLimit:   cfg.SurfaceLimit,
		Now:            now(),
	}

	if err := reporter.WriteFile(reportOutput, func(w io.Writer) error {
		return reporter.NewMarkdownReporter(w).Generate(eval, opts)
	}); err != nil {
		return err
	}

	fmt.Printf("Report generated: %s\n", reportOutput)
	return nil
}

// loadEvaluation reads an evaluation artifact. A missing or malformed
// file is invalid input; consistency problems are only logged.
func loadEvaluation(path string) (*models.Evaluation, error) {
	eval, err := storage.LoadFile(path)
	if err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}
	if err := validator.New().WithClock(now).ValidateEvaluation(eval); err != nil {
		logVerbose("%s: %v", path, err)
	}
	return eval, nil
}

// loadTuningSummary reads an optional tuning artifact. Absent, unreadable
// or inconsistent files yield nil so the report shows its placeholder.
func loadTuningSummary(path string) *models.TuningSummary {
	if path == "" {
		return nil
	}

	var summary models.TuningSummary
	if err := reporter.ReadJSONFile(path, &summary); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logError("Ignoring tuning summary: %v", err)
		}
		return nil
	}
	if err := validator.New().ValidateTuningSummary(&summary); err != nil {
		logError("Ignoring tuning summary %s: %v", path, err)
		return nil
	}
	return &summary
}

func configHints() aggregator.Hints {
	return aggregator.Hints{
		ZAPConfig:       cfg.ZAPConfig,
		NucleiTemplates: cfg.NucleiTemplates,
		PolicyFile:      filepath.ToSlash(filepath.Join(cfg.PolicyDir, cfg.PolicyFile)),
	}
}
