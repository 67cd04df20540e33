package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ppiankov/dastgate/internal/aggregator"
	"github.com/ppiankov/dastgate/internal/collector"
	"github.com/ppiankov/dastgate/internal/models"
	"github.com/ppiankov/dastgate/internal/policy"
	"github.com/ppiankov/dastgate/internal/reporter"
	"github.com/ppiankov/dastgate/internal/storage"
	"github.com/spf13/cobra"
)

var (
	evalAppName      string
	evalZAPReport    string
	evalNucleiReport string
	evalOutput       string
	evalOPAVersion   string
	evalPolicyDir    string
	evalStore        bool
	evalNoGate       bool
)

// now is swapped in tests for stable timestamps.
var now = time.Now

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [extra-report...]",
	Short: "Normalize scanner reports and evaluate them against the OPA policy",
	Long: `Evaluate performs a full gate cycle:

  1. Collect  - parse the ZAP and Nuclei reports into normalized findings
  2. Resolve  - find or download the OPA binary
  3. Evaluate - run the policy and write the evaluation JSON
  4. Gate     - apply .dastgate-gate.yaml rules when present

Missing or empty reports contribute no findings. Extra report paths may be
given as arguments; their scanner is detected from the content.

Example:
  dastgate evaluate --app-name shop \
    --zap-report reports/zap-report.json \
    --nuclei-report reports/nuclei-report.json \
    --output reports/evaluation.json --store`,
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVar(&evalAppName, "app-name", "",
		"application name for the run (required)")
	evaluateCmd.Flags().StringVar(&evalZAPReport, "zap-report", "",
		"path to ZAP JSON report")
	evaluateCmd.Flags().StringVar(&evalNucleiReport, "nuclei-report", "",
		"path to Nuclei JSON or JSONL report")
	evaluateCmd.Flags().StringVarP(&evalOutput, "output", "o", "",
		"JSON file that stores the final evaluation (required)")
	evaluateCmd.Flags().StringVar(&evalOPAVersion, "opa-version", "",
		"OPA release to download when not installed (default: config opa_version)")
	evaluateCmd.Flags().StringVar(&evalPolicyDir, "policy-dir", "",
		"directory containing OPA policies (default: config policy_dir)")
	evaluateCmd.Flags().BoolVar(&evalStore, "store", false,
		"persist the evaluation for history and regression checks")
	evaluateCmd.Flags().BoolVar(&evalNoGate, "no-gate", false,
		"skip .dastgate-gate.yaml enforcement")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	if evalAppName == "" {
		return &ValidationError{Message: "--app-name is required"}
	}
	if evalOutput == "" {
		return &ValidationError{Message: "--output is required"}
	}

	policyDir := firstNonEmpty(evalPolicyDir, cfg.PolicyDir)
	version := firstNonEmpty(evalOPAVersion, cfg.OPAVersion)
	outputDir := filepath.Dir(evalOutput)

	// Step 1: Collect
	sources := make([]collector.ReportSource, 0, 2+len(args))
	if evalZAPReport != "" {
		sources = append(sources, collector.ReportSource{Path: evalZAPReport, Scanner: models.SourceZAP})
	}
	if evalNucleiReport != "" {
		sources = append(sources, collector.ReportSource{Path: evalNucleiReport, Scanner: models.SourceNuclei})
	}
	for _, extra := range args {
		sources = append(sources, collector.ReportSource{Path: extra})
	}

	coll := collector.New(collector.Config{Verbose: cfg.Verbose, Logf: logVerbose})
	findings, err := coll.Collect(sources)
	if err != nil {
		return &ValidationError{Message: fmt.Sprintf("failed to collect findings: %v", err)}
	}
	logVerbose("Collected %d finding(s) from %d report(s)", len(findings), len(sources))

	// Step 2: Resolve OPA
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	inputPath := filepath.Join(outputDir, "dast-input.json")
	fmt.Printf("Using policy directory: %s\n", policyDir)
	client, err := newPolicyClient(ctx, cfg.CacheDir(outputDir), version, policyDir, inputPath)
	if err != nil {
		return err
	}

	// Step 3: Evaluate
	verdict, err := client.Evaluate(ctx, evalAppName, findings)
	if err != nil {
		return fmt.Errorf("policy evaluation failed: %w", err)
	}

	eval := models.NewEvaluation(evalAppName, findings, verdict, client.PolicyReference(), now())
	if err := reporter.WriteJSONFile(evalOutput, eval); err != nil {
		return err
	}

	trend := storeEvaluation(eval)

	if err := reporter.NewTextReporter(os.Stdout).Generate(eval, trend); err != nil {
		return err
	}
	fmt.Printf("Input payload: %s\n", client.InputPath())

	// Step 4: Gate
	if evalNoGate {
		return nil
	}
	return enforceGate(eval)
}

// storeEvaluation persists eval when --store is set and returns the trend
// against the previous stored run. Storage problems are logged, not fatal.
func storeEvaluation(eval *models.Evaluation) *models.RiskTrend {
	if !evalStore {
		return nil
	}

	storagePath, err := cfg.GetStoragePath()
	if err != nil {
		logError("Failed to get storage path: %v", err)
		return nil
	}
	store := storage.NewLocal(storagePath)

	var trend *models.RiskTrend
	previous, err := store.GetLatestBefore(eval.AnalysisTime)
	switch {
	case err == nil:
		trend = aggregator.CalculateTrend(eval, previous)
	case !errors.Is(err, storage.ErrNoRuns):
		logVerbose("No trend available: %v", err)
	}

	path, err := store.SaveEvaluation(eval)
	if err != nil {
		logError("Failed to store evaluation: %v", err)
		return trend
	}
	logVerbose("Stored evaluation at %s", path)
	return trend
}

// enforceGate applies the nearest gate file, if any.
func enforceGate(eval *models.Evaluation) error {
	path := policy.FindGateFile("")
	if path == "" {
		logDebug("No gate file found")
		return nil
	}

	gate, err := policy.LoadGate(path)
	if err != nil {
		return &ValidationError{Message: err.Error()}
	}
	if gate == nil {
		return nil
	}

	result := gate.Evaluate(eval)
	if result.Pass {
		logVerbose("Gate %s passed", path)
		return nil
	}

	msgs := make([]string, 0, len(result.Violations))
	for _, v := range result.Violations {
		fmt.Printf("  gate violation: %s\n", v.Message)
		msgs = append(msgs, v.Message)
	}
	return &GateFailedError{Path: path, Violations: msgs}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
