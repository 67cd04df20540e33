package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/ppiankov/dastgate/internal/config"
	"github.com/ppiankov/dastgate/internal/guard"
	"github.com/ppiankov/dastgate/internal/runner"
	"github.com/spf13/cobra"
)

const (
	ExitOK           = 0 // Success
	ExitPolicyFail   = 1 // Drift, regression or gate file failure
	ExitInvalidInput = 2 // Missing or unparseable input
	ExitRuntimeError = 3 // OPA, I/O, or other runtime error
)

var (
	// Global config instance
	cfg *config.Config

	// Global flags
	configFile string
	verbose    bool
	debug      bool

	buildVersion = "dev"
)

// SetVersion records the version injected at build time.
func SetVersion(v string) {
	buildVersion = v
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "dastgate",
	Short: "dastgate - DAST findings gate for CI pipelines",
	Long: `dastgate turns ZAP and Nuclei scan results into a policy verdict.

It provides:
- Normalized findings from ZAP JSON and Nuclei JSON/JSONL reports
- PASS/WARN/FAIL verdicts and risk scores from an OPA policy
- Markdown reports and tuning guidance for pull requests
- Regression and policy drift gates with CI exit codes

Quick start:
  dastgate evaluate --app-name shop --zap-report reports/zap-report.json \
    --nuclei-report reports/nuclei-report.json --output reports/evaluation.json
  dastgate report --input reports/evaluation.json --output reports/summary.md

Other commands:
  dastgate tune --input reports/evaluation.json
  dastgate regression --current reports/evaluation.json
  dastgate health
  dastgate browse reports/evaluation.json`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return &ValidationError{Message: fmt.Sprintf("failed to load config: %v", err)}
		}

		// Override config with flags if provided
		if verbose {
			cfg.Verbose = true
		}
		if debug {
			cfg.Debug = true
			cfg.Verbose = true
		}

		return nil
	},
}

// Execute runs the root command and exits with the mapped exit code
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(HandleError(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (default: ./dastgate.yaml or ~/dastgate.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"debug mode (very verbose)")

	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(tuneCmd)
	rootCmd.AddCommand(regressionCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(browseCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}

// versionCmd shows version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("dastgate %s\n", buildVersion)
		fmt.Println("DAST findings gate for CI pipelines")
	},
}

// HandleError reports err and returns the exit code for it
func HandleError(err error) int {
	if err == nil {
		return ExitOK
	}

	var (
		validationErr *ValidationError
		gateErr       *GateFailedError
		mismatchErr   *guard.StatusMismatchError
		riskErr       *guard.RiskExceededError
		regressionErr *guard.RegressionError
		evalErr       *runner.EvalError
	)

	switch {
	case errors.As(err, &validationErr):
		logError("%v", err)
		return ExitInvalidInput
	case errors.As(err, &gateErr),
		errors.As(err, &mismatchErr),
		errors.As(err, &riskErr),
		errors.As(err, &regressionErr):
		logError("%v", err)
		return ExitPolicyFail
	case errors.As(err, &evalErr):
		logError("OPA evaluation failed")
		logError("Command: %s", evalErr.CommandLine())
		logError("Return code: %d", evalErr.ExitCode)
		if evalErr.Stdout != "" {
			logError("OPA stdout: %s", evalErr.Stdout)
		}
		if evalErr.Stderr != "" {
			logError("OPA stderr: %s", evalErr.Stderr)
		}
		logError("%v", err)
		return ExitRuntimeError
	default:
		logError("%v", err)
		return ExitRuntimeError
	}
}

// ValidationError represents missing or malformed input
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// GateFailedError represents violated gate file rules
type GateFailedError struct {
	Path       string
	Violations []string
}

func (e *GateFailedError) Error() string {
	return fmt.Sprintf("gate %s failed: %d violation(s)", e.Path, len(e.Violations))
}

// logVerbose prints a message if verbose mode is enabled
func logVerbose(format string, args ...interface{}) {
	if cfg != nil && cfg.Verbose {
		fmt.Fprintf(os.Stderr, "[INFO] "+format+"\n", args...)
	}
}

// logDebug prints a message if debug mode is enabled
func logDebug(format string, args ...interface{}) {
	if cfg != nil && cfg.Debug {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// logError prints an error message
func logError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "[ERROR] "+format+"\n", args...)
}
